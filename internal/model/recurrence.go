package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Frequency of a recurrence rule.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// WeekdayNames maps rule weekday names to time.Weekday numbers (sunday=0).
var WeekdayNames = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

var weekdayByNumber = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// Recurrence describes how a mother task repeats.
type Recurrence struct {
	Enabled    bool      `json:"enabled"`
	Frequency  Frequency `json:"frequency"`
	DaysOfWeek []string  `json:"daysOfWeek,omitempty"`
	DayOfMonth int       `json:"dayOfMonth,omitempty"`
	Interval   int       `json:"interval,omitempty"`
	EndDate    string    `json:"endDate,omitempty"`
}

// UnmarshalJSON accepts the legacy shapes still found in stored rows:
// numeric `days` instead of `daysOfWeek`, and rules without `enabled`.
func (r *Recurrence) UnmarshalJSON(data []byte) error {
	type plain Recurrence
	var raw struct {
		plain
		Enabled *bool `json:"enabled"`
		Days    []int `json:"days"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Recurrence(raw.plain)
	r.Enabled = raw.Enabled == nil || *raw.Enabled
	if len(r.DaysOfWeek) == 0 && len(raw.Days) > 0 {
		for _, d := range raw.Days {
			if d >= 0 && d < len(weekdayByNumber) {
				r.DaysOfWeek = append(r.DaysOfWeek, weekdayByNumber[d])
			}
		}
		r.Enabled = true
	}
	r.Normalize()
	return nil
}

// Normalize lowercases weekday names so rules built in code and rules
// decoded from rows compare and evaluate the same way.
func (r *Recurrence) Normalize() {
	for i, name := range r.DaysOfWeek {
		r.DaysOfWeek[i] = strings.ToLower(strings.TrimSpace(name))
	}
}

// Clone returns a deep copy.
func (r *Recurrence) Clone() *Recurrence {
	if r == nil {
		return nil
	}
	c := *r
	c.DaysOfWeek = append([]string(nil), r.DaysOfWeek...)
	return &c
}

// ParseRecurrence decodes the JSON string form stored in a row.
// An empty string means no rule.
func ParseRecurrence(s string) (*Recurrence, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var r Recurrence
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, fmt.Errorf("parse recurrence %q: %w", s, err)
	}
	return &r, nil
}

// FormatRecurrence is the inverse of ParseRecurrence.
func FormatRecurrence(r *Recurrence) (string, error) {
	if r == nil {
		return "", nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("format recurrence: %w", err)
	}
	return string(b), nil
}
