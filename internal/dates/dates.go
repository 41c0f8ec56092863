// Package dates converts date-like values into canonical YYYY-MM-DD strings
// pinned to one civil time zone, so "today" does not depend on the host.
package dates

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// Layout is the canonical date layout. It is fixed-width and zero-padded,
// so canonical dates order correctly as plain strings.
const Layout = "2006-01-02"

// DefaultZone is the civil zone the team works in (GMT-5, no DST).
const DefaultZone = "America/Bogota"

var parseLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// Normalizer produces canonical dates in a single location.
type Normalizer struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Normalizer for loc. A nil loc falls back to a fixed GMT-5 zone.
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.FixedZone(DefaultZone, -5*60*60)
	}
	return &Normalizer{loc: loc, now: time.Now}
}

// LoadNormalizer resolves a zone name and builds a Normalizer for it.
func LoadNormalizer(zone string) (*Normalizer, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	return New(loc), nil
}

// WithClock returns a copy of n that reads the current instant from now.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	return &Normalizer{loc: n.loc, now: now}
}

func (n *Normalizer) Location() *time.Location { return n.loc }

// Now is the current instant as seen by the normalizer's clock.
func (n *Normalizer) Now() time.Time { return n.now() }

// Today is the canonical date of the current instant.
func (n *Normalizer) Today() string {
	return n.FromTime(n.now())
}

// FromTime renders the civil date of t in the normalizer's zone.
func (n *Normalizer) FromTime(t time.Time) string {
	return t.In(n.loc).Format(Layout)
}

// FromString accepts a canonical date (returned as is) or a timestamp.
// Timestamps carrying an offset are converted to the normalizer's zone;
// timestamps without one are read as wall time in that zone.
func (n *Normalizer) FromString(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return n.Today(), nil
	}
	if len(s) == len(Layout) {
		if _, err := time.Parse(Layout, s); err == nil {
			return s, nil
		}
	}
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			return n.FromTime(t), nil
		}
	}
	return "", fmt.Errorf("unrecognised date %q", s)
}

// Canonical normalises any supported date-like input. nil means today.
func (n *Normalizer) Canonical(input any) (string, error) {
	switch v := input.(type) {
	case nil:
		return n.Today(), nil
	case string:
		return n.FromString(v)
	case *string:
		if v == nil {
			return n.Today(), nil
		}
		return n.FromString(*v)
	case time.Time:
		if v.IsZero() {
			return n.Today(), nil
		}
		return n.FromTime(v), nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return n.Today(), nil
		}
		return n.FromTime(*v), nil
	default:
		return "", fmt.Errorf("unsupported date value of type %T", input)
	}
}

// Compare orders two canonical dates.
func Compare(a, b string) int {
	return strings.Compare(a, b)
}

// InRange reports whether from <= day <= to.
func InRange(day, from, to string) bool {
	return Compare(day, from) >= 0 && Compare(day, to) <= 0
}

// Valid reports whether s is a canonical date.
func Valid(s string) bool {
	if len(s) != len(Layout) {
		return false
	}
	_, err := time.Parse(Layout, s)
	return err == nil
}

// Weekday of a canonical date. Calendar arithmetic happens in UTC, where a
// date-only value cannot shift across midnight.
func Weekday(day string) (time.Weekday, error) {
	t, err := time.Parse(Layout, day)
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", day, err)
	}
	return t.Weekday(), nil
}

func DayOfMonth(day string) (int, error) {
	t, err := time.Parse(Layout, day)
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", day, err)
	}
	return t.Day(), nil
}

// AddDays shifts a canonical date by n calendar days.
func AddDays(day string, n int) (string, error) {
	t, err := time.Parse(Layout, day)
	if err != nil {
		return "", fmt.Errorf("parse day %q: %w", day, err)
	}
	return t.AddDate(0, 0, n).Format(Layout), nil
}
