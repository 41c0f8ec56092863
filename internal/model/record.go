package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taskbridge/internal/dates"
)

// TaskRecord is the flat row a task is stored as: list fields are
// comma-joined and the recurrence rule is an opaque JSON string. A mother
// has at most one child row per day.
type TaskRecord struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	Priority      string    `json:"priority"`
	AssigneeID    string    `json:"assigneeId"`
	StartDate     string    `gorm:"index:idx_task_occurrence,unique,where:parent_task_id <> '',priority:2" json:"startDate"`
	DueDate       string    `json:"dueDate"`
	Tags          string    `json:"tags"`
	AssigneeIDs   string    `json:"assigneeIds"`
	ClientID      string    `json:"clientId"`
	CompletedDate string    `json:"completedDate"`
	Recurrence    string    `json:"recurrence"`
	ParentTaskID  string    `gorm:"index:idx_task_occurrence,unique,where:parent_task_id <> '',priority:1" json:"parentTaskId"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

func (TaskRecord) TableName() string {
	return "tasks"
}

// RecordFromTask flattens t into its row form.
func RecordFromTask(t Task) (TaskRecord, error) {
	t.Normalize()
	rec, err := FormatRecurrence(t.Recurrence)
	if err != nil {
		return TaskRecord{}, err
	}
	return TaskRecord{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Status:        string(t.Status),
		Priority:      string(t.Priority),
		AssigneeID:    t.PrimaryAssignee(),
		StartDate:     t.StartDate,
		DueDate:       t.DueDate,
		Tags:          strings.Join(t.Tags, ","),
		AssigneeIDs:   strings.Join(t.AssigneeIDs, ","),
		ClientID:      deref(t.ClientID),
		CompletedDate: deref(t.CompletedDate),
		Recurrence:    rec,
		ParentTaskID:  deref(t.ParentTaskID),
	}, nil
}

// Task maps the row back to a Task. A recurrence that fails to parse or
// dates that fail to normalise are reported in the error, but the task is
// still returned: an unparseable rule leaves it non-recurring.
func (r TaskRecord) Task(norm *dates.Normalizer) (Task, error) {
	var errs []error

	t := Task{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Status:       Status(r.Status),
		Priority:     Priority(r.Priority),
		AssigneeID:   r.AssigneeID,
		AssigneeIDs:  splitList(r.AssigneeIDs),
		Tags:         splitList(r.Tags),
		ClientID:     optional(r.ClientID),
		ParentTaskID: optional(r.ParentTaskID),
	}

	// Empty cells stay empty: normalising one would stamp it with today.
	day := func(field, raw string) string {
		if strings.TrimSpace(raw) == "" {
			return ""
		}
		d, err := norm.FromString(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("task %s %s: %w", r.ID, field, err))
			return raw
		}
		return d
	}
	t.StartDate = day("start date", r.StartDate)
	t.DueDate = day("due date", r.DueDate)
	if r.CompletedDate != "" {
		completed := day("completed date", r.CompletedDate)
		t.CompletedDate = &completed
	}

	rule, err := ParseRecurrence(r.Recurrence)
	if err != nil {
		errs = append(errs, fmt.Errorf("task %s: %w", r.ID, err))
	} else if rule != nil {
		t.Recurrence = rule
		t.IsRecurring = true
	}

	t.Normalize()
	return t, errors.Join(errs...)
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
