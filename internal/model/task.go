package model

import "strings"

// Status is a task's board column.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inprogress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// Valid reports whether s is one of the four board columns.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Task represents a single item on the team board. A task with a parent is
// an occurrence of a recurring mother task.
type Task struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Status        Status      `json:"status"`
	Priority      Priority    `json:"priority"`
	AssigneeID    string      `json:"assigneeId,omitempty"`
	AssigneeIDs   []string    `json:"assigneeIds"`
	ClientID      *string     `json:"clientId"`
	StartDate     string      `json:"startDate"`
	DueDate       string      `json:"dueDate"`
	Tags          []string    `json:"tags"`
	CompletedDate *string     `json:"completedDate"`
	IsRecurring   bool        `json:"isRecurring"`
	Recurrence    *Recurrence `json:"recurrence,omitempty"`
	ParentTaskID  *string     `json:"parentTaskId"`
}

func (t Task) Key() string { return t.ID }

// Clone returns a copy that shares no slices or pointers with t.
func (t Task) Clone() Task {
	c := t
	c.AssigneeIDs = append([]string{}, t.AssigneeIDs...)
	c.Tags = append([]string{}, t.Tags...)
	c.ClientID = cloneString(t.ClientID)
	c.CompletedDate = cloneString(t.CompletedDate)
	c.ParentTaskID = cloneString(t.ParentTaskID)
	c.Recurrence = t.Recurrence.Clone()
	return c
}

// IsChild reports whether t is an occurrence of a mother task.
func (t Task) IsChild() bool {
	return t.ParentTaskID != nil && *t.ParentTaskID != ""
}

// IsMother reports whether t is a recurring template.
func (t Task) IsMother() bool {
	return !t.IsChild() && t.IsRecurring && t.Recurrence != nil
}

// PrimaryAssignee is the first assignee, kept for single-assignee consumers.
func (t Task) PrimaryAssignee() string {
	if len(t.AssigneeIDs) > 0 {
		return t.AssigneeIDs[0]
	}
	return t.AssigneeID
}

// ApplyStatus moves t to next and keeps completedDate consistent:
// entering done stamps today, leaving done clears it.
func (t *Task) ApplyStatus(next Status, today string) {
	prev := t.Status
	t.Status = next
	switch {
	case prev != StatusDone && next == StatusDone:
		t.CompletedDate = &today
	case prev == StatusDone && next != StatusDone:
		t.CompletedDate = nil
	}
}

// Normalize fills defaults and enforces the child invariant.
func (t *Task) Normalize() {
	t.Title = strings.TrimSpace(t.Title)
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if len(t.AssigneeIDs) == 0 && t.AssigneeID != "" {
		t.AssigneeIDs = []string{t.AssigneeID}
	}
	if t.AssigneeIDs == nil {
		t.AssigneeIDs = []string{}
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	t.AssigneeID = t.PrimaryAssignee()
	if t.ClientID != nil && *t.ClientID == "" {
		t.ClientID = nil
	}
	if t.ParentTaskID != nil && *t.ParentTaskID == "" {
		t.ParentTaskID = nil
	}
	if t.IsChild() {
		t.IsRecurring = false
		t.Recurrence = nil
	}
	if t.Recurrence != nil {
		t.Recurrence = t.Recurrence.Clone()
		t.Recurrence.Normalize()
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr is a small helper for optional string fields.
func StringPtr(s string) *string { return &s }
