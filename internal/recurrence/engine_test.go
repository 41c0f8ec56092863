package recurrence

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbridge/internal/model"
)

func motherTask(rule *model.Recurrence) model.Task {
	return model.Task{
		ID:          "m1",
		Title:       "Bank reconciliation",
		Description: "Match statements",
		Status:      model.StatusInProgress,
		Priority:    model.PriorityHigh,
		AssigneeIDs: []string{"u1", "u2"},
		ClientID:    model.StringPtr("c1"),
		Tags:        []string{"finance"},
		StartDate:   "2026-01-01",
		DueDate:     "2026-01-31",
		IsRecurring: true,
		Recurrence:  rule,
	}
}

func sequentialIDs() IDFunc {
	n := 0
	return func(mother model.Task, day string) string {
		n++
		return fmt.Sprintf("%s-%s-%d", mother.ID, day, n)
	}
}

func TestEngine_WeeklyMondayFridayInJanuary(t *testing.T) {
	e := NewEngine()
	m := motherTask(&model.Recurrence{Enabled: true, Frequency: model.Weekly, DaysOfWeek: []string{"monday", "friday"}, EndDate: "2026-01-31"})

	days, err := e.Occurrences(m, "2025-12-01", "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2026-01-02", "2026-01-05", "2026-01-09", "2026-01-12", "2026-01-16",
		"2026-01-19", "2026-01-23", "2026-01-26", "2026-01-30",
	}, days)
}

func TestEngine_ShouldOccurOn(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name string
		rule *model.Recurrence
		day  string
		want bool
	}{
		{name: "daily inside window", rule: &model.Recurrence{Enabled: true, Frequency: model.Daily}, day: "2026-01-15", want: true},
		{name: "daily on start", rule: &model.Recurrence{Enabled: true, Frequency: model.Daily}, day: "2026-01-01", want: true},
		{name: "daily on end", rule: &model.Recurrence{Enabled: true, Frequency: model.Daily}, day: "2026-01-31", want: true},
		{name: "daily before start", rule: &model.Recurrence{Enabled: true, Frequency: model.Daily}, day: "2025-12-31", want: false},
		{name: "end defaults to due date", rule: &model.Recurrence{Enabled: true, Frequency: model.Daily}, day: "2026-02-01", want: false},
		{name: "rule end overrides due date", rule: &model.Recurrence{Enabled: true, Frequency: model.Daily, EndDate: "2026-03-31"}, day: "2026-03-31", want: true},
		{name: "weekly match outside window", rule: &model.Recurrence{Enabled: true, Frequency: model.Weekly, DaysOfWeek: []string{"monday"}}, day: "2026-02-02", want: false},
		{name: "weekly miss", rule: &model.Recurrence{Enabled: true, Frequency: model.Weekly, DaysOfWeek: []string{"monday"}}, day: "2026-01-06", want: false},
		{name: "weekly mixed case", rule: &model.Recurrence{Enabled: true, Frequency: model.Weekly, DaysOfWeek: []string{"Tuesday"}}, day: "2026-01-06", want: true},
		{name: "weekly unknown name ignored", rule: &model.Recurrence{Enabled: true, Frequency: model.Weekly, DaysOfWeek: []string{"funday", "tuesday"}}, day: "2026-01-06", want: true},
		{name: "monthly default first", rule: &model.Recurrence{Enabled: true, Frequency: model.Monthly}, day: "2026-01-01", want: true},
		{name: "monthly explicit", rule: &model.Recurrence{Enabled: true, Frequency: model.Monthly, DayOfMonth: 15}, day: "2026-01-15", want: true},
		{name: "disabled", rule: &model.Recurrence{Enabled: false, Frequency: model.Daily}, day: "2026-01-15", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ShouldOccurOn(motherTask(tt.rule), tt.day)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_MonthlyDoesNotClamp(t *testing.T) {
	e := NewEngine()
	m := motherTask(&model.Recurrence{Enabled: true, Frequency: model.Monthly, DayOfMonth: 31, EndDate: "2026-12-31"})

	april, err := e.Occurrences(m, "2026-04-01", "2026-04-30")
	require.NoError(t, err)
	assert.Empty(t, april)

	may, err := e.Occurrences(m, "2026-05-01", "2026-05-31")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-05-31"}, may)
}

func TestEngine_MalformedRules(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name string
		task model.Task
	}{
		{name: "missing frequency", task: motherTask(&model.Recurrence{Enabled: true})},
		{name: "unknown frequency", task: motherTask(&model.Recurrence{Enabled: true, Frequency: "yearly"})},
		{name: "weekly without days", task: motherTask(&model.Recurrence{Enabled: true, Frequency: model.Weekly})},
		{name: "day of month out of range", task: motherTask(&model.Recurrence{Enabled: true, Frequency: model.Monthly, DayOfMonth: 32})},
		{name: "bad start date", task: func() model.Task {
			m := motherTask(&model.Recurrence{Enabled: true, Frequency: model.Daily})
			m.StartDate = "01/01/2026"
			return m
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := e.ShouldOccurOn(tt.task, "2026-01-05")
			assert.ErrorIs(t, err, ErrMalformedRule)
			assert.False(t, ok)

			child, err := e.Materialize(tt.task, "2026-01-05", NewIndex(nil))
			assert.ErrorIs(t, err, ErrMalformedRule)
			assert.Nil(t, child)
		})
	}
}

func TestEngine_MaterializeCopiesFields(t *testing.T) {
	e := NewEngine(WithIDFunc(sequentialIDs()))
	m := motherTask(&model.Recurrence{Enabled: true, Frequency: model.Daily})

	child, err := e.Materialize(m, "2026-01-09", NewIndex([]model.Task{m}))
	require.NoError(t, err)
	require.NotNil(t, child)

	assert.Equal(t, "m1-2026-01-09-1", child.ID)
	assert.Equal(t, "Bank reconciliation (2026-01-09)", child.Title)
	assert.Equal(t, model.StatusTodo, child.Status, "children always start in todo")
	assert.Equal(t, "2026-01-09", child.StartDate)
	assert.Equal(t, "2026-01-09", child.DueDate)
	assert.Nil(t, child.CompletedDate)
	assert.False(t, child.IsRecurring)
	assert.Nil(t, child.Recurrence)
	require.NotNil(t, child.ParentTaskID)
	assert.Equal(t, "m1", *child.ParentTaskID)
	assert.Equal(t, m.Description, child.Description)
	assert.Equal(t, m.Priority, child.Priority)
	assert.Equal(t, m.AssigneeIDs, child.AssigneeIDs)
	assert.Equal(t, "u1", child.AssigneeID)
	assert.Equal(t, m.Tags, child.Tags)
	assert.Equal(t, "c1", *child.ClientID)

	child.AssigneeIDs[0] = "changed"
	assert.Equal(t, "u1", m.AssigneeIDs[0], "child must not alias the mother's slices")
}

func TestEngine_MaterializeIsIdempotent(t *testing.T) {
	e := NewEngine()
	m := motherTask(&model.Recurrence{Enabled: true, Frequency: model.Daily})
	idx := NewIndex([]model.Task{m})

	first, err := e.Materialize(m, "2026-01-10", idx)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := e.Materialize(m, "2026-01-10", idx)
	require.NoError(t, err)
	assert.Nil(t, second)

	// A fresh index built from the stored tasks sees the child too.
	third, err := e.Materialize(m, "2026-01-10", NewIndex([]model.Task{m, *first}))
	require.NoError(t, err)
	assert.Nil(t, third)
}

func TestEngine_MaterializeAvoidsIDCollision(t *testing.T) {
	calls := 0
	e := NewEngine(WithIDFunc(func(model.Task, string) string {
		calls++
		if calls == 1 {
			return "taken"
		}
		return "fresh"
	}))
	m := motherTask(&model.Recurrence{Enabled: true, Frequency: model.Daily})

	child, err := e.Materialize(m, "2026-01-10", NewIndex([]model.Task{m, {ID: "taken"}}))
	require.NoError(t, err)
	require.NotNil(t, child)
	assert.Equal(t, "fresh", child.ID)
}

func TestEngine_ExpandSkipsMalformedAndChildren(t *testing.T) {
	e := NewEngine()
	good := motherTask(&model.Recurrence{Enabled: true, Frequency: model.Daily})
	broken := motherTask(&model.Recurrence{Enabled: true})
	broken.ID = "m2"
	standalone := model.Task{ID: "s1", Title: "One-off", StartDate: "2026-01-01", DueDate: "2026-01-02"}
	existing := model.Task{ID: "c-old", ParentTaskID: model.StringPtr("m1"), StartDate: "2026-01-09"}

	got := e.Expand([]model.Task{good, broken, standalone, existing}, "2026-01-10")
	require.Len(t, got.Children, 1)
	assert.Equal(t, "m1", *got.Children[0].ParentTaskID)
	require.Len(t, got.Skipped, 1)
	assert.ErrorIs(t, got.Skipped[0], ErrMalformedRule)

	again := e.Expand([]model.Task{good, broken, standalone, existing, got.Children[0]}, "2026-01-10")
	assert.Empty(t, again.Children)
}

func TestIndex_Children(t *testing.T) {
	idx := NewIndex([]model.Task{
		{ID: "m1"},
		{ID: "a", ParentTaskID: model.StringPtr("m1"), StartDate: "2026-01-01"},
		{ID: "b", ParentTaskID: model.StringPtr("m1"), StartDate: "2026-01-02"},
		{ID: "c", ParentTaskID: model.StringPtr("m2"), StartDate: "2026-01-01"},
	})

	assert.Equal(t, []string{"a", "b"}, idx.Children("m1"))
	assert.True(t, idx.Has("m1", "2026-01-02"))
	assert.False(t, idx.Has("m2", "2026-01-02"))
	assert.True(t, idx.HasID("m1"))
	assert.Empty(t, idx.Children("nobody"))
}

func TestIndex_Pending(t *testing.T) {
	idx := NewIndex([]model.Task{
		{ID: "m1"},
		{ID: "a", ParentTaskID: model.StringPtr("m1"), StartDate: "2026-01-01", Status: model.StatusDone},
		{ID: "b", ParentTaskID: model.StringPtr("m1"), StartDate: "2026-01-02", Status: model.StatusReview},
		{ID: "c", ParentTaskID: model.StringPtr("m1"), StartDate: "2026-01-03", Status: model.StatusTodo},
	})

	assert.Equal(t, []string{"b", "c"}, idx.Pending("m1"))
	assert.Empty(t, idx.Pending("m2"))
}
