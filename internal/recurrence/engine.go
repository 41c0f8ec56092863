// Package recurrence expands recurring mother tasks into dated child
// occurrences. The same Engine backs task creation on the client and the
// daily sweep on the server, so both share one idempotency check.
package recurrence

import (
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskbridge/internal/dates"
	"taskbridge/internal/model"
)

// ErrMalformedRule marks a mother whose rule cannot be evaluated. The
// mother is skipped for that pass; other mothers are unaffected.
var ErrMalformedRule = errors.New("malformed recurrence rule")

// maxPreviewDays bounds Occurrences so an open range cannot spin forever.
const maxPreviewDays = 3660

// IDFunc generates the id of a new occurrence.
type IDFunc func(mother model.Task, day string) string

// DefaultID is the template id, the day and a random suffix.
func DefaultID(mother model.Task, day string) string {
	return fmt.Sprintf("%s_child_%s_%s", mother.ID, day, uuid.NewString()[:8])
}

type Engine struct {
	newID IDFunc
}

type Option func(*Engine)

func WithIDFunc(fn IDFunc) Option {
	return func(e *Engine) { e.newID = fn }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{newID: DefaultID}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Window is the inclusive date range a mother may occur in. The end falls
// back to the mother's due date when the rule has none; an empty end means
// the range is open.
func Window(mother model.Task) (start, end string) {
	end = mother.DueDate
	if mother.Recurrence != nil && mother.Recurrence.EndDate != "" {
		end = mother.Recurrence.EndDate
	}
	return mother.StartDate, end
}

// ShouldOccurOn reports whether mother has an occurrence on day.
//
// Monthly rules never clamp: dayOfMonth 31 produces nothing in a 30-day
// month.
func (e *Engine) ShouldOccurOn(mother model.Task, day string) (bool, error) {
	rule := mother.Recurrence
	if !mother.IsMother() {
		return false, nil
	}
	if !dates.Valid(day) {
		return false, fmt.Errorf("invalid day %q", day)
	}
	start, end := Window(mother)
	if !dates.Valid(start) {
		return false, malformed(mother, "start date %q", start)
	}
	if end != "" && !dates.Valid(end) {
		return false, malformed(mother, "end date %q", end)
	}

	var match func() (bool, error)
	switch rule.Frequency {
	case model.Daily:
		match = func() (bool, error) { return true, nil }
	case model.Weekly:
		targets := weekdaySet(rule.DaysOfWeek)
		if targets.Cardinality() == 0 {
			return false, malformed(mother, "weekly rule without weekdays %v", rule.DaysOfWeek)
		}
		match = func() (bool, error) {
			wd, err := dates.Weekday(day)
			if err != nil {
				return false, err
			}
			return targets.Contains(int(wd)), nil
		}
	case model.Monthly:
		target := rule.DayOfMonth
		if target == 0 {
			target = 1
		}
		if target < 1 || target > 31 {
			return false, malformed(mother, "day of month %d", rule.DayOfMonth)
		}
		match = func() (bool, error) {
			dom, err := dates.DayOfMonth(day)
			if err != nil {
				return false, err
			}
			return dom == target, nil
		}
	case "":
		return false, malformed(mother, "missing frequency")
	default:
		return false, malformed(mother, "unknown frequency %q", rule.Frequency)
	}

	if !rule.Enabled {
		return false, nil
	}
	if dates.Compare(day, start) < 0 {
		return false, nil
	}
	if end != "" && dates.Compare(day, end) > 0 {
		return false, nil
	}
	return match()
}

// Materialize returns the child for mother on day, or nil when the mother
// does not occur that day or idx already holds a child for it. A returned
// child is registered in idx, so a repeated call yields nil.
func (e *Engine) Materialize(mother model.Task, day string, idx *Index) (*model.Task, error) {
	ok, err := e.ShouldOccurOn(mother, day)
	if err != nil || !ok {
		return nil, err
	}
	if idx.Has(mother.ID, day) {
		return nil, nil
	}

	id := e.newID(mother, day)
	for attempt := 0; idx.HasID(id); attempt++ {
		if attempt >= 8 {
			return nil, fmt.Errorf("generate id for %s on %s: collisions exhausted", mother.ID, day)
		}
		id = e.newID(mother, day)
	}

	parent := mother.ID
	child := model.Task{
		ID:           id,
		Title:        fmt.Sprintf("%s (%s)", mother.Title, day),
		Description:  mother.Description,
		Status:       model.StatusTodo,
		Priority:     mother.Priority,
		AssigneeIDs:  append([]string{}, mother.AssigneeIDs...),
		ClientID:     cloneOptional(mother.ClientID),
		StartDate:    day,
		DueDate:      day,
		Tags:         append([]string{}, mother.Tags...),
		ParentTaskID: &parent,
	}
	child.Normalize()
	idx.Add(child)
	return &child, nil
}

// Expansion is the outcome of one pass over a task collection.
type Expansion struct {
	Children []model.Task
	Skipped  []error
}

// Expand materializes day's occurrences for every mother in tasks. Malformed
// mothers are logged and skipped.
func (e *Engine) Expand(tasks []model.Task, day string) Expansion {
	var out Expansion
	idx := NewIndex(tasks)
	for _, t := range tasks {
		if !t.IsMother() {
			continue
		}
		child, err := e.Materialize(t, day, idx)
		if err != nil {
			log.WithField("task", t.ID).Warnf("skip recurring task: %v", err)
			out.Skipped = append(out.Skipped, err)
			continue
		}
		if child != nil {
			out.Children = append(out.Children, *child)
		}
	}
	return out
}

// Occurrences lists every day in [from, to] on which mother occurs,
// clipped to the mother's own window.
func (e *Engine) Occurrences(mother model.Task, from, to string) ([]string, error) {
	start, end := Window(mother)
	if dates.Compare(from, start) < 0 {
		from = start
	}
	if to == "" || (end != "" && dates.Compare(to, end) > 0) {
		to = end
	}
	if to == "" {
		return nil, fmt.Errorf("task %s: open-ended range needs an explicit end", mother.ID)
	}

	var days []string
	day := from
	for i := 0; dates.Compare(day, to) <= 0; i++ {
		if i >= maxPreviewDays {
			return days, fmt.Errorf("task %s: range longer than %d days", mother.ID, maxPreviewDays)
		}
		ok, err := e.ShouldOccurOn(mother, day)
		if err != nil {
			return nil, err
		}
		if ok {
			days = append(days, day)
		}
		if day, err = dates.AddDays(day, 1); err != nil {
			return nil, err
		}
	}
	return days, nil
}

func weekdaySet(names []string) mapset.Set[int] {
	set := mapset.NewThreadUnsafeSet[int]()
	for _, name := range names {
		if n, ok := model.WeekdayNames[strings.ToLower(strings.TrimSpace(name))]; ok {
			set.Add(n)
		}
	}
	return set
}

func malformed(mother model.Task, format string, args ...any) error {
	return fmt.Errorf("%w: task %s: %s", ErrMalformedRule, mother.ID, fmt.Sprintf(format, args...))
}

func cloneOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
