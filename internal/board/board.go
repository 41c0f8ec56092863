// Package board is the client-side task layer. Every action changes the
// local collections at once and leaves remote delivery to the sync queues.
package board

import (
	"errors"
	"fmt"
	"strings"
	stdsync "sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskbridge/internal/dates"
	"taskbridge/internal/model"
	"taskbridge/internal/recurrence"
	"taskbridge/internal/sync"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// defaultMotherSpan is how far ahead a recurring task without any end
// reaches when it is created.
const defaultMotherSpan = 7

// TaskInput is what a user fills in to create a task. Dates may be in any
// form the date normalizer accepts.
type TaskInput struct {
	Title       string
	Description string
	Status      model.Status
	Priority    model.Priority
	AssigneeIDs []string
	ClientID    string
	StartDate   string
	DueDate     string
	Tags        []string
	Recurrence  *model.Recurrence
}

// Board groups the three synced collections.
type Board struct {
	Tasks   *sync.Store[model.Task]
	Users   *sync.Store[model.User]
	Clients *sync.Store[model.Client]

	engine *recurrence.Engine
	dates  *dates.Normalizer
	newID  func() string

	// mu keeps composite task actions (mother plus child, cascade delete)
	// from interleaving with each other.
	mu stdsync.Mutex
}

func New(tasks *sync.Store[model.Task], users *sync.Store[model.User], clients *sync.Store[model.Client], engine *recurrence.Engine, norm *dates.Normalizer) *Board {
	if engine == nil {
		engine = recurrence.NewEngine()
	}
	if norm == nil {
		norm = dates.New(nil)
	}
	return &Board{
		Tasks:   tasks,
		Users:   users,
		Clients: clients,
		engine:  engine,
		dates:   norm,
		newID:   uuid.NewString,
	}
}

// CreateTask adds a task. A recurring task becomes a mother, and when it
// occurs today its first child is created in the same step.
func (b *Board) CreateTask(in TaskInput) (model.Task, *model.Task, error) {
	task, err := b.buildTask(in)
	if err != nil {
		return model.Task{}, nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var child *model.Task
	if task.IsMother() {
		// A rule that cannot be evaluated is rejected here, before it
		// reaches the sweep.
		if _, err := b.engine.ShouldOccurOn(task, task.StartDate); err != nil {
			return model.Task{}, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	b.Tasks.Create(task)
	if task.IsMother() {
		idx := recurrence.NewIndex(b.Tasks.Snapshot())
		child, err = b.engine.Materialize(task, b.dates.Today(), idx)
		if err != nil {
			log.WithField("task", task.ID).Warnf("create today's occurrence: %v", err)
			return task, nil, nil
		}
		if child != nil {
			b.Tasks.Create(*child)
		}
	}
	log.WithField("task", task.ID).Infof("created task %q", task.Title)
	return task, child, nil
}

func (b *Board) buildTask(in TaskInput) (model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Task{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.Status != "" && !in.Status.Valid() {
		return model.Task{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
	}
	today := b.dates.Today()

	start, err := b.dates.FromString(in.StartDate)
	if err != nil {
		return model.Task{}, fmt.Errorf("%w: start date: %v", ErrInvalidInput, err)
	}
	due := ""
	if strings.TrimSpace(in.DueDate) != "" {
		if due, err = b.dates.FromString(in.DueDate); err != nil {
			return model.Task{}, fmt.Errorf("%w: due date: %v", ErrInvalidInput, err)
		}
	}

	task := model.Task{
		ID:          b.newID(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      in.Status,
		Priority:    in.Priority,
		AssigneeIDs: dedupe(in.AssigneeIDs),
		StartDate:   start,
		Tags:        dedupe(in.Tags),
	}
	if in.ClientID != "" {
		task.ClientID = model.StringPtr(in.ClientID)
	}

	if in.Recurrence != nil && in.Recurrence.Enabled {
		rule := in.Recurrence.Clone()
		if rule.EndDate != "" {
			if rule.EndDate, err = b.dates.FromString(rule.EndDate); err != nil {
				return model.Task{}, fmt.Errorf("%w: recurrence end date: %v", ErrInvalidInput, err)
			}
		}
		task.IsRecurring = true
		task.Recurrence = rule
		switch {
		case rule.EndDate != "":
			due = rule.EndDate
		case due == "":
			due, _ = dates.AddDays(today, defaultMotherSpan)
		}
	}
	if due == "" {
		due = start
	}
	task.DueDate = due

	task.Normalize()
	if task.Status == model.StatusDone {
		task.CompletedDate = model.StringPtr(today)
	}
	return task, nil
}

// UpdateTask replaces a task's fields. Moving into or out of done keeps
// completedDate consistent.
func (b *Board) UpdateTask(task model.Task) (model.Task, error) {
	if task.Status != "" && !task.Status.Valid() {
		return model.Task{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, task.Status)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	old, ok := b.Tasks.Get(task.ID)
	if !ok {
		return model.Task{}, fmt.Errorf("task %s: %w", task.ID, ErrNotFound)
	}

	next := task.Clone()
	next.Status = old.Status
	next.CompletedDate = old.CompletedDate
	status := task.Status
	if status == "" {
		status = old.Status
	}
	next.ApplyStatus(status, b.dates.Today())

	var err error
	if next.StartDate, err = b.canonicalOr(task.StartDate, old.StartDate); err != nil {
		return model.Task{}, fmt.Errorf("%w: start date: %v", ErrInvalidInput, err)
	}
	if next.DueDate, err = b.canonicalOr(task.DueDate, old.DueDate); err != nil {
		return model.Task{}, fmt.Errorf("%w: due date: %v", ErrInvalidInput, err)
	}
	next.AssigneeIDs = dedupe(next.AssigneeIDs)
	next.Tags = dedupe(next.Tags)
	next.Normalize()

	b.Tasks.Update(next)
	return next, nil
}

// MoveTask changes only the status, as a drag between board columns does.
func (b *Board) MoveTask(id string, status model.Status) (model.Task, error) {
	if !status.Valid() {
		return model.Task{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	task, ok := b.Tasks.Get(id)
	if !ok {
		return model.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if task.Status == status {
		return task, nil
	}
	task.ApplyStatus(status, b.dates.Today())
	b.Tasks.Update(task)
	return task, nil
}

// DeleteTask removes a task. Deleting a mother also removes its pending
// children in the same batch; completed children stay as history.
func (b *Board) DeleteTask(id string) ([]model.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	task, ok := b.Tasks.Get(id)
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	ids := []string{id}
	if !task.IsChild() {
		idx := recurrence.NewIndex(b.Tasks.Snapshot())
		ids = append(ids, idx.Pending(id)...)
	}
	removed := b.Tasks.RemoveMany(ids)
	if len(removed) > 1 {
		log.WithField("task", id).Infof("deleted task with %d pending occurrences", len(removed)-1)
	}
	return removed, nil
}

func (b *Board) canonicalOr(value, fallback string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return b.dates.FromString(value)
}

// dedupe drops blanks and repeats, keeping first-seen order.
func dedupe(values []string) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || !seen.Add(v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
