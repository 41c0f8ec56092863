package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbridge/internal/dates"
	"taskbridge/internal/gateway"
	"taskbridge/internal/model"
	"taskbridge/internal/notify"
	"taskbridge/internal/recurrence"
	"taskbridge/internal/repository"
)

// Monday 2026-01-05, 11:00 in Bogota.
var monday = time.Date(2026, 1, 5, 16, 0, 0, 0, time.UTC)

type fixture struct {
	tasks     *repository.TaskRepository
	users     *repository.UserRepository
	clients   *repository.ClientRepository
	locks     *repository.LockRepository
	dates     *dates.Normalizer
	reader    *TaskService
	directory *DirectoryService
	mutations *MutationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	f := &fixture{
		tasks:   repository.NewTaskRepository(db),
		users:   repository.NewUserRepository(db),
		clients: repository.NewClientRepository(db),
		locks:   repository.NewLockRepository(db),
		dates:   dates.New(nil).WithClock(func() time.Time { return monday }),
	}
	f.reader = NewTaskService(f.tasks, f.dates)
	f.directory = NewDirectoryService(f.users, f.clients)
	f.mutations = NewMutationService(f.tasks, f.users, f.clients, f.dates)
	return f
}

func (f *fixture) mutate(t *testing.T, op model.OpKind, typ model.EntityType, item any) error {
	t.Helper()
	raw, err := json.Marshal(item)
	require.NoError(t, err)
	return f.mutations.Apply(context.Background(), gateway.MutationRequest{Operation: op, Type: typ, Item: raw})
}

func weeklyMother(id string, days ...string) model.Task {
	return model.Task{
		ID: id, Title: "Report " + id, Status: model.StatusTodo, Priority: model.PriorityMedium,
		StartDate: "2026-01-01", DueDate: "2026-03-31", IsRecurring: true,
		AssigneeIDs: []string{"u1"},
		Recurrence:  &model.Recurrence{Enabled: true, Frequency: model.Weekly, DaysOfWeek: days},
	}
}

type captured struct {
	mu    stdsync.Mutex
	texts []string
}

func (c *captured) Notify(_ context.Context, _ notify.Level, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

func TestMutationService_Tasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := model.Task{ID: "t1", Title: "Call", StartDate: "2026-01-05T20:00:00Z", DueDate: "2026-01-06"}
	require.NoError(t, f.mutate(t, model.OpCreate, model.EntityTask, task))
	task.Title = "Call back"
	require.NoError(t, f.mutate(t, model.OpCreate, model.EntityTask, task), "create again is an update")

	rows, err := f.tasks.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Call back", rows[0].Title)
	assert.Equal(t, "2026-01-05", rows[0].StartDate, "20:00Z is 15:00 in Bogota")

	task.Status = model.StatusDone
	task.CompletedDate = model.StringPtr("2026-01-05")
	require.NoError(t, f.mutate(t, model.OpUpdate, model.EntityTask, task))
	require.NoError(t, f.mutate(t, model.OpUpdate, model.EntityTask, model.Task{ID: "ghost", Title: "x"}))
	require.NoError(t, f.mutate(t, model.OpDelete, model.EntityTask, model.Task{ID: "ghost"}))

	rows, err = f.tasks.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "done", rows[0].Status)

	require.NoError(t, f.mutate(t, model.OpDelete, model.EntityTask, model.Task{ID: "t1"}))
	rows, err = f.tasks.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMutationService_DuplicateOccurrence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parent := model.StringPtr("m1")

	first := model.Task{ID: "m1_child_2026-01-05_a", Title: "R (2026-01-05)", ParentTaskID: parent, StartDate: "2026-01-05", DueDate: "2026-01-05"}
	second := first
	second.ID = "m1_child_2026-01-05_b"

	require.NoError(t, f.mutate(t, model.OpCreate, model.EntityTask, first))
	require.NoError(t, f.mutate(t, model.OpCreate, model.EntityTask, second), "the duplicate is acknowledged")

	rows, err := f.tasks.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, first.ID, rows[0].ID)

	first.Status = model.StatusInProgress
	require.NoError(t, f.mutate(t, model.OpCreate, model.EntityTask, first), "re-sending the same child still upserts")
	rows, err = f.tasks.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "inprogress", rows[0].Status)
}

func TestMutationService_Directory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.mutate(t, model.OpCreate, model.EntityUser, model.User{ID: "u1", Name: "Ana"}))
	require.NoError(t, f.mutate(t, model.OpUpdate, model.EntityUser, model.User{ID: "u1", Name: "Ana M."}))
	require.NoError(t, f.mutate(t, model.OpCreate, model.EntityClient, model.Client{ID: "c1", Name: "Acme"}))
	require.NoError(t, f.mutate(t, model.OpDelete, model.EntityClient, model.Client{ID: "c1"}))

	names, err := f.directory.UserNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"u1": "Ana M."}, names)
	clients, err := f.directory.Clients(ctx)
	require.NoError(t, err)
	assert.Empty(t, clients)
}

func TestMutationService_Rejects(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		req  gateway.MutationRequest
	}{
		{name: "unknown operation", req: gateway.MutationRequest{Operation: "upsert", Type: model.EntityTask, Item: json.RawMessage(`{"id":"x"}`)}},
		{name: "unknown type", req: gateway.MutationRequest{Operation: model.OpCreate, Type: "project", Item: json.RawMessage(`{"id":"x"}`)}},
		{name: "missing item", req: gateway.MutationRequest{Operation: model.OpCreate, Type: model.EntityTask}},
		{name: "item not an object", req: gateway.MutationRequest{Operation: model.OpCreate, Type: model.EntityUser, Item: json.RawMessage(`[1]`)}},
		{name: "missing id", req: gateway.MutationRequest{Operation: model.OpCreate, Type: model.EntityClient, Item: json.RawMessage(`{"name":"Acme"}`)}},
		{name: "bad date", req: gateway.MutationRequest{Operation: model.OpCreate, Type: model.EntityTask, Item: json.RawMessage(`{"id":"t","startDate":"soon"}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.mutations.Apply(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrBadMutation)
		})
	}
}

func TestSweepService_Run(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.users.Upsert(ctx, model.User{ID: "u1", Name: "Ana"}))

	broken := weeklyMother("broken")
	broken.Recurrence.DaysOfWeek = nil
	for _, m := range []model.Task{weeklyMother("mon", "monday"), weeklyMother("fri", "friday"), broken} {
		rec, err := model.RecordFromTask(m)
		require.NoError(t, err)
		require.NoError(t, f.tasks.Upsert(ctx, rec))
	}
	overdue, err := model.RecordFromTask(model.Task{ID: "late", Title: "Late report", DueDate: "2026-01-02", AssigneeIDs: []string{"u1"}})
	require.NoError(t, err)
	require.NoError(t, f.tasks.Upsert(ctx, overdue))

	sink := &captured{}
	sweep := NewSweepService(SweepConfig{
		Tasks:    f.tasks,
		Locks:    f.locks,
		Reader:   f.reader,
		Engine:   recurrence.NewEngine(),
		Dates:    f.dates,
		Digest:   NewDigestService(f.reader, f.directory),
		Notifier: sink,
		LockWait: time.Second,
	})

	res, err := sweep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-05", res.Day)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.Broken)
	require.Len(t, res.Created, 1)
	assert.Equal(t, "Report mon (2026-01-05)", res.Created[0].Title)

	occ, err := f.tasks.FindOccurrence(ctx, "mon", "2026-01-05")
	require.NoError(t, err)
	require.NotNil(t, occ)

	require.Len(t, sink.texts, 1)
	digest := sink.texts[0]
	assert.Contains(t, digest, "Report mon (2026-01-05)")
	assert.Contains(t, digest, "Late report")
	assert.Contains(t, digest, "Ana")
	assert.NotContains(t, digest, "Report fri")

	again, err := sweep.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Created, "a second sweep on the same day creates nothing")
	rows, err := f.tasks.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestSweepService_ClientChildStoredDuringSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec, err := model.RecordFromTask(weeklyMother("mon", "monday"))
	require.NoError(t, err)
	require.NoError(t, f.tasks.Upsert(ctx, rec))

	// A client stores today's child after the sweep has read the tasks but
	// before it writes its own.
	engine := recurrence.NewEngine(recurrence.WithIDFunc(func(m model.Task, day string) string {
		child := model.Task{ID: "from-client", Title: m.Title, ParentTaskID: model.StringPtr(m.ID), StartDate: day, DueDate: day}
		require.NoError(t, f.mutate(t, model.OpCreate, model.EntityTask, child))
		return recurrence.DefaultID(m, day)
	}))
	sweep := NewSweepService(SweepConfig{
		Tasks: f.tasks, Locks: f.locks, Reader: f.reader, Engine: engine, Dates: f.dates,
		LockWait: time.Second,
	})

	res, err := sweep.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Created)

	occ, err := f.tasks.FindOccurrence(ctx, "mon", "2026-01-05")
	require.NoError(t, err)
	require.NotNil(t, occ)
	assert.Equal(t, "from-client", occ.ID)
	rows, err := f.tasks.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSweepService_SkipsWhileLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec, err := model.RecordFromTask(weeklyMother("mon", "monday"))
	require.NoError(t, err)
	require.NoError(t, f.tasks.Upsert(ctx, rec))

	require.NoError(t, f.locks.TryAcquire(ctx, SweepLockName, "someone-else", time.Hour))

	sweep := NewSweepService(SweepConfig{
		Tasks: f.tasks, Locks: f.locks, Reader: f.reader, Dates: f.dates,
		LockWait: 10 * time.Millisecond,
	})
	res, err := sweep.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	occ, err := f.tasks.FindOccurrence(ctx, "mon", "2026-01-05")
	require.NoError(t, err)
	assert.Nil(t, occ)

	require.NoError(t, f.locks.Release(ctx, SweepLockName, "someone-else"))
	res, err = sweep.Run(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Created, 1)
}

func TestOverdue(t *testing.T) {
	tasks := []model.Task{
		{ID: "a", Title: "A", DueDate: "2026-01-04"},
		{ID: "b", Title: "B", DueDate: "2026-01-05"},
		{ID: "c", Title: "C", DueDate: "2026-01-01", Status: model.StatusDone},
		{ID: "d", Title: "D", DueDate: "2026-01-02"},
		{ID: "m", Title: "M", DueDate: "2026-01-01", IsRecurring: true, Recurrence: &model.Recurrence{Enabled: true, Frequency: model.Daily}},
		{ID: "e", Title: "E", DueDate: ""},
	}
	var ids []string
	for _, task := range Overdue(tasks, "2026-01-05") {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []string{"d", "a"}, ids)
}

func TestSchedulerService(t *testing.T) {
	s := NewSchedulerService(time.UTC)

	_, err := s.ScheduleDaily("sweep", 6, 0, func() {})
	require.NoError(t, err)
	_, err = s.ScheduleDaily("sweep", 7, 30, func() {})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len(), "re-registering a name replaces it")

	_, err = s.ScheduleInterval("poll", 10*time.Second, func() {})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	_, err = s.ScheduleDaily("bad", 24, 0, func() {})
	assert.Error(t, err)
	_, err = s.ScheduleInterval("bad", 0, func() {})
	assert.Error(t, err)

	s.Start()
	defer s.Stop()
	next, ok := s.Next("sweep")
	require.True(t, ok)
	assert.Equal(t, 7, next.Hour())
	assert.Equal(t, 30, next.Minute())
	_, ok = s.Next("missing")
	assert.False(t, ok)
}
