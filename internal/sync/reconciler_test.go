package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbridge/internal/model"
)

type fakeFetch struct {
	mu    stdsync.Mutex
	items []model.Client
	err   error
	calls int
}

func (f *fakeFetch) Fetch(ctx context.Context) ([]model.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Client(nil), f.items...), nil
}

func (f *fakeFetch) set(items []model.Client, err error) {
	f.mu.Lock()
	f.items, f.err = items, err
	f.mu.Unlock()
}

func (f *fakeFetch) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type reconcilerFixture struct {
	clock  *manualClock
	cd     *Cooldown
	store  *Store[model.Client]
	remote *fakeRemote
	fetch  *fakeFetch
	rec    *Reconciler
}

func newReconcilerFixture(t *testing.T, initial []model.Client) *reconcilerFixture {
	t.Helper()
	f := &reconcilerFixture{
		clock:  &manualClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		remote: newFakeRemote(),
		fetch:  &fakeFetch{},
	}
	f.cd = NewCooldown(15*time.Second, f.clock.Now)
	q := NewQueue(QueueConfig[model.Client]{Name: "clients", Remote: f.remote, Cooldown: f.cd})
	f.store = NewStore(initial, q, f.cd)
	f.rec = NewReconciler(ReconcilerConfig{
		Sources: []Source{Bind("clients", f.store, f.cd, f.fetch.Fetch)},
	})
	return f
}

func TestReconciler_CooldownBoundary(t *testing.T) {
	f := newReconcilerFixture(t, nil)
	start := f.clock.Now()

	f.store.Create(model.Client{ID: "local", Name: "Local"})
	f.store.Queue().Wait()
	// The successful sync re-touched the cooldown at the same instant.
	f.fetch.set([]model.Client{{ID: "remote", Name: "Remote"}}, nil)

	f.clock.Set(start.Add(15*time.Second - time.Millisecond))
	res, err := f.rec.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "cooldown", res.Reason)
	assert.Zero(t, f.fetch.Calls())
	assert.Equal(t, []model.Client{{ID: "local", Name: "Local"}}, f.store.Snapshot())

	f.clock.Set(start.Add(15*time.Second + time.Millisecond))
	res, err = f.rec.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, []string{"clients"}, res.Replaced)
	assert.Equal(t, []model.Client{{ID: "remote", Name: "Remote"}}, f.store.Snapshot())
}

func TestReconciler_EmptySnapshotNeverOverwrites(t *testing.T) {
	f := newReconcilerFixture(t, []model.Client{{ID: "c1", Name: "Acme"}})
	f.fetch.set(nil, nil)

	res, err := f.rec.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Replaced)
	assert.Equal(t, 1, f.fetch.Calls())
	assert.Equal(t, []model.Client{{ID: "c1", Name: "Acme"}}, f.store.Snapshot())
}

func TestReconciler_EqualSnapshotIsLeftAlone(t *testing.T) {
	f := newReconcilerFixture(t, []model.Client{{ID: "c1", Name: "Acme"}})
	f.fetch.set([]model.Client{{ID: "c1", Name: "Acme"}}, nil)

	res, err := f.rec.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Replaced)

	f.fetch.set([]model.Client{{ID: "c1", Name: "Acme"}, {ID: "c2", Name: "Globex"}}, nil)
	res, err = f.rec.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"clients"}, res.Replaced)
	assert.Equal(t, 2, f.store.Len())
}

func TestReconciler_FailuresReportedAtThreshold(t *testing.T) {
	f := newReconcilerFixture(t, []model.Client{{ID: "c1"}})
	var reported []int
	f.rec = NewReconciler(ReconcilerConfig{
		Sources:          []Source{Bind("clients", f.store, f.cd, f.fetch.Fetch)},
		FailureThreshold: 3,
		OnPersistentFailure: func(err error, n int) {
			reported = append(reported, n)
		},
	})
	f.fetch.set(nil, errors.New("gateway unreachable"))

	for i := 0; i < 4; i++ {
		_, err := f.rec.Tick(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, 4, f.rec.failureCount())
	assert.Equal(t, []int{3}, reported)
	assert.Equal(t, []model.Client{{ID: "c1"}}, f.store.Snapshot(), "a failed pull changes nothing")

	f.fetch.set([]model.Client{{ID: "c1"}}, nil)
	_, err := f.rec.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, f.rec.failureCount())
}

func TestReconciler_LoadIgnoresCooldown(t *testing.T) {
	f := newReconcilerFixture(t, nil)
	f.cd.Touch()
	f.fetch.set([]model.Client{{ID: "c1"}}, nil)

	res, err := f.rec.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	res, err = f.rec.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"clients"}, res.Replaced)
}

func TestReconciler_OverlappingTickIsSkipped(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	store := NewStore[model.Client](nil, NewQueue(QueueConfig[model.Client]{Name: "clients", Remote: newFakeRemote()}), nil)
	rec := NewReconciler(ReconcilerConfig{
		Sources: []Source{Bind("clients", store, nil, func(ctx context.Context) ([]model.Client, error) {
			close(entered)
			<-release
			return []model.Client{{ID: "c1"}}, nil
		})},
	})

	done := make(chan TickResult, 1)
	go func() {
		res, _ := rec.Tick(context.Background())
		done <- res
	}()
	<-entered

	res, err := rec.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "poll in flight", res.Reason)

	close(release)
	first := <-done
	assert.Equal(t, []string{"clients"}, first.Replaced)
}

func TestReconciler_WriteDuringFetchWins(t *testing.T) {
	f := newReconcilerFixture(t, []model.Client{{ID: "c1", Name: "Old"}})
	f.rec = NewReconciler(ReconcilerConfig{
		Sources: []Source{Bind("clients", f.store, f.cd, func(ctx context.Context) ([]model.Client, error) {
			// The user edits while the pull is on the wire.
			f.store.Update(model.Client{ID: "c1", Name: "Edited"})
			return []model.Client{{ID: "c1", Name: "Old"}, {ID: "c2"}}, nil
		})},
	})

	res, err := f.rec.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Replaced)
	got, ok := f.store.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "Edited", got.Name)
	f.store.Queue().Wait()
}
