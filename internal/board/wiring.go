package board

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"taskbridge/internal/dates"
	"taskbridge/internal/model"
	"taskbridge/internal/notify"
	"taskbridge/internal/recurrence"
	"taskbridge/internal/sync"
)

// Remotes are the gateway ends of the three collections.
type Remotes struct {
	Tasks   sync.Remote[model.Task]
	Users   sync.Remote[model.User]
	Clients sync.Remote[model.Client]
}

// Fetchers read the remote collections for the reconciler.
type Fetchers struct {
	Tasks   func(ctx context.Context) ([]model.Task, error)
	Users   func(ctx context.Context) ([]model.User, error)
	Clients func(ctx context.Context) ([]model.Client, error)
}

type Options struct {
	Remotes     Remotes
	Notifier    notify.Notifier
	Cooldown    time.Duration
	CallTimeout time.Duration
	// PerCollectionCooldown gives each collection its own cooldown instead
	// of one shared across all three.
	PerCollectionCooldown bool
	Context               context.Context
	Now                   func() time.Time
	Engine                *recurrence.Engine
	Dates                 *dates.Normalizer
	// Cache, when set, receives the board after every change.
	Cache Cache
}

// Synced is a Board whose stores replay through gateway queues.
type Synced struct {
	*Board
	cooldowns [3]*sync.Cooldown

	ctx       context.Context
	now       func() time.Time
	cache     Cache
	persistMu stdsync.Mutex
}

// NewSynced builds empty local collections wired to opts.Remotes.
func NewSynced(opts Options) *Synced {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	s := &Synced{ctx: ctx, now: opts.Now, cache: opts.Cache}
	if s.now == nil {
		s.now = time.Now
	}
	shared := sync.NewCooldown(opts.Cooldown, opts.Now)
	for i := range s.cooldowns {
		if opts.PerCollectionCooldown {
			s.cooldowns[i] = sync.NewCooldown(opts.Cooldown, opts.Now)
		} else {
			s.cooldowns[i] = shared
		}
	}

	tasks := sync.NewStore[model.Task](nil, newQueue(s, opts, "tasks", opts.Remotes.Tasks, s.cooldowns[0]), s.cooldowns[0])
	users := sync.NewStore[model.User](nil, newQueue(s, opts, "users", opts.Remotes.Users, s.cooldowns[1]), s.cooldowns[1])
	clients := sync.NewStore[model.Client](nil, newQueue(s, opts, "clients", opts.Remotes.Clients, s.cooldowns[2]), s.cooldowns[2])
	if s.cache != nil {
		tasks.Observe(s.persistQuietly)
		users.Observe(s.persistQuietly)
		clients.Observe(s.persistQuietly)
	}
	s.Board = New(tasks, users, clients, opts.Engine, opts.Dates)
	return s
}

func newQueue[T any](s *Synced, opts Options, name string, remote sync.Remote[T], cd *sync.Cooldown) *sync.Queue[T] {
	ctx := s.ctx
	return sync.NewQueue(sync.QueueConfig[T]{
		Name:        name,
		Remote:      remote,
		CallTimeout: opts.CallTimeout,
		Cooldown:    cd,
		Context:     ctx,
		Now:         opts.Now,
		OnSuccess: func(sync.Operation[T]) { s.persistQuietly() },
		OnFailure: func(op sync.Operation[T], err error) {
			notify.Send(ctx, opts.Notifier, notify.Warning,
				fmt.Sprintf("Could not save %s %s (%s), will retry: %v", name, op.EntityID, op.Kind, err))
		},
	})
}

// Sources binds the collections to their remote readers.
func (s *Synced) Sources(f Fetchers) []sync.Source {
	return []sync.Source{
		sync.Bind("tasks", s.Tasks, s.cooldowns[0], f.Tasks),
		sync.Bind("users", s.Users, s.cooldowns[1], f.Users),
		sync.Bind("clients", s.Clients, s.cooldowns[2], f.Clients),
	}
}

// Flush drains every queue, stopping at the first failure.
func (s *Synced) Flush(ctx context.Context) error {
	if err := s.Clients.Queue().Flush(ctx); err != nil {
		return err
	}
	if err := s.Users.Queue().Flush(ctx); err != nil {
		return err
	}
	return s.Tasks.Queue().Flush(ctx)
}

// Pending is the number of operations not yet delivered.
func (s *Synced) Pending() int {
	return s.Tasks.Queue().Pending() + s.Users.Queue().Pending() + s.Clients.Queue().Pending()
}
