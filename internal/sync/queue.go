// Package sync keeps local collections authoritative between a write and
// the next reconciling pull. Mutations are applied locally first, then
// replayed against the remote gateway in order by a head-of-line queue.
package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	log "github.com/sirupsen/logrus"

	"taskbridge/internal/model"
)

// DefaultCallTimeout bounds one gateway call. A call that times out counts
// as a failure: the head stays queued and is retried on the next trigger.
const DefaultCallTimeout = 20 * time.Second

// Operation is one pending mutation of one entity.
type Operation[T any] struct {
	EntityID   string       `json:"entityId"`
	Kind       model.OpKind `json:"kind"`
	Payload    T            `json:"payload"`
	EnqueuedAt time.Time    `json:"enqueuedAt"`

	seq uint64
}

// Remote durably applies one operation to the remote store.
type Remote[T any] interface {
	Apply(ctx context.Context, kind model.OpKind, item T) error
}

// RemoteFunc adapts a function to Remote.
type RemoteFunc[T any] func(ctx context.Context, kind model.OpKind, item T) error

func (f RemoteFunc[T]) Apply(ctx context.Context, kind model.OpKind, item T) error {
	return f(ctx, kind, item)
}

// QueueConfig wires a Queue to its remote and its observers.
type QueueConfig[T any] struct {
	Name        string
	Remote      Remote[T]
	CallTimeout time.Duration
	// Cooldown is touched after every successful call.
	Cooldown  *Cooldown
	OnSuccess func(op Operation[T])
	// OnFailure fires the first time an operation fails. Retries of the
	// same head that fail again are only logged.
	OnFailure func(op Operation[T], err error)
	// Context bounds background drains started by Enqueue.
	Context context.Context
	Now     func() time.Time
}

// Queue replays operations strictly in enqueue order. A failed head blocks
// everything behind it until a later drain succeeds.
type Queue[T any] struct {
	cfg QueueConfig[T]

	mu       stdsync.Mutex
	ops      []Operation[T]
	draining bool
	nextSeq  uint64
	// failing is the seq of the head last reported to OnFailure.
	failing uint64

	background stdsync.WaitGroup
}

func NewQueue[T any](cfg QueueConfig[T]) *Queue[T] {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Queue[T]{cfg: cfg}
}

// Enqueue appends an operation and starts a background drain. It never
// blocks on the network.
func (q *Queue[T]) Enqueue(kind model.OpKind, entityID string, payload T) {
	q.mu.Lock()
	q.nextSeq++
	q.ops = append(q.ops, Operation[T]{
		EntityID:   entityID,
		Kind:       kind,
		Payload:    payload,
		EnqueuedAt: q.cfg.Now(),
		seq:        q.nextSeq,
	})
	q.mu.Unlock()

	q.background.Add(1)
	go func() {
		defer q.background.Done()
		_ = q.Drain(q.cfg.Context)
	}()
}

// Restore appends operations left undelivered by an earlier run, in
// order, without starting a drain.
func (q *Queue[T]) Restore(ops []Operation[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, op := range ops {
		q.nextSeq++
		op.seq = q.nextSeq
		q.ops = append(q.ops, op)
	}
}

// Drain replays queued operations until the queue is empty or a call
// fails. A call while another drain is running returns nil immediately.
func (q *Queue[T]) Drain(ctx context.Context) error {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return nil
	}
	q.draining = true
	q.mu.Unlock()

	for {
		q.mu.Lock()
		if len(q.ops) == 0 {
			q.draining = false
			q.mu.Unlock()
			return nil
		}
		head := q.ops[0]
		q.mu.Unlock()

		if err := q.call(ctx, head); err != nil {
			q.mu.Lock()
			q.draining = false
			repeat := head.seq != 0 && q.failing == head.seq
			q.failing = head.seq
			pending := len(q.ops)
			q.mu.Unlock()

			entry := log.WithFields(log.Fields{"queue": q.cfg.Name, "entity": head.EntityID})
			if repeat {
				entry.Debugf("sync %s still failing, %d pending: %v", head.Kind, pending, err)
				return err
			}
			entry.Warnf("sync %s failed, %d pending: %v", head.Kind, pending, err)
			if q.cfg.OnFailure != nil {
				q.cfg.OnFailure(head, err)
			}
			return err
		}

		q.mu.Lock()
		q.ops = q.ops[1:]
		q.mu.Unlock()

		if q.cfg.Cooldown != nil {
			q.cfg.Cooldown.Touch()
		}
		log.WithFields(log.Fields{"queue": q.cfg.Name, "entity": head.EntityID}).Debugf("synced %s", head.Kind)
		if q.cfg.OnSuccess != nil {
			q.cfg.OnSuccess(head)
		}
	}
}

// Flush drains until the queue is empty, the first failure, or ctx ends.
func (q *Queue[T]) Flush(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if err := q.Drain(ctx); err != nil {
			return err
		}
		if q.Pending() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Wait blocks until background drains started by Enqueue have returned.
func (q *Queue[T]) Wait() {
	q.background.Wait()
}

func (q *Queue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Snapshot returns the queued operations, head first.
func (q *Queue[T]) Snapshot() []Operation[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Operation[T](nil), q.ops...)
}

// call runs one remote call under the per-call timeout. The deadline is
// enforced here as well, so a remote that ignores ctx cannot stall the queue.
func (q *Queue[T]) call(ctx context.Context, op Operation[T]) error {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.CallTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- q.cfg.Remote.Apply(ctx, op.Kind, op.Payload)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%s %s %s: %w", q.cfg.Name, op.Kind, op.EntityID, ctx.Err())
	}
}
