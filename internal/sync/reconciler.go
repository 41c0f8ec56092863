package sync

import (
	"context"
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultFailureThreshold is how many consecutive failed pulls pass before
// the failure is reported to the user.
const DefaultFailureThreshold = 5

// Source is one collection the Reconciler keeps in step with the remote.
type Source interface {
	Name() string
	// Cooling reports whether a recent local write protects the collection.
	Cooling() bool
	// Fetch loads the remote snapshot and returns a function that applies it
	// locally, reporting whether anything was replaced.
	Fetch(ctx context.Context) (apply func() bool, err error)
}

type binding[T Entity[T]] struct {
	name     string
	store    *Store[T]
	cooldown *Cooldown
	fetch    func(ctx context.Context) ([]T, error)
}

// Bind exposes store as a Source that pulls through fetch and is protected
// by cooldown.
func Bind[T Entity[T]](name string, store *Store[T], cooldown *Cooldown, fetch func(ctx context.Context) ([]T, error)) Source {
	return &binding[T]{name: name, store: store, cooldown: cooldown, fetch: fetch}
}

func (b *binding[T]) Name() string { return b.name }

func (b *binding[T]) Cooling() bool {
	return b.cooldown != nil && b.cooldown.Active()
}

func (b *binding[T]) Fetch(ctx context.Context) (func() bool, error) {
	items, err := b.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", b.name, err)
	}
	return func() bool { return b.store.reconcile(items) }, nil
}

// TickResult describes what one pull did.
type TickResult struct {
	Skipped  bool
	Reason   string
	Replaced []string
}

// ReconcilerConfig configures a Reconciler.
type ReconcilerConfig struct {
	Sources          []Source
	FailureThreshold int
	// OnPersistentFailure fires once when consecutive failures reach the threshold.
	OnPersistentFailure func(err error, failures int)
}

// Reconciler periodically replaces local collections with the remote
// snapshot, skipping collections that were written to recently.
type Reconciler struct {
	cfg      ReconcilerConfig
	inFlight atomic.Bool
	failures atomic.Int32
}

func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	return &Reconciler{cfg: cfg}
}

// Tick runs one poll. It is safe to call from overlapping timers: only one
// poll runs at a time and the others return skipped.
func (r *Reconciler) Tick(ctx context.Context) (TickResult, error) {
	return r.pull(ctx, false)
}

// Load performs the initial pull and ignores cooldowns.
func (r *Reconciler) Load(ctx context.Context) (TickResult, error) {
	return r.pull(ctx, true)
}

func (r *Reconciler) failureCount() int {
	return int(r.failures.Load())
}

func (r *Reconciler) pull(ctx context.Context, force bool) (TickResult, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return TickResult{Skipped: true, Reason: "poll in flight"}, nil
	}
	defer r.inFlight.Store(false)

	var active []Source
	for _, src := range r.cfg.Sources {
		if force || !src.Cooling() {
			active = append(active, src)
		}
	}
	if len(active) == 0 {
		log.Debug("skip pull: local write cooldown active")
		return TickResult{Skipped: true, Reason: "cooldown"}, nil
	}

	applies := make([]func() bool, len(active))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range active {
		i, src := i, src
		g.Go(func() error {
			apply, err := src.Fetch(gctx)
			applies[i] = apply
			return err
		})
	}
	if err := g.Wait(); err != nil {
		n := r.failures.Add(1)
		log.Warnf("pull failed (%d in a row): %v", n, err)
		if int(n) == r.cfg.FailureThreshold && r.cfg.OnPersistentFailure != nil {
			r.cfg.OnPersistentFailure(err, int(n))
		}
		return TickResult{}, err
	}
	r.failures.Store(0)

	var res TickResult
	for i, src := range active {
		// A write may have landed while the fetch was in flight.
		if !force && src.Cooling() {
			continue
		}
		if applies[i]() {
			res.Replaced = append(res.Replaced, src.Name())
		}
	}
	if len(res.Replaced) > 0 {
		log.Infof("pulled remote changes: %v", res.Replaced)
	}
	return res, nil
}
