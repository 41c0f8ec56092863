package sync

import (
	"reflect"
	stdsync "sync"

	"taskbridge/internal/model"
)

// Entity is a value a Store can hold.
type Entity[T any] interface {
	Key() string
	Clone() T
}

// Store is an optimistic local collection. Every mutation is applied to
// the local copy and enqueued for the remote under one lock, so local order
// and queue order always agree.
type Store[T Entity[T]] struct {
	mu       stdsync.RWMutex
	items    []T
	queue    *Queue[T]
	cooldown *Cooldown
	onChange func()
}

// NewStore wraps queue. cooldown is touched on every local mutation and
// may be shared with other stores.
func NewStore[T Entity[T]](initial []T, queue *Queue[T], cooldown *Cooldown) *Store[T] {
	s := &Store[T]{queue: queue, cooldown: cooldown}
	for _, item := range initial {
		s.items = append(s.items, item.Clone())
	}
	return s
}

// Observe registers fn to run after every local mutation and every pulled
// snapshot that replaced the collection. fn runs without the store locked.
func (s *Store[T]) Observe(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store[T]) Create(item T) {
	s.mu.Lock()
	s.items = append(s.items, item.Clone())
	s.touch()
	s.queue.Enqueue(model.OpCreate, item.Key(), item.Clone())
	s.unlockAndNotify()
}

// Update replaces the item with the same key. It reports false, and
// enqueues nothing, when no such item exists locally.
func (s *Store[T]) Update(item T) bool {
	s.mu.Lock()
	i := s.indexOf(item.Key())
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.items[i] = item.Clone()
	s.touch()
	s.queue.Enqueue(model.OpUpdate, item.Key(), item.Clone())
	s.unlockAndNotify()
	return true
}

// Remove deletes one item by key.
func (s *Store[T]) Remove(id string) (T, bool) {
	removed := s.RemoveMany([]string{id})
	if len(removed) == 0 {
		var zero T
		return zero, false
	}
	return removed[0], true
}

// RemoveMany deletes every listed item in one local step and enqueues one
// delete per removed item, in the order given.
func (s *Store[T]) RemoveMany(ids []string) []T {
	s.mu.Lock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	byID := make(map[string]T, len(ids))
	kept := s.items[:0:0]
	for _, item := range s.items {
		if _, ok := drop[item.Key()]; ok {
			byID[item.Key()] = item
			continue
		}
		kept = append(kept, item)
	}
	if len(byID) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.items = kept
	s.touch()

	removed := make([]T, 0, len(byID))
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			continue
		}
		delete(byID, id)
		removed = append(removed, item.Clone())
		s.queue.Enqueue(model.OpDelete, id, item)
	}
	s.unlockAndNotify()
	return removed
}

func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i].Clone(), true
	}
	var zero T
	return zero, false
}

// Snapshot returns a deep copy of the collection.
func (s *Store[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.items))
	for i, item := range s.items {
		out[i] = item.Clone()
	}
	return out
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store[T]) Queue() *Queue[T] { return s.queue }

// ReplaceAll swaps in items wholesale without enqueuing anything or
// notifying the observer.
func (s *Store[T]) ReplaceAll(items []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(items)
}

// reconcile applies a fetched snapshot: empty snapshots never overwrite and
// identical snapshots are left alone.
func (s *Store[T]) reconcile(fetched []T) bool {
	if len(fetched) == 0 {
		return false
	}
	s.mu.Lock()
	if reflect.DeepEqual(s.items, fetched) {
		s.mu.Unlock()
		return false
	}
	s.replace(fetched)
	s.unlockAndNotify()
	return true
}

func (s *Store[T]) unlockAndNotify() {
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Store[T]) replace(items []T) {
	next := make([]T, len(items))
	for i, item := range items {
		next[i] = item.Clone()
	}
	s.items = next
}

func (s *Store[T]) touch() {
	if s.cooldown != nil {
		s.cooldown.Touch()
	}
}

func (s *Store[T]) indexOf(id string) int {
	for i, item := range s.items {
		if item.Key() == id {
			return i
		}
	}
	return -1
}
