package board

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"taskbridge/internal/model"
	"taskbridge/internal/sync"
)

const cacheKey = "board"

// Cache keeps the local board between runs.
type Cache interface {
	Save(ctx context.Context, key string, v any) error
	Load(ctx context.Context, key string, v any) (bool, error)
}

type cached struct {
	Tasks   []model.Task   `json:"tasks"`
	Users   []model.User   `json:"users"`
	Clients []model.Client `json:"clients"`

	PendingTasks   []sync.Operation[model.Task]   `json:"pendingTasks,omitempty"`
	PendingUsers   []sync.Operation[model.User]   `json:"pendingUsers,omitempty"`
	PendingClients []sync.Operation[model.Client] `json:"pendingClients,omitempty"`

	SavedAt time.Time `json:"savedAt"`
}

// Persist writes the collections and every undelivered operation to the
// cache. It is a no-op without one.
func (s *Synced) Persist(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	doc := cached{
		Tasks:          s.Tasks.Snapshot(),
		Users:          s.Users.Snapshot(),
		Clients:        s.Clients.Snapshot(),
		PendingTasks:   s.Tasks.Queue().Snapshot(),
		PendingUsers:   s.Users.Queue().Snapshot(),
		PendingClients: s.Clients.Queue().Snapshot(),
		SavedAt:        s.now(),
	}
	if err := s.cache.Save(ctx, cacheKey, doc); err != nil {
		return fmt.Errorf("save local board: %w", err)
	}
	return nil
}

// Restore loads the cached board into the empty local collections and
// queues what the last run could not deliver. It reports whether a cached
// board was found.
func (s *Synced) Restore(ctx context.Context) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	var doc cached
	found, err := s.cache.Load(ctx, cacheKey, &doc)
	if err != nil || !found {
		return false, err
	}

	s.Tasks.ReplaceAll(doc.Tasks)
	s.Users.ReplaceAll(doc.Users)
	s.Clients.ReplaceAll(doc.Clients)
	s.Tasks.Queue().Restore(doc.PendingTasks)
	s.Users.Queue().Restore(doc.PendingUsers)
	s.Clients.Queue().Restore(doc.PendingClients)

	if n := s.Pending(); n > 0 {
		// Undelivered writes protect the cached copy just like fresh ones.
		for _, cd := range s.cooldowns {
			cd.Touch()
		}
		log.Infof("restored %d undelivered operations from %s", n, doc.SavedAt.Format(time.RFC3339))
	}
	return true, nil
}

// persistQuietly saves after a change and only logs failures. It keeps
// working after the board's context ends so the final flush is recorded.
func (s *Synced) persistQuietly() {
	if err := s.Persist(context.WithoutCancel(s.ctx)); err != nil {
		log.Warn(err)
	}
}
