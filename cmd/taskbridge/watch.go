package main

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"taskbridge/internal/board"
	"taskbridge/internal/gateway"
	"taskbridge/internal/model"
	"taskbridge/internal/notify"
	"taskbridge/internal/recurrence"
	"taskbridge/internal/repository"
	"taskbridge/internal/service"
	"taskbridge/internal/sync"
)

// client is the local side: the board, its cache and its reconciler.
type client struct {
	gateway    *gateway.Client
	board      *board.Synced
	reconciler *sync.Reconciler
	cacheDB    *gorm.DB
}

func (a *app) newGateway() *gateway.Client {
	return gateway.New(a.cfg.GatewayURL, a.cfg.RequestTimeout, a.cfg.Dates())
}

func (a *app) openClient(ctx context.Context) (*client, error) {
	gw := a.newGateway()
	c := &client{gateway: gw}

	var cache board.Cache
	if a.cfg.CachePath != "" {
		db, err := repository.OpenCache(a.cfg.CachePath)
		if err != nil {
			return nil, fmt.Errorf("local cache: %w", err)
		}
		c.cacheDB = db
		cache = repository.NewSnapshotRepository(db)
	}

	c.board = board.NewSynced(board.Options{
		Remotes: board.Remotes{
			Tasks:   gateway.NewMutator[model.Task](gw, model.EntityTask),
			Users:   gateway.NewMutator[model.User](gw, model.EntityUser),
			Clients: gateway.NewMutator[model.Client](gw, model.EntityClient),
		},
		Notifier:              a.notifier,
		Cooldown:              a.cfg.Cooldown,
		CallTimeout:           a.cfg.RequestTimeout,
		PerCollectionCooldown: a.cfg.PerCollectionCooldown,
		Context:               ctx,
		Engine:                recurrence.NewEngine(),
		Dates:                 a.cfg.Dates(),
		Cache:                 cache,
	})
	c.reconciler = sync.NewReconciler(sync.ReconcilerConfig{
		Sources: c.board.Sources(board.Fetchers{Tasks: gw.Tasks, Users: gw.Users, Clients: gw.Clients}),
		OnPersistentFailure: func(err error, n int) {
			notify.Send(ctx, a.notifier, notify.Warning,
				fmt.Sprintf("Could not reach the task gateway %d times in a row: %v", n, err))
		},
	})
	return c, nil
}

// start brings the board up: the cached copy first, then what the last
// run left undelivered, then the remote snapshot. Without the gateway the
// cached copy is kept and writes queue up locally.
func (c *client) start(ctx context.Context, timeout time.Duration) {
	restored, err := c.board.Restore(ctx)
	if err != nil {
		log.Warnf("local cache: %v", err)
	}

	status, err := c.gateway.Health(ctx)
	if err != nil {
		log.Warnf("gateway unreachable, working from the local copy: %v", err)
		return
	}
	log.Infof("gateway: %s", status.Message)

	if c.board.Pending() > 0 {
		if err := flushOrReport(ctx, c, timeout); err != nil {
			// Pulling now would hide the writes that are still queued.
			log.Warn(err)
			return
		}
	}
	if _, err := c.reconciler.Load(ctx); err != nil {
		if restored {
			log.Warnf("initial load failed, keeping the local copy: %v", err)
			return
		}
		log.Warnf("initial load: %v", err)
	}
}

// close records the board for the next run and releases the cache.
func (c *client) close(ctx context.Context) {
	if err := c.board.Persist(ctx); err != nil {
		log.Warn(err)
	}
	if c.cacheDB == nil {
		return
	}
	if sqlDB, err := c.cacheDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep a local copy in step with the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.openClient(ctx)
			if err != nil {
				return err
			}
			defer c.close(context.WithoutCancel(ctx))

			c.start(ctx, a.cfg.RequestTimeout)
			log.Infof("loaded %d tasks, %d users, %d clients",
				c.board.Tasks.Len(), c.board.Users.Len(), c.board.Clients.Len())

			scheduler := service.NewSchedulerService(a.cfg.Location())
			if _, err := scheduler.ScheduleInterval("poll", a.cfg.PollInterval, func() {
				if c.board.Pending() > 0 {
					// Retry writes queued while the gateway was away.
					if err := c.board.Flush(ctx); err != nil {
						return
					}
				}
				res, err := c.reconciler.Tick(ctx)
				if err != nil || res.Skipped {
					return
				}
				for _, name := range res.Replaced {
					log.WithField("collection", name).Info("remote changes applied")
				}
			}); err != nil {
				return err
			}
			scheduler.Start()
			defer scheduler.Stop()

			<-ctx.Done()
			if err := flushOrReport(context.WithoutCancel(ctx), c, a.cfg.RequestTimeout); err != nil {
				log.Warn(err)
			}
			return nil
		},
	}
}

// flushOrReport waits for pending operations and reports what is left.
func flushOrReport(ctx context.Context, c *client, timeout time.Duration) error {
	flushCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := c.board.Flush(flushCtx); err != nil {
		return fmt.Errorf("%d operations not delivered: %w", c.board.Pending(), err)
	}
	return nil
}
