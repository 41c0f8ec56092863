package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"taskbridge/internal/recurrence"
	"taskbridge/internal/repository"
	"taskbridge/internal/server"
	"taskbridge/internal/service"
)

// backend is the server side: database, services and the sweep.
type backend struct {
	db        *gorm.DB
	tasks     *service.TaskService
	directory *service.DirectoryService
	mutations *service.MutationService
	sweep     *service.SweepService
}

func (a *app) openBackend() (*backend, error) {
	db, err := repository.NewDB(a.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	norm := a.cfg.Dates()
	taskRepo := repository.NewTaskRepository(db)
	userRepo := repository.NewUserRepository(db)
	clientRepo := repository.NewClientRepository(db)

	b := &backend{
		db:        db,
		tasks:     service.NewTaskService(taskRepo, norm),
		directory: service.NewDirectoryService(userRepo, clientRepo),
		mutations: service.NewMutationService(taskRepo, userRepo, clientRepo, norm),
	}
	b.sweep = service.NewSweepService(service.SweepConfig{
		Tasks:    taskRepo,
		Locks:    repository.NewLockRepository(db),
		Reader:   b.tasks,
		Engine:   recurrence.NewEngine(),
		Dates:    norm,
		Digest:   service.NewDigestService(b.tasks, b.directory),
		Notifier: a.notifier,
		LockWait: a.cfg.LockWait,
	})
	return b, nil
}

func (b *backend) Close() {
	if sqlDB, err := b.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway and the daily sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := a.openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			scheduler := service.NewSchedulerService(a.cfg.Location())
			if _, err := scheduler.ScheduleDaily(service.SweepLockName, a.cfg.SweepHour, 0, func() {
				jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
				defer cancel()
				if _, err := b.sweep.Run(jobCtx); err != nil {
					log.Errorf("sweep: %v", err)
				}
			}); err != nil {
				return fmt.Errorf("schedule sweep: %w", err)
			}
			scheduler.Start()
			defer scheduler.Stop()

			gin.SetMode(gin.ReleaseMode)
			srv := server.New(b.mutations, b.tasks, b.directory)
			if next, ok := scheduler.Next(service.SweepLockName); ok {
				log.Infof("daily sweep at %02d:00 %s, next run %s", a.cfg.SweepHour, a.cfg.TimeZone, next.Format(time.RFC3339))
			}
			return srv.Run(ctx, a.cfg.ListenAddr)
		},
	}
}

func newSweepCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Materialize today's occurrences once",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.sweep.Run(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Skipped {
				fmt.Fprintln(out, "another sweep is running; skipped")
				return nil
			}
			fmt.Fprintf(out, "%s: %d occurrences created, %d recurring tasks skipped\n", res.Day, len(res.Created), res.Broken)
			for _, t := range res.Created {
				fmt.Fprintf(out, "  %s  %s\n", t.ID, t.Title)
			}
			return nil
		},
	}
}
