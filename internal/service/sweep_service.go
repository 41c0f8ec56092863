package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskbridge/internal/dates"
	"taskbridge/internal/model"
	"taskbridge/internal/notify"
	"taskbridge/internal/recurrence"
	"taskbridge/internal/repository"
)

// SweepLockName is the lock every sweep takes before expanding.
const SweepLockName = "daily-sweep"

const (
	defaultLockWait = 30 * time.Second
	lockPoll        = 500 * time.Millisecond
	lockTTL         = 10 * time.Minute
)

// SweepConfig wires a SweepService.
type SweepConfig struct {
	Tasks    *repository.TaskRepository
	Locks    *repository.LockRepository
	Reader   *TaskService
	Engine   *recurrence.Engine
	Dates    *dates.Normalizer
	Digest   *DigestService
	Notifier notify.Notifier
	// LockWait bounds how long a sweep waits for another one to finish.
	LockWait time.Duration
}

// SweepResult describes one sweep.
type SweepResult struct {
	Day     string
	Skipped bool
	Created []model.Task
	Broken  int
}

// SweepService materializes today's occurrences of every mother task.
type SweepService struct {
	cfg   SweepConfig
	owner string
}

func NewSweepService(cfg SweepConfig) *SweepService {
	if cfg.LockWait <= 0 {
		cfg.LockWait = defaultLockWait
	}
	if cfg.Engine == nil {
		cfg.Engine = recurrence.NewEngine()
	}
	host, _ := os.Hostname()
	return &SweepService{cfg: cfg, owner: fmt.Sprintf("%s/%s", host, uuid.NewString()[:8])}
}

// Run performs one sweep for today. When another sweep holds the lock past
// the bounded wait, Run skips without error.
func (s *SweepService) Run(ctx context.Context) (SweepResult, error) {
	res := SweepResult{Day: s.cfg.Dates.Today()}

	if err := s.acquire(ctx); err != nil {
		if errors.Is(err, repository.ErrLockHeld) {
			log.Info("skip sweep: another sweep holds the lock")
			res.Skipped = true
			return res, nil
		}
		return res, err
	}
	defer func() {
		// Release even when ctx is already done.
		if err := s.cfg.Locks.Release(context.WithoutCancel(ctx), SweepLockName, s.owner); err != nil {
			log.Warnf("release sweep lock: %v", err)
		}
	}()

	tasks, err := s.cfg.Reader.Tasks(ctx)
	if err != nil {
		return res, fmt.Errorf("load tasks: %w", err)
	}
	exp := s.cfg.Engine.Expand(tasks, res.Day)
	res.Broken = len(exp.Skipped)

	recs := make([]model.TaskRecord, 0, len(exp.Children))
	for _, child := range exp.Children {
		rec, err := model.RecordFromTask(child)
		if err != nil {
			log.WithField("task", child.ID).Warnf("skip occurrence: %v", err)
			continue
		}
		recs = append(recs, rec)
	}
	stored, err := s.cfg.Tasks.CreateBatch(ctx, recs)
	if err != nil {
		return res, fmt.Errorf("store occurrences: %w", err)
	}
	// A client may have stored some of today's children since the read.
	created := make(map[string]bool, len(stored))
	for _, rec := range stored {
		created[rec.ID] = true
	}
	for _, child := range exp.Children {
		if created[child.ID] {
			res.Created = append(res.Created, child)
		}
	}
	log.Infof("sweep %s: %d occurrences created, %d mothers skipped", res.Day, len(res.Created), res.Broken)

	s.sendDigest(ctx, res)
	return res, nil
}

func (s *SweepService) acquire(ctx context.Context) error {
	attempts := uint(s.cfg.LockWait/lockPoll) + 1
	return retry.Do(
		func() error {
			return s.cfg.Locks.TryAcquire(ctx, SweepLockName, s.owner, lockTTL)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(lockPoll),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(func(err error) bool { return errors.Is(err, repository.ErrLockHeld) }),
		retry.LastErrorOnly(true),
	)
}

func (s *SweepService) sendDigest(ctx context.Context, res SweepResult) {
	if s.cfg.Digest == nil || s.cfg.Notifier == nil {
		return
	}
	text, err := s.cfg.Digest.DailySummary(ctx, res.Day, res.Created)
	if err != nil {
		log.Warnf("build digest: %v", err)
		return
	}
	notify.Send(ctx, s.cfg.Notifier, notify.Info, text)
}
