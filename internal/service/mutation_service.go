package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"taskbridge/internal/dates"
	"taskbridge/internal/gateway"
	"taskbridge/internal/model"
	"taskbridge/internal/repository"
)

// ErrBadMutation marks a request that can never succeed, however often it
// is retried.
var ErrBadMutation = errors.New("bad mutation")

// MutationService applies gateway mutations to the stored rows.
//
// Creates are upserts. Updates and deletes of an unknown id succeed
// without effect. A create of an occurrence that already exists for the
// same mother and day succeeds without inserting.
type MutationService struct {
	tasks   *repository.TaskRepository
	users   *repository.UserRepository
	clients *repository.ClientRepository
	dates   *dates.Normalizer
}

func NewMutationService(tasks *repository.TaskRepository, users *repository.UserRepository, clients *repository.ClientRepository, norm *dates.Normalizer) *MutationService {
	return &MutationService{tasks: tasks, users: users, clients: clients, dates: norm}
}

func (s *MutationService) Apply(ctx context.Context, req gateway.MutationRequest) error {
	op, err := model.ParseOpKind(string(req.Operation))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadMutation, err)
	}
	typ, err := model.ParseEntityType(string(req.Type))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadMutation, err)
	}
	if len(req.Item) == 0 {
		return fmt.Errorf("%w: missing item", ErrBadMutation)
	}

	switch typ {
	case model.EntityTask:
		var t model.Task
		if err := decode(req.Item, &t); err != nil {
			return err
		}
		return s.applyTask(ctx, op, t)
	case model.EntityUser:
		var u model.User
		if err := decode(req.Item, &u); err != nil {
			return err
		}
		return applyRow(ctx, op, u.ID, u, s.users.Upsert, s.users.Update, s.users.Delete)
	default:
		var c model.Client
		if err := decode(req.Item, &c); err != nil {
			return err
		}
		return applyRow(ctx, op, c.ID, c, s.clients.Upsert, s.clients.Update, s.clients.Delete)
	}
}

func (s *MutationService) applyTask(ctx context.Context, op model.OpKind, t model.Task) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: task without id", ErrBadMutation)
	}
	if op == model.OpDelete {
		_, err := s.tasks.Delete(ctx, t.ID)
		return err
	}

	if err := s.canonicalDates(&t); err != nil {
		return err
	}
	rec, err := model.RecordFromTask(t)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadMutation, err)
	}

	if op == model.OpUpdate {
		found, err := s.tasks.Update(ctx, rec)
		if err == nil && !found {
			log.WithField("task", t.ID).Debug("update of unknown task ignored")
		}
		return err
	}

	if t.IsChild() {
		// The insert is atomic against the sweep and other clients; only
		// when it loses do we look at what won.
		stored, err := s.tasks.Insert(ctx, rec)
		if err != nil || stored {
			return err
		}
		existing, err := s.tasks.FindOccurrence(ctx, *t.ParentTaskID, t.StartDate)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != t.ID {
			log.WithFields(log.Fields{"task": t.ID, "existing": existing.ID}).
				Info("occurrence already stored, create ignored")
			return nil
		}
	}
	return s.tasks.Upsert(ctx, rec)
}

func (s *MutationService) canonicalDates(t *model.Task) error {
	fields := []*string{&t.StartDate, &t.DueDate}
	if t.CompletedDate != nil {
		fields = append(fields, t.CompletedDate)
	}
	if t.Recurrence != nil && t.Recurrence.EndDate != "" {
		fields = append(fields, &t.Recurrence.EndDate)
	}
	for _, f := range fields {
		if strings.TrimSpace(*f) == "" {
			continue
		}
		day, err := s.dates.FromString(*f)
		if err != nil {
			return fmt.Errorf("%w: task %s: %v", ErrBadMutation, t.ID, err)
		}
		*f = day
	}
	return nil
}

func applyRow[T any](ctx context.Context, op model.OpKind, id string, item T,
	upsert func(context.Context, T) error,
	update func(context.Context, T) (bool, error),
	remove func(context.Context, string) (bool, error),
) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: item without id", ErrBadMutation)
	}
	switch op {
	case model.OpCreate:
		return upsert(ctx, item)
	case model.OpUpdate:
		_, err := update(ctx, item)
		return err
	default:
		_, err := remove(ctx, id)
		return err
	}
}

func decode(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decode item: %v", ErrBadMutation, err)
	}
	return nil
}
