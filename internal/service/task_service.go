package service

import (
	"context"

	log "github.com/sirupsen/logrus"

	"taskbridge/internal/dates"
	"taskbridge/internal/model"
	"taskbridge/internal/repository"
)

// TaskService reads the stored task rows.
type TaskService struct {
	repo  *repository.TaskRepository
	dates *dates.Normalizer
}

func NewTaskService(repo *repository.TaskRepository, norm *dates.Normalizer) *TaskService {
	return &TaskService{repo: repo, dates: norm}
}

// Rows returns the stored rows as they are.
func (s *TaskService) Rows(ctx context.Context) ([]model.TaskRecord, error) {
	return s.repo.List(ctx)
}

// Tasks returns every row as a Task. Rows with unreadable fields are
// logged and kept in best-effort form.
func (s *TaskService) Tasks(ctx context.Context) ([]model.Task, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	tasks := make([]model.Task, 0, len(rows))
	for _, row := range rows {
		t, err := row.Task(s.dates)
		if err != nil {
			log.WithField("task", row.ID).Warnf("read task row: %v", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
