package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskbridge/internal/model"
)

// TaskRepository stores task rows.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Upsert inserts rec, or overwrites the row with the same id.
func (r *TaskRepository) Upsert(ctx context.Context, rec model.TaskRecord) error {
	return upsertRow(ctx, r.db, &rec, "task")
}

func (r *TaskRepository) Update(ctx context.Context, rec model.TaskRecord) (bool, error) {
	return updateRow(ctx, r.db, rec.ID, &rec, "task")
}

func (r *TaskRepository) Delete(ctx context.Context, id string) (bool, error) {
	return deleteRow[model.TaskRecord](ctx, r.db, id, "task")
}

// List returns every row in insertion order.
func (r *TaskRepository) List(ctx context.Context) ([]model.TaskRecord, error) {
	return listRows[model.TaskRecord](ctx, r.db, "tasks")
}

// CreateBatch inserts recs in one transaction and returns the rows that
// were stored. A row whose id or whose (parent, day) occurrence is already
// taken is skipped.
func (r *TaskRepository) CreateBatch(ctx context.Context, recs []model.TaskRecord) ([]model.TaskRecord, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	var stored []model.TaskRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range recs {
			ok, err := insertTask(tx, &rec)
			if err != nil {
				return err
			}
			if ok {
				stored = append(stored, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create %d tasks", len(recs))
	}
	return stored, nil
}

// Insert stores rec unless its id or its occurrence is already taken, and
// reports whether it did.
func (r *TaskRepository) Insert(ctx context.Context, rec model.TaskRecord) (bool, error) {
	ok, err := insertTask(r.db.WithContext(ctx), &rec)
	return ok, errors.Wrapf(err, "insert task %s", rec.ID)
}

func insertTask(db *gorm.DB, rec *model.TaskRecord) (bool, error) {
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindOccurrence returns parentID's child starting on day, or nil.
func (r *TaskRepository) FindOccurrence(ctx context.Context, parentID, day string) (*model.TaskRecord, error) {
	var rec model.TaskRecord
	err := r.db.WithContext(ctx).
		Where("parent_task_id = ? AND start_date = ?", parentID, day).
		Limit(1).Find(&rec).Error
	if err != nil {
		return nil, errors.Wrapf(err, "find occurrence of %s on %s", parentID, day)
	}
	if rec.ID == "" {
		return nil, nil
	}
	return &rec, nil
}
