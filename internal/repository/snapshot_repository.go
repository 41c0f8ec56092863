package repository

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskbridge/internal/model"
)

// SnapshotRepository keeps JSON documents by key.
type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save replaces the document stored under key with v.
func (r *SnapshotRepository) Save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode snapshot %s", key)
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model.Snapshot{Name: key, Value: string(raw)}).Error
	return errors.Wrapf(err, "save snapshot %s", key)
}

// Load decodes the document under key into v. It reports false when there
// is none.
func (r *SnapshotRepository) Load(ctx context.Context, key string, v any) (bool, error) {
	var row model.Snapshot
	err := r.db.WithContext(ctx).Where("name = ?", key).Limit(1).Find(&row).Error
	if err != nil {
		return false, errors.Wrapf(err, "load snapshot %s", key)
	}
	if row.Name == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(row.Value), v); err != nil {
		return false, errors.Wrapf(err, "decode snapshot %s", key)
	}
	return true, nil
}
