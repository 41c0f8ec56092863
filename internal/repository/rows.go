package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The remote store keeps rows keyed by a string id. These helpers give the
// three tables the same create-or-update and tolerant update/delete rules.

func upsertRow[T any](ctx context.Context, db *gorm.DB, row *T, what string) error {
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(row).Error
	return errors.Wrapf(err, "upsert %s", what)
}

// updateRow reports false when no row has the id.
func updateRow[T any](ctx context.Context, db *gorm.DB, id string, row *T, what string) (bool, error) {
	res := db.WithContext(ctx).Model(new(T)).Where("id = ?", id).
		Select("*").Omit("id", "created_at").Updates(row)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "update %s %s", what, id)
	}
	return res.RowsAffected > 0, nil
}

func deleteRow[T any](ctx context.Context, db *gorm.DB, id string, what string) (bool, error) {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "delete %s %s", what, id)
	}
	return res.RowsAffected > 0, nil
}

func listRows[T any](ctx context.Context, db *gorm.DB, what string) ([]T, error) {
	var rows []T
	if err := db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "list %s", what)
	}
	return rows, nil
}
