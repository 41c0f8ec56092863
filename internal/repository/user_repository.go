package repository

import (
	"context"

	"gorm.io/gorm"

	"taskbridge/internal/model"
)

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Upsert(ctx context.Context, u model.User) error {
	return upsertRow(ctx, r.db, &u, "user")
}

func (r *UserRepository) Update(ctx context.Context, u model.User) (bool, error) {
	return updateRow(ctx, r.db, u.ID, &u, "user")
}

func (r *UserRepository) Delete(ctx context.Context, id string) (bool, error) {
	return deleteRow[model.User](ctx, r.db, id, "user")
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	return listRows[model.User](ctx, r.db, "users")
}
