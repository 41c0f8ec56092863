package repository

import (
	"context"

	"gorm.io/gorm"

	"taskbridge/internal/model"
)

// ClientRepository manages the customers tasks are done for.
type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Upsert(ctx context.Context, c model.Client) error {
	return upsertRow(ctx, r.db, &c, "client")
}

func (r *ClientRepository) Update(ctx context.Context, c model.Client) (bool, error) {
	return updateRow(ctx, r.db, c.ID, &c, "client")
}

func (r *ClientRepository) Delete(ctx context.Context, id string) (bool, error) {
	return deleteRow[model.Client](ctx, r.db, id, "client")
}

func (r *ClientRepository) List(ctx context.Context) ([]model.Client, error) {
	return listRows[model.Client](ctx, r.db, "clients")
}
