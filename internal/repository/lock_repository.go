package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskbridge/internal/model"
)

// ErrLockHeld is returned by TryAcquire while another owner holds the lock.
var ErrLockHeld = errors.New("lock held")

// LockRepository hands out named, expiring locks stored as rows, so
// processes sharing the database serialise on them.
type LockRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewLockRepository(db *gorm.DB) *LockRepository {
	return &LockRepository{db: db, now: time.Now}
}

// TryAcquire takes name for owner until ttl passes. It does not wait.
func (r *LockRepository) TryAcquire(ctx context.Context, name, owner string, ttl time.Duration) error {
	now := r.now().UTC()
	var acquired bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("name = ? AND expires_at <= ?", name, now).Delete(&model.Lock{}).Error; err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.Lock{
			Name:      name,
			Owner:     owner,
			ExpiresAt: now.Add(ttl),
		})
		if res.Error != nil {
			return res.Error
		}
		acquired = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "acquire lock %s", name)
	}
	if !acquired {
		return errors.WithStack(ErrLockHeld)
	}
	return nil
}

// Release frees name if owner still holds it.
func (r *LockRepository) Release(ctx context.Context, name, owner string) error {
	err := r.db.WithContext(ctx).Where("name = ? AND owner = ?", name, owner).Delete(&model.Lock{}).Error
	return errors.Wrapf(err, "release lock %s", name)
}
