package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/swiftfix/backoffice/internal/domain"
	"github.com/swiftfix/backoffice/internal/observability"
)

// RateLimitRepository is the durable fixed-window table. It satisfies
// ratelimit.WindowStore.
type RateLimitRepository interface {
	Increment(key string, now time.Time, window time.Duration) (*domain.RateLimitWindow, error)
	DeleteExpired(now time.Time) (int64, error)
}

type GormRateLimitRepository struct{ db *gorm.DB }

func NewRateLimitRepository(db *gorm.DB) RateLimitRepository {
	return &GormRateLimitRepository{db: db}
}

// Increment bumps the live window for key, or resets it to count=1 when
// the stored reset time has been reached. The row is locked for the
// duration of the transaction so two racing requests cannot both read
// the same count; a check at exactly the reset instant starts a new
// window.
func (r *GormRateLimitRepository) Increment(key string, now time.Time, window time.Duration) (*domain.RateLimitWindow, error) {
	nowMs := now.UnixMilli()
	resetMs := now.Add(window).UnixMilli()
	var result domain.RateLimitWindow

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var w domain.RateLimitWindow
		q := tx
		// SQLite serializes writers on its own and rejects FOR UPDATE.
		if tx.Dialector.Name() != "sqlite" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		err := q.Where("key = ?", key).
			First(&w).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			result = domain.RateLimitWindow{Key: key, Count: 1, ResetTime: resetMs}
			return tx.Create(&result).Error
		case err != nil:
			return err
		}

		if nowMs >= w.ResetTime {
			w.Count = 1
			w.ResetTime = resetMs
		} else {
			w.Count++
		}
		if err := tx.Model(&domain.RateLimitWindow{}).
			Where("key = ?", key).
			Updates(map[string]any{"count": w.Count, "reset_time": w.ResetTime}).Error; err != nil {
			return err
		}
		result = w
		return nil
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "rate_limit_window", "increment", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "rate_limit_window", "increment", "success")
	return &result, nil
}

// DeleteExpired sweeps windows that elapsed without a refreshing
// request. Lingering is bounded by the sweep interval, not unbounded.
func (r *GormRateLimitRepository) DeleteExpired(now time.Time) (int64, error) {
	res := r.db.Where("reset_time <= ?", now.UnixMilli()).Delete(&domain.RateLimitWindow{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "rate_limit_window", "delete_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "rate_limit_window", "delete_expired", "success")
	return res.RowsAffected, nil
}
