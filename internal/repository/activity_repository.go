package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/swiftfix/backoffice/internal/domain"
	"github.com/swiftfix/backoffice/internal/observability"
)

// ActivityRepository is append-only: entries are never updated or
// deleted by this subsystem.
type ActivityRepository interface {
	Append(entry *domain.ActivityLog) error
	ListRecent(limit int) ([]domain.ActivityLog, error)
}

type GormActivityRepository struct{ db *gorm.DB }

func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &GormActivityRepository{db: db}
}

func (r *GormActivityRepository) Append(entry *domain.ActivityLog) error {
	err := r.db.Create(entry).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "activity_log", "append", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "activity_log", "append", "success")
	return nil
}

func (r *GormActivityRepository) ListRecent(limit int) ([]domain.ActivityLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []domain.ActivityLog
	err := r.db.Order("created_at DESC, id DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "activity_log", "list_recent", "error")
		return entries, err
	}
	observability.RecordRepositoryOperation(context.Background(), "activity_log", "list_recent", "success")
	return entries, nil
}
