package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"rentverse-backend/internal/models"
)

// ActivityRepository handles database operations for activity logs
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create appends an entry. Entries are never updated.
func (r *ActivityRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return translate(r.db.WithContext(ctx).Omit("User").Create(entry).Error)
}

// ListRecent returns the newest entries with their user joined
func (r *ActivityRepository) ListRecent(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	if limit <= 0 {
		limit = 50
	}

	var logs []*models.ActivityLog
	err := r.db.WithContext(ctx).
		Preload("User").
		Order("timestamp DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// DeleteOlderThan removes entries timestamped before cutoff
func (r *ActivityRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.ActivityLog{})
	return result.RowsAffected, result.Error
}
