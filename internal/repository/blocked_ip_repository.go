package repository

import (
	"context"

	"gorm.io/gorm"

	"rentverse-backend/internal/models"
)

// BlockedIPRepository stores administratively banned addresses
type BlockedIPRepository struct {
	db *gorm.DB
}

func NewBlockedIPRepository(db *gorm.DB) *BlockedIPRepository {
	return &BlockedIPRepository{db: db}
}

// Create stores a ban. An address that is already banned yields ErrDuplicate.
func (r *BlockedIPRepository) Create(ctx context.Context, ip *models.BlockedIP) error {
	return translate(r.db.WithContext(ctx).Create(ip).Error)
}

func (r *BlockedIPRepository) Exists(ctx context.Context, ipAddress string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BlockedIP{}).
		Where("ip_address = ?", ipAddress).
		Count(&count).Error
	return count > 0, err
}
