package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentverse-backend/internal/models"
)

// AgreementRepository handles rental agreements and the leases they belong to
type AgreementRepository struct {
	db *gorm.DB
}

func NewAgreementRepository(db *gorm.DB) *AgreementRepository {
	return &AgreementRepository{db: db}
}

// FindByLeaseID loads the agreement with its lease parties
func (r *AgreementRepository) FindByLeaseID(ctx context.Context, leaseID uuid.UUID) (*models.RentalAgreement, error) {
	var agreement models.RentalAgreement
	err := r.db.WithContext(ctx).
		Preload("Lease.Tenant").
		Preload("Lease.Landlord").
		Where("lease_id = ?", leaseID).
		First(&agreement).Error
	if err != nil {
		return nil, translate(err)
	}
	return &agreement, nil
}

// FindLease loads a lease with its parties
func (r *AgreementRepository) FindLease(ctx context.Context, leaseID uuid.UUID) (*models.Lease, error) {
	var lease models.Lease
	err := r.db.WithContext(ctx).
		Preload("Tenant").
		Preload("Landlord").
		First(&lease, "id = ?", leaseID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &lease, nil
}

// Create inserts an agreement. A second agreement for one lease yields ErrDuplicate.
func (r *AgreementRepository) Create(ctx context.Context, agreement *models.RentalAgreement) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(agreement).Error)
}

// UpdateByLeaseID locks the agreement row, hands it to fn and saves the
// result in the same transaction. Concurrent calls for one lease run one
// after another, each seeing the previous commit. If fn returns an error
// nothing is written and the error is returned as is.
func (r *AgreementRepository) UpdateByLeaseID(ctx context.Context, leaseID uuid.UUID, fn func(*models.RentalAgreement) error) (*models.RentalAgreement, error) {
	var agreement models.RentalAgreement

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("lease_id = ?", leaseID).
			First(&agreement).Error
		if err != nil {
			return translate(err)
		}

		var lease models.Lease
		if err := tx.Preload("Tenant").Preload("Landlord").First(&lease, "id = ?", leaseID).Error; err != nil {
			return translate(err)
		}
		agreement.Lease = &lease

		if err := fn(&agreement); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(&agreement).Error
	})
	if err != nil {
		return nil, err
	}
	return &agreement, nil
}

// ListPendingForUser returns agreements on the user's leases that one party
// has signed and the other has not, newest first
func (r *AgreementRepository) ListPendingForUser(ctx context.Context, userID uuid.UUID) ([]*models.RentalAgreement, error) {
	var agreements []*models.RentalAgreement
	err := r.db.WithContext(ctx).
		Joins("JOIN leases ON leases.id = rental_agreements.lease_id").
		Where("leases.tenant_id = ? OR leases.landlord_id = ?", userID, userID).
		Where("rental_agreements.status IN ?", []models.AgreementStatus{
			models.AgreementSignedByTenant,
			models.AgreementSignedByLandlord,
		}).
		Preload("Lease.Tenant").
		Preload("Lease.Landlord").
		Order("rental_agreements.generated_at DESC").
		Find(&agreements).Error
	if err != nil {
		return nil, err
	}
	return agreements, nil
}
