package repository

import (
	"context"

	"github.com/eastemblem/proofengine-payments/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EntitlementRepository interface {
	Activate(ctx context.Context, entitlement *models.Entitlement) error
	FindByOrderReference(ctx context.Context, orderReference string) (*models.Entitlement, error)
}

type gormEntitlementRepo struct {
	db *gorm.DB
}

func NewGormEntitlementRepo(db *gorm.DB) EntitlementRepository {
	return &gormEntitlementRepo{db: db}
}

// Activate inserts the paid-access row. The order reference is the primary
// key, so replays from either confirmation channel land on DO NOTHING.
func (r *gormEntitlementRepo) Activate(ctx context.Context, entitlement *models.Entitlement) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entitlement).Error
}

func (r *gormEntitlementRepo) FindByOrderReference(ctx context.Context, orderReference string) (*models.Entitlement, error) {
	var entitlement models.Entitlement
	if err := r.db.WithContext(ctx).Where("order_reference = ?", orderReference).First(&entitlement).Error; err != nil {
		return nil, err
	}
	return &entitlement, nil
}
