package repository

import (
	"context"
	"time"

	"github.com/eastemblem/proofengine-payments/models"

	"gorm.io/gorm"
)

type TransactionRepository interface {
	Create(ctx context.Context, record *models.TransactionRecord) error
	FindByReference(ctx context.Context, orderReference string) (*models.TransactionRecord, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.TransactionRecord, error)
	FindByGatewaySessionID(ctx context.Context, sessionID string) (*models.TransactionRecord, error)
	MarkStatus(ctx context.Context, orderReference string, status models.TransactionStatus, failureReason *string) error
}

type gormTransactionRepo struct {
	db *gorm.DB
}

func NewGormTransactionRepo(db *gorm.DB) TransactionRepository {
	return &gormTransactionRepo{db: db}
}

func (r *gormTransactionRepo) Create(ctx context.Context, record *models.TransactionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *gormTransactionRepo) FindByReference(ctx context.Context, orderReference string) (*models.TransactionRecord, error) {
	var record models.TransactionRecord
	if err := r.db.WithContext(ctx).Where("order_reference = ?", orderReference).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *gormTransactionRepo) FindByIdempotencyKey(ctx context.Context, key string) (*models.TransactionRecord, error) {
	var record models.TransactionRecord
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *gormTransactionRepo) FindByGatewaySessionID(ctx context.Context, sessionID string) (*models.TransactionRecord, error) {
	var record models.TransactionRecord
	if err := r.db.WithContext(ctx).Where("gateway_session_id = ?", sessionID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkStatus moves a pending record to a new status. Terminal statuses are
// immutable, so the guard on the current status makes repeated webhook
// deliveries and racing cancels no-ops.
func (r *gormTransactionRepo) MarkStatus(ctx context.Context, orderReference string, status models.TransactionStatus, failureReason *string) error {
	updates := map[string]interface{}{
		"status": status,
	}
	if failureReason != nil {
		updates["failure_reason"] = failureReason
	}
	if status == models.TransactionCompleted {
		now := time.Now().UTC()
		updates["verified_at"] = now
	}
	return r.db.WithContext(ctx).Model(&models.TransactionRecord{}).
		Where("order_reference = ? AND status = ?", orderReference, models.TransactionPending).
		Updates(updates).Error
}
