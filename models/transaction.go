package models

import (
	"time"

	"gorm.io/gorm"
)

// TransactionStatus is the ledger-owned, authoritative status of a payment.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionCancelled TransactionStatus = "cancelled"
)

// Terminal reports whether the status can no longer change.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionCompleted || s == TransactionFailed || s == TransactionCancelled
}

// TransactionRecord is the canonical transaction row. One per order reference,
// created atomically with the checkout session, kept indefinitely as audit trail.
type TransactionRecord struct {
	OrderReference   string            `gorm:"type:varchar(64);primaryKey" json:"order_reference"`
	UserID           string            `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Amount           int               `gorm:"not null" json:"amount"` // smallest currency unit
	Currency         string            `gorm:"type:varchar(10);not null" json:"currency"`
	Purpose          string            `gorm:"type:varchar(120)" json:"purpose"`
	Status           TransactionStatus `gorm:"type:varchar(20);not null" json:"status"`
	GatewaySessionID *string           `gorm:"uniqueIndex" json:"-"`
	GatewayURL       *string           `gorm:"type:varchar(1024)" json:"gateway_url,omitempty"`
	IdempotencyKey   *string           `gorm:"uniqueIndex" json:"-"`
	FailureReason    *string           `gorm:"type:varchar(512)" json:"failure_reason,omitempty"`
	VerifiedAt       *time.Time        `json:"verified_at,omitempty"`
	CreatedAt        time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt    `gorm:"index" json:"-"`
}

// Entitlement is the paid-access read-model row written exactly once per
// completed payment. The primary key on order reference makes activation
// idempotent at the database boundary.
type Entitlement struct {
	OrderReference string    `gorm:"type:varchar(64);primaryKey" json:"order_reference"`
	UserID         string    `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Product        string    `gorm:"type:varchar(120);not null" json:"product"`
	ActivatedAt    time.Time `gorm:"autoCreateTime" json:"activated_at"`
}
