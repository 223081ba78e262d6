package models

import "time"

// PaymentEvent is published to Kafka when an entitlement is activated so the
// rest of the product (dashboard, scoring, investor matching) can react.
type PaymentEvent struct {
	Type           string    `json:"type"` // e.g. "payment_succeeded"
	OrderReference string    `json:"order_reference"`
	UserID         string    `json:"user_id"`
	Product        string    `json:"product"`
	Amount         int       `json:"amount"`   // smallest currency unit
	Currency       string    `json:"currency"` // "usd", "aed"
	Timestamp      time.Time `json:"timestamp"`
}

// CreatePaymentRequest is the ledger's create-payment contract.
type CreatePaymentRequest struct {
	UserID         string            `json:"user_id"`
	Amount         int               `json:"amount" binding:"required,min=1"`
	Currency       string            `json:"currency" binding:"required"`
	Purpose        string            `json:"purpose" binding:"required"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// CreatePaymentResponse is returned by the ledger on session creation.
type CreatePaymentResponse struct {
	OrderReference string `json:"order_reference"`
	GatewayURL     string `json:"gateway_url"`
}

// StatusResponse is the ledger's get-status contract.
type StatusResponse struct {
	OrderReference string            `json:"order_reference"`
	Status         TransactionStatus `json:"status"`
	FailureReason  string            `json:"failure_reason,omitempty"`
}
