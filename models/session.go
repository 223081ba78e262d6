package models

import "time"

// ClientStep is the client-facing lifecycle of one checkout attempt.
// Forward-only within a session; a retry after Failed/Cancelled starts a brand
// new session with a new order reference.
type ClientStep string

const (
	StepForm                 ClientStep = "form"
	StepCreating             ClientStep = "creating"
	StepAwaitingConfirmation ClientStep = "awaiting_confirmation"
	StepVerifying            ClientStep = "verifying"
	StepSuccess              ClientStep = "success"
	StepFailed               ClientStep = "failed"
	StepCancelled            ClientStep = "cancelled"
)

// Terminal reports whether the step ends the session.
func (s ClientStep) Terminal() bool {
	return s == StepSuccess || s == StepFailed || s == StepCancelled
}

// PaymentIntent is what the caller wants to pay for.
type PaymentIntent struct {
	UserID   string            `json:"user_id"`
	Amount   int               `json:"amount" binding:"required,min=1"`
	Currency string            `json:"currency" binding:"required"`
	Purpose  string            `json:"purpose" binding:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PaymentSession is the transient, engine-owned state of one checkout attempt.
// It is mutated exclusively by the reconciler and discarded once a terminal
// step has been observed; the TransactionRecord is the durable audit trail.
type PaymentSession struct {
	OrderReference string     `json:"order_reference"`
	UserID         string     `json:"user_id"`
	Amount         int        `json:"amount"`
	Currency       string     `json:"currency"`
	Purpose        string     `json:"purpose"`
	Step           ClientStep `json:"step"`
	GatewayURL     string     `json:"gateway_url,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	// Unresolved is set when polling gave up without a terminal answer from
	// the ledger. The session stays open; a manual refresh can still settle it.
	Unresolved bool       `json:"unresolved,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}
