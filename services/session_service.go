package services

import (
	"context"
	"time"

	"github.com/eastemblem/proofengine-payments/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionService starts checkout attempts: it asks the ledger to create the
// payment session and hands the result to the reconciler. Creation is never
// retried automatically; a retry is a fresh call producing a fresh order
// reference.
type SessionService struct {
	ledger     LedgerClient
	reconciler *Reconciler
	logger     *zap.Logger
}

func NewSessionService(ledger LedgerClient, reconciler *Reconciler, logger *zap.Logger) *SessionService {
	return &SessionService{ledger: ledger, reconciler: reconciler, logger: logger}
}

// StartCheckout walks the session from form through creating into
// awaiting-confirmation. On creation failure the returned session is terminal
// Failed and was never registered with the reconciler: there is no order
// reference yet, so there is nothing to clean up on the ledger side.
func (s *SessionService) StartCheckout(ctx context.Context, intent models.PaymentIntent) (models.PaymentSession, error) {
	session := models.PaymentSession{
		UserID:    intent.UserID,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
		Purpose:   intent.Purpose,
		Step:      models.StepCreating,
		CreatedAt: time.Now().UTC(),
	}

	resp, err := s.ledger.CreatePayment(ctx, models.CreatePaymentRequest{
		UserID:         intent.UserID,
		Amount:         intent.Amount,
		Currency:       intent.Currency,
		Purpose:        intent.Purpose,
		Metadata:       intent.Metadata,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		s.logger.Warn("Payment session creation failed", zap.Error(err))
		now := time.Now().UTC()
		session.Step = models.StepFailed
		session.FailureReason = err.Error()
		session.ResolvedAt = &now
		return session, err
	}

	session.OrderReference = resp.OrderReference
	session.GatewayURL = resp.GatewayURL
	session.Step = models.StepAwaitingConfirmation

	s.logger.Info("Checkout session started",
		zap.String("order_reference", session.OrderReference),
		zap.String("user_id", session.UserID))

	return s.reconciler.Begin(session), nil
}
