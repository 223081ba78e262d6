package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eastemblem/proofengine-payments/apperrors"
	"github.com/eastemblem/proofengine-payments/models"
	"github.com/eastemblem/proofengine-payments/repository"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LedgerService owns the canonical transaction records. It is the only writer
// of TransactionRecord status; everything else observes.
type LedgerService interface {
	CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResponse, error)
	GetStatus(ctx context.Context, orderReference string) (*models.StatusResponse, error)
	Cancel(ctx context.Context, orderReference string) error
	ApplyGatewayEvent(ctx context.Context, event stripe.Event) error
}

type ledgerServiceImpl struct {
	repo     repository.TransactionRepository
	checkout CheckoutProvider
	logger   *zap.Logger
}

func NewLedgerService(repo repository.TransactionRepository, checkout CheckoutProvider, logger *zap.Logger) LedgerService {
	return &ledgerServiceImpl{repo: repo, checkout: checkout, logger: logger}
}

// CreatePayment creates the transaction record atomically with the gateway
// checkout session. A repeated idempotency key returns the original session
// instead of opening a second one.
func (s *ledgerServiceImpl) CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResponse, error) {
	if req.IdempotencyKey != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			url := ""
			if existing.GatewayURL != nil {
				url = *existing.GatewayURL
			}
			s.logger.Info("Replayed payment creation via idempotency key",
				zap.String("order_reference", existing.OrderReference))
			return &models.CreatePaymentResponse{OrderReference: existing.OrderReference, GatewayURL: url}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Creation("failed to look up idempotency key", err)
		}
	}

	orderReference := fmt.Sprintf("ORD-%s", uuid.NewString())

	sessionID, checkoutURL, err := s.checkout.CreateCheckoutSession(int64(req.Amount), req.Currency, orderReference, req.Purpose)
	if err != nil {
		s.logger.Warn("Gateway checkout session creation failed",
			zap.String("order_reference", orderReference), zap.Error(err))
		return nil, apperrors.Creation("gateway checkout session creation failed", err)
	}

	record := &models.TransactionRecord{
		OrderReference:   orderReference,
		UserID:           req.UserID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		Purpose:          req.Purpose,
		Status:           models.TransactionPending,
		GatewaySessionID: &sessionID,
		GatewayURL:       &checkoutURL,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		record.IdempotencyKey = &key
	}

	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.Error("Failed to persist transaction record",
			zap.String("order_reference", orderReference), zap.Error(err))
		return nil, apperrors.Creation("failed to persist transaction record", err)
	}

	s.logger.Info("Payment session created",
		zap.String("order_reference", orderReference),
		zap.Int("amount", req.Amount),
		zap.String("currency", req.Currency))

	return &models.CreatePaymentResponse{OrderReference: orderReference, GatewayURL: checkoutURL}, nil
}

func (s *ledgerServiceImpl) GetStatus(ctx context.Context, orderReference string) (*models.StatusResponse, error) {
	record, err := s.repo.FindByReference(ctx, orderReference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Verification("failed to read transaction record", err)
	}

	resp := &models.StatusResponse{
		OrderReference: record.OrderReference,
		Status:         record.Status,
	}
	if record.FailureReason != nil {
		resp.FailureReason = *record.FailureReason
	}
	return resp, nil
}

// Cancel marks a pending transaction cancelled. Already-terminal records are
// untouched; the caller treats that as a no-op.
func (s *ledgerServiceImpl) Cancel(ctx context.Context, orderReference string) error {
	if _, err := s.repo.FindByReference(ctx, orderReference); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return err
	}

	if err := s.repo.MarkStatus(ctx, orderReference, models.TransactionCancelled, nil); err != nil {
		return err
	}
	s.logger.Info("Transaction cancelled", zap.String("order_reference", orderReference))
	return nil
}

// ApplyGatewayEvent updates the record in response to gateway webhooks. The
// repository's pending-only guard makes duplicate deliveries no-ops.
func (s *ledgerServiceImpl) ApplyGatewayEvent(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("invalid webhook payload: %w", err)
	}

	record, err := s.repo.FindByGatewaySessionID(ctx, sess.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("Webhook for unknown gateway session", zap.String("gateway_session_id", sess.ID))
			return nil
		}
		return err
	}

	switch event.Type {
	case "checkout.session.completed":
		if err := s.repo.MarkStatus(ctx, record.OrderReference, models.TransactionCompleted, nil); err != nil {
			return err
		}
		s.logger.Info("Transaction completed", zap.String("order_reference", record.OrderReference))

	case "checkout.session.async_payment_failed":
		reason := "gateway reported payment failure"
		if err := s.repo.MarkStatus(ctx, record.OrderReference, models.TransactionFailed, &reason); err != nil {
			return err
		}
		s.logger.Info("Transaction failed", zap.String("order_reference", record.OrderReference))

	case "checkout.session.expired":
		if err := s.repo.MarkStatus(ctx, record.OrderReference, models.TransactionCancelled, nil); err != nil {
			return err
		}
		s.logger.Info("Transaction expired", zap.String("order_reference", record.OrderReference))

	default:
		s.logger.Debug("Ignoring gateway event", zap.String("type", string(event.Type)))
	}

	return nil
}
