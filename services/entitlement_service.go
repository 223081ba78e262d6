package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eastemblem/proofengine-payments/models"
	"github.com/eastemblem/proofengine-payments/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EntitlementCache is the slice of the redis client the activator needs.
type EntitlementCache interface {
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// EventPublisher pushes payment events to the rest of the product.
type EventPublisher interface {
	SendPaymentEvent(ctx context.Context, event models.PaymentEvent) error
}

// EntitlementService flips the paid-access read-model and invalidates the
// caches other parts of the product read. Activation is idempotent at this
// boundary as well: the entitlement row's primary key absorbs replays even if
// the reconciler's in-process latch did not survive a restart.
type EntitlementService struct {
	repo     repository.EntitlementRepository
	cache    EntitlementCache
	producer EventPublisher
	logger   *zap.Logger
}

func NewEntitlementService(repo repository.EntitlementRepository, cache EntitlementCache, producer EventPublisher, logger *zap.Logger) *EntitlementService {
	return &EntitlementService{repo: repo, cache: cache, producer: producer, logger: logger}
}

func (s *EntitlementService) Activate(ctx context.Context, session models.PaymentSession) error {
	existing, err := s.repo.FindByOrderReference(ctx, session.OrderReference)
	if err == nil && existing != nil {
		s.logger.Info("Entitlement already active, skipping",
			zap.String("order_reference", session.OrderReference))
		return nil
	}

	entitlement := &models.Entitlement{
		OrderReference: session.OrderReference,
		UserID:         session.UserID,
		Product:        session.Purpose,
	}
	if err := s.repo.Activate(ctx, entitlement); err != nil {
		return fmt.Errorf("failed to activate entitlement for %s: %w", session.OrderReference, err)
	}

	// Dependent read-models repopulate on next read.
	keys := []string{
		accessCacheKey(session.UserID),
		dashboardCacheKey(session.UserID),
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn("Cache invalidation failed",
			zap.String("order_reference", session.OrderReference),
			zap.Strings("keys", keys),
			zap.Error(err))
	}

	event := models.PaymentEvent{
		Type:           "payment_succeeded",
		OrderReference: session.OrderReference,
		UserID:         session.UserID,
		Product:        session.Purpose,
		Amount:         session.Amount,
		Currency:       session.Currency,
		Timestamp:      time.Now().UTC(),
	}
	if err := s.producer.SendPaymentEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish payment event",
			zap.String("order_reference", session.OrderReference), zap.Error(err))
	}

	s.logger.Info("Entitlement activated",
		zap.String("order_reference", session.OrderReference),
		zap.String("user_id", session.UserID))
	return nil
}

func accessCacheKey(userID string) string {
	return "proofengine:access:" + userID
}

func dashboardCacheKey(userID string) string {
	return "proofengine:dashboard:" + userID
}
