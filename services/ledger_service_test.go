package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/eastemblem/proofengine-payments/apperrors"
	"github.com/eastemblem/proofengine-payments/models"
	"github.com/eastemblem/proofengine-payments/services"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ---- in-memory transaction repo ----

type memTransactionRepo struct {
	mu        sync.Mutex
	records   map[string]*models.TransactionRecord
	createErr error
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{records: make(map[string]*models.TransactionRecord)}
}

func (m *memTransactionRepo) Create(_ context.Context, record *models.TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *record
	m.records[record.OrderReference] = &cp
	return nil
}

func (m *memTransactionRepo) FindByReference(_ context.Context, orderReference string) (*models.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[orderReference]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *record
	return &cp, nil
}

func (m *memTransactionRepo) FindByIdempotencyKey(_ context.Context, key string) (*models.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.records {
		if record.IdempotencyKey != nil && *record.IdempotencyKey == key {
			cp := *record
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memTransactionRepo) FindByGatewaySessionID(_ context.Context, sessionID string) (*models.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.records {
		if record.GatewaySessionID != nil && *record.GatewaySessionID == sessionID {
			cp := *record
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memTransactionRepo) MarkStatus(_ context.Context, orderReference string, status models.TransactionStatus, failureReason *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[orderReference]
	if !ok || record.Status != models.TransactionPending {
		return nil
	}
	record.Status = status
	record.FailureReason = failureReason
	return nil
}

// ---- fake checkout provider ----

type fakeCheckout struct {
	mu       sync.Mutex
	calls    int
	err      error
	lastRef  string
	lastAmnt int64
}

func (f *fakeCheckout) CreateCheckoutSession(amount int64, currency, orderReference, purpose string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastRef = orderReference
	f.lastAmnt = amount
	if f.err != nil {
		return "", "", f.err
	}
	return "cs_test_" + orderReference, "https://gateway.test/pay/" + orderReference, nil
}

func newLedgerService(repo *memTransactionRepo, checkout *fakeCheckout) services.LedgerService {
	return services.NewLedgerService(repo, checkout, zap.NewNop())
}

// ---- tests ----

func TestCreatePaymentPersistsPendingRecord(t *testing.T) {
	repo := newMemTransactionRepo()
	checkout := &fakeCheckout{}
	svc := newLedgerService(repo, checkout)

	resp, err := svc.CreatePayment(context.Background(), models.CreatePaymentRequest{
		UserID: "founder-1", Amount: 9900, Currency: "usd", Purpose: "proof-engine-report",
		IdempotencyKey: "idem-1",
	})

	assert.NoError(t, err)
	assert.NotEmpty(t, resp.OrderReference)
	assert.Contains(t, resp.GatewayURL, resp.OrderReference)
	assert.Equal(t, int64(9900), checkout.lastAmnt)

	record, err := repo.FindByReference(context.Background(), resp.OrderReference)
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionPending, record.Status)
	assert.Equal(t, "founder-1", record.UserID)
}

func TestCreatePaymentReplaysIdempotencyKey(t *testing.T) {
	repo := newMemTransactionRepo()
	checkout := &fakeCheckout{}
	svc := newLedgerService(repo, checkout)

	req := models.CreatePaymentRequest{
		UserID: "founder-1", Amount: 9900, Currency: "usd", Purpose: "proof-engine-report",
		IdempotencyKey: "idem-1",
	}

	first, err := svc.CreatePayment(context.Background(), req)
	assert.NoError(t, err)

	second, err := svc.CreatePayment(context.Background(), req)
	assert.NoError(t, err)
	assert.Equal(t, first.OrderReference, second.OrderReference)
	assert.Equal(t, first.GatewayURL, second.GatewayURL)
	assert.Equal(t, 1, checkout.calls)
}

func TestCreatePaymentCheckoutFailureIsCreationError(t *testing.T) {
	repo := newMemTransactionRepo()
	checkout := &fakeCheckout{err: errors.New("stripe unavailable")}
	svc := newLedgerService(repo, checkout)

	_, err := svc.CreatePayment(context.Background(), models.CreatePaymentRequest{
		UserID: "founder-1", Amount: 9900, Currency: "usd",
	})

	assert.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindCreation))
	assert.Empty(t, repo.records)
}

func TestGetStatusUnknownReferenceIsNotFound(t *testing.T) {
	svc := newLedgerService(newMemTransactionRepo(), &fakeCheckout{})

	_, err := svc.GetStatus(context.Background(), "ORD-missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCancelMarksPendingCancelled(t *testing.T) {
	repo := newMemTransactionRepo()
	svc := newLedgerService(repo, &fakeCheckout{})

	resp, err := svc.CreatePayment(context.Background(), models.CreatePaymentRequest{
		UserID: "founder-1", Amount: 9900, Currency: "usd",
	})
	assert.NoError(t, err)

	assert.NoError(t, svc.Cancel(context.Background(), resp.OrderReference))

	status, err := svc.GetStatus(context.Background(), resp.OrderReference)
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionCancelled, status.Status)
}

func TestCancelUnknownReferenceIsNotFound(t *testing.T) {
	svc := newLedgerService(newMemTransactionRepo(), &fakeCheckout{})
	assert.ErrorIs(t, svc.Cancel(context.Background(), "ORD-missing"), apperrors.ErrNotFound)
}

func gatewayEvent(t *testing.T, eventType, sessionID string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"id": sessionID})
	assert.NoError(t, err)
	return stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestApplyGatewayEventCompletesTransaction(t *testing.T) {
	repo := newMemTransactionRepo()
	svc := newLedgerService(repo, &fakeCheckout{})

	resp, err := svc.CreatePayment(context.Background(), models.CreatePaymentRequest{
		UserID: "founder-1", Amount: 9900, Currency: "usd",
	})
	assert.NoError(t, err)

	event := gatewayEvent(t, "checkout.session.completed", "cs_test_"+resp.OrderReference)
	assert.NoError(t, svc.ApplyGatewayEvent(context.Background(), event))

	status, err := svc.GetStatus(context.Background(), resp.OrderReference)
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionCompleted, status.Status)

	// Duplicate delivery is a no-op thanks to the pending-only status guard.
	assert.NoError(t, svc.ApplyGatewayEvent(context.Background(), event))
	status, _ = svc.GetStatus(context.Background(), resp.OrderReference)
	assert.Equal(t, models.TransactionCompleted, status.Status)
}

func TestApplyGatewayEventFailureCarriesReason(t *testing.T) {
	repo := newMemTransactionRepo()
	svc := newLedgerService(repo, &fakeCheckout{})

	resp, err := svc.CreatePayment(context.Background(), models.CreatePaymentRequest{
		UserID: "founder-1", Amount: 9900, Currency: "usd",
	})
	assert.NoError(t, err)

	event := gatewayEvent(t, "checkout.session.async_payment_failed", "cs_test_"+resp.OrderReference)
	assert.NoError(t, svc.ApplyGatewayEvent(context.Background(), event))

	status, err := svc.GetStatus(context.Background(), resp.OrderReference)
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionFailed, status.Status)
	assert.NotEmpty(t, status.FailureReason)
}

func TestApplyGatewayEventUnknownSessionIsIgnored(t *testing.T) {
	svc := newLedgerService(newMemTransactionRepo(), &fakeCheckout{})

	event := gatewayEvent(t, "checkout.session.completed", "cs_unknown")
	assert.NoError(t, svc.ApplyGatewayEvent(context.Background(), event))
}
