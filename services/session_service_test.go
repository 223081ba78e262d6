package services_test

import (
	"context"
	"testing"

	"github.com/eastemblem/proofengine-payments/apperrors"
	"github.com/eastemblem/proofengine-payments/models"
	"github.com/eastemblem/proofengine-payments/services"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestStartCheckoutRegistersAwaitingSession(t *testing.T) {
	ledger := newFakeLedger(models.TransactionPending)
	r, listener := newTestReconciler(ledger, &fakeActivator{}, pollDisabled)
	defer r.Close()
	svc := services.NewSessionService(ledger, r, zap.NewNop())

	session, err := svc.StartCheckout(context.Background(), models.PaymentIntent{
		UserID:   "founder-1",
		Amount:   9900,
		Currency: "usd",
		Purpose:  "proof-engine-report",
	})

	assert.NoError(t, err)
	assert.Equal(t, models.StepAwaitingConfirmation, session.Step)
	assert.NotEmpty(t, session.OrderReference)
	assert.NotEmpty(t, session.GatewayURL)
	assert.True(t, listener.Subscribed(session.OrderReference))

	got, ok := r.Get(session.OrderReference)
	assert.True(t, ok)
	assert.Equal(t, "founder-1", got.UserID)
}

func TestStartCheckoutCreationFailure(t *testing.T) {
	ledger := newFakeLedger(models.TransactionPending)
	ledger.createErr = apperrors.Creation("gateway session creation failed", nil)
	r, _ := newTestReconciler(ledger, &fakeActivator{}, pollDisabled)
	defer r.Close()
	svc := services.NewSessionService(ledger, r, zap.NewNop())

	session, err := svc.StartCheckout(context.Background(), models.PaymentIntent{
		UserID: "founder-1", Amount: 9900, Currency: "usd", Purpose: "proof-engine-report",
	})

	assert.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindCreation))
	assert.Equal(t, models.StepFailed, session.Step)
	assert.NotNil(t, session.ResolvedAt)
	// Nothing was registered: no order reference was ever issued.
	assert.Empty(t, session.OrderReference)
}

func TestRetryAfterFailureGetsFreshReference(t *testing.T) {
	ledger := newFakeLedger(models.TransactionPending)
	r, listener := newTestReconciler(ledger, &fakeActivator{}, pollDisabled)
	defer r.Close()
	svc := services.NewSessionService(ledger, r, zap.NewNop())

	intent := models.PaymentIntent{UserID: "founder-1", Amount: 9900, Currency: "usd", Purpose: "proof-engine-report"}

	first, err := svc.StartCheckout(context.Background(), intent)
	assert.NoError(t, err)

	listener.Deliver(first.OrderReference, gatewayOrigin, []byte(`{"type":"PAYMENT_ERROR","error":"card_declined"}`))
	assert.Eventually(t, func() bool {
		return stepOf(r, first.OrderReference) == models.StepFailed
	}, waitTimeout, waitTick)

	second, err := svc.StartCheckout(context.Background(), intent)
	assert.NoError(t, err)
	assert.NotEqual(t, first.OrderReference, second.OrderReference)

	// The failed attempt stays queryable with its own reference.
	assert.Equal(t, models.StepFailed, stepOf(r, first.OrderReference))
	assert.Equal(t, models.StepAwaitingConfirmation, stepOf(r, second.OrderReference))
}
