package services

import (
	"context"
	"sync"
	"time"

	"github.com/eastemblem/proofengine-payments/apperrors"
	"github.com/eastemblem/proofengine-payments/metrics"
	"github.com/eastemblem/proofengine-payments/models"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Activator grants the product access unlocked by a completed payment. It must
// be idempotent at its own boundary too: the reconciler's latch is
// process-local and does not survive a restart mid-verification.
type Activator interface {
	Activate(ctx context.Context, session models.PaymentSession) error
}

// signal is the internal union the per-session loop consumes. Exactly one of
// the variant fields is set.
type signal struct {
	gateway   *models.GatewaySignal
	ledger    *models.LedgerSignal
	cancel    bool
	refresh   bool
	exhausted bool
	ack       chan struct{} // closed once the signal has been applied
}

type sessionState struct {
	mu      sync.Mutex
	session models.PaymentSession

	signals    chan signal
	done       chan struct{}
	stopPoller context.CancelFunc
	release    sync.Once
	// activated is the single-fire latch: the first verified completion wins,
	// every later success-implying signal is a no-op. Only the loop goroutine
	// checks and sets it, so check-and-set is one step.
	activated bool
}

func (st *sessionState) snapshot() models.PaymentSession {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.session
}

// push enqueues a signal unless the session is already released. Channels are
// producers only; they never mutate session state themselves.
func (st *sessionState) push(sig signal) {
	select {
	case <-st.done:
	case st.signals <- sig:
	}
}

// Reconciler owns one state machine per checkout session. It consumes signals
// from the push and pull channels, applies the trust policy (push success is a
// hint requiring ledger verification; pull answers are authoritative), and
// fires terminal effects exactly once.
type Reconciler struct {
	ledger    LedgerClient
	activator Activator
	listener  *FrameListener
	poller    *StatusPoller
	logger    *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*sessionState
	closed   bool
	wg       sync.WaitGroup
}

func NewReconciler(ledger LedgerClient, activator Activator, listener *FrameListener, poller *StatusPoller, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		ledger:    ledger,
		activator: activator,
		listener:  listener,
		poller:    poller,
		logger:    logger,
		sessions:  make(map[string]*sessionState),
	}
}

// Begin registers a session that has just entered awaiting-confirmation,
// subscribes the frame listener and starts the poller. Both resources are
// scoped to the session and released on every terminal transition.
func (r *Reconciler) Begin(session models.PaymentSession) models.PaymentSession {
	pollCtx, stopPoller := context.WithCancel(context.Background())
	st := &sessionState{
		session:    session,
		signals:    make(chan signal, 16),
		done:       make(chan struct{}),
		stopPoller: stopPoller,
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		stopPoller()
		return session
	}
	r.sessions[session.OrderReference] = st
	r.mu.Unlock()

	r.listener.Subscribe(session.OrderReference, func(sig models.GatewaySignal) {
		gw := sig
		st.push(signal{gateway: &gw})
	})

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		r.poller.Run(pollCtx, session.OrderReference,
			func(sig models.LedgerSignal) {
				ls := sig
				st.push(signal{ledger: &ls})
			},
			func() {
				st.push(signal{exhausted: true})
			})
	}()
	go r.run(st)

	metrics.SessionsStarted.Inc()
	return st.snapshot()
}

// Get returns the current snapshot of a session.
func (r *Reconciler) Get(orderReference string) (models.PaymentSession, bool) {
	st, ok := r.state(orderReference)
	if !ok {
		return models.PaymentSession{}, false
	}
	return st.snapshot(), true
}

// Cancel is the explicit user cancel action: the ledger's cancel operation is
// called best-effort before the local transition so the authoritative record
// never disagrees with the client. Cancelling an already-settled session
// reports how it settled instead of pretending to cancel it.
func (r *Reconciler) Cancel(ctx context.Context, orderReference string) (models.PaymentSession, error) {
	st, ok := r.state(orderReference)
	if !ok {
		return models.PaymentSession{}, apperrors.ErrNotFound
	}
	if current := st.snapshot(); current.Step.Terminal() {
		return current, settledError(current)
	}

	ack := make(chan struct{})
	st.push(signal{cancel: true, ack: ack})
	select {
	case <-ack:
	case <-st.done:
	case <-ctx.Done():
		return st.snapshot(), ctx.Err()
	}
	return st.snapshot(), nil
}

// Refresh performs one on-demand verification. It is the manual escape hatch
// for sessions whose polling budget ran out undecided. When the ledger still
// has no terminal answer the session stays open and the caller is told so.
func (r *Reconciler) Refresh(ctx context.Context, orderReference string) (models.PaymentSession, error) {
	st, ok := r.state(orderReference)
	if !ok {
		return models.PaymentSession{}, apperrors.ErrNotFound
	}
	if current := st.snapshot(); current.Step.Terminal() {
		return current, settledError(current)
	}

	ack := make(chan struct{})
	st.push(signal{refresh: true, ack: ack})
	select {
	case <-ack:
	case <-st.done:
	case <-ctx.Done():
		return st.snapshot(), ctx.Err()
	}

	session := st.snapshot()
	if !session.Step.Terminal() {
		return session, apperrors.UnresolvedTimeout(session.OrderReference)
	}
	return session, nil
}

// settledError maps an already-terminal session onto the error taxonomy for
// callers that asked for a lifecycle action the settlement forecloses.
func settledError(session models.PaymentSession) error {
	switch session.Step {
	case models.StepCancelled:
		return apperrors.UserCancelled(session.OrderReference)
	case models.StepFailed:
		return apperrors.GatewayDeclined(session.FailureReason)
	default:
		return nil
	}
}

// Close tears the engine down, releasing every subscription and poll loop.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.closed = true
	states := make([]*sessionState, 0, len(r.sessions))
	for _, st := range r.sessions {
		states = append(states, st)
	}
	r.mu.Unlock()

	for _, st := range states {
		r.releaseResources(st)
	}
	r.wg.Wait()
}

func (r *Reconciler) state(orderReference string) (*sessionState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.sessions[orderReference]
	return st, ok
}

// run is the per-session event loop. It is the sole mutator of session state,
// which is what lets the latch check-and-set happen in a single step without
// any further locking discipline.
func (r *Reconciler) run(st *sessionState) {
	defer r.wg.Done()
	for {
		select {
		case <-st.done:
			return
		case sig := <-st.signals:
			r.apply(st, sig)
			if sig.ack != nil {
				close(sig.ack)
			}
		}
	}
}

func (r *Reconciler) apply(st *sessionState, sig signal) {
	current := st.snapshot()
	if current.Step.Terminal() {
		return
	}

	switch {
	case sig.cancel:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.ledger.Cancel(ctx, current.OrderReference); err != nil {
			// Best-effort: local cancellation proceeds regardless.
			r.logger.Warn("Ledger cancel failed",
				zap.String("order_reference", current.OrderReference), zap.Error(err))
		}
		cancel()
		r.transition(st, models.StepCancelled, "")

	case sig.exhausted:
		st.mu.Lock()
		st.session.Unresolved = true
		st.mu.Unlock()
		r.logger.Warn("Session left unresolved after polling budget",
			zap.String("order_reference", current.OrderReference),
			zap.String("step", string(current.Step)))

	case sig.gateway != nil:
		r.applyGateway(st, current, *sig.gateway)

	case sig.ledger != nil:
		r.applyLedger(st, *sig.ledger)

	case sig.refresh:
		r.verify(st)
	}
}

func (r *Reconciler) applyGateway(st *sessionState, current models.PaymentSession, sig models.GatewaySignal) {
	switch sig.Outcome {
	case models.GatewaySuccess:
		// A success hint is never believed on its own; confirm with the ledger.
		if current.Step != models.StepAwaitingConfirmation {
			return
		}
		st.mu.Lock()
		st.session.Step = models.StepVerifying
		st.mu.Unlock()
		r.verify(st)

	case models.GatewayError:
		// A declared failure cannot be spoofed into a false success, so no
		// ledger round-trip is needed.
		r.transition(st, models.StepFailed, sig.Reason)

	case models.GatewayCancelled:
		r.transition(st, models.StepCancelled, "")
	}
}

func (r *Reconciler) applyLedger(st *sessionState, sig models.LedgerSignal) {
	switch sig.Outcome {
	case models.LedgerCompleted:
		r.succeed(st)
	case models.LedgerFailed:
		r.transition(st, models.StepFailed, sig.Reason)
	case models.LedgerCancelled:
		r.transition(st, models.StepCancelled, "")
	}
}

// verify issues one authoritative status query. A pending answer keeps the
// session in verifying while the poller carries on; a transport error is left
// for the next poll tick.
func (r *Reconciler) verify(st *sessionState) {
	current := st.snapshot()
	timer := prometheus.NewTimer(metrics.VerificationDuration)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	status, err := r.ledger.GetStatus(ctx, current.OrderReference)
	cancel()
	timer.ObserveDuration()

	if err != nil {
		r.logger.Warn("Verification query failed, polling continues",
			zap.String("order_reference", current.OrderReference), zap.Error(err))
		return
	}

	switch status.Status {
	case models.TransactionCompleted:
		r.succeed(st)
	case models.TransactionFailed:
		r.transition(st, models.StepFailed, status.FailureReason)
	case models.TransactionCancelled:
		r.transition(st, models.StepCancelled, "")
	}
}

// succeed fires the verified-success transition at most once per session.
func (r *Reconciler) succeed(st *sessionState) {
	st.mu.Lock()
	if st.activated || st.session.Step.Terminal() {
		st.mu.Unlock()
		return
	}
	st.activated = true
	st.mu.Unlock()

	r.transition(st, models.StepSuccess, "")

	session := st.snapshot()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.activator.Activate(ctx, session); err != nil {
		// The payment is real; a failed activation is an operator problem,
		// never a failure screen for the user.
		r.logger.Error("Entitlement activation failed after verified payment",
			zap.String("order_reference", session.OrderReference), zap.Error(err))
		metrics.ActivationFailures.Inc()
	}
}

func (r *Reconciler) transition(st *sessionState, step models.ClientStep, reason string) {
	st.mu.Lock()
	if st.session.Step.Terminal() {
		st.mu.Unlock()
		return
	}
	st.session.Step = step
	if reason != "" {
		st.session.FailureReason = reason
	}
	// A settled session is by definition resolved.
	st.session.Unresolved = false
	now := time.Now().UTC()
	st.session.ResolvedAt = &now
	orderReference := st.session.OrderReference
	st.mu.Unlock()

	r.releaseResources(st)
	metrics.SessionsResolved.WithLabelValues(string(step)).Inc()
	r.logger.Info("Session resolved",
		zap.String("order_reference", orderReference),
		zap.String("step", string(step)),
		zap.String("reason", reason))
}

// releaseResources stops the poller and drops the frame subscription. Runs at
// most once per session, on terminal transition or engine teardown.
func (r *Reconciler) releaseResources(st *sessionState) {
	st.release.Do(func() {
		st.stopPoller()
		r.listener.Unsubscribe(st.snapshot().OrderReference)
		close(st.done)
	})
}
