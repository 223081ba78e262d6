package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reconciliation counters. Outcome labels match the terminal client steps so a
// dashboard can split verified successes from declines and cancellations.
var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_sessions_started_total",
		Help: "Checkout sessions created.",
	})

	SessionsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_sessions_resolved_total",
		Help: "Checkout sessions that reached a terminal step.",
	}, []string{"outcome"})

	PollAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_poll_attempts_total",
		Help: "Ledger status polls issued.",
	})

	PollBudgetExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_poll_budget_exhausted_total",
		Help: "Sessions whose polling budget ran out without a terminal answer.",
	})

	FrameMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_frame_messages_total",
		Help: "Messages received from the embedded gateway surface, by classification.",
	}, []string{"outcome"})

	ActivationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_activation_failures_total",
		Help: "Entitlement activations that failed after a verified payment.",
	})

	VerificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_verification_duration_seconds",
		Help:    "Latency of authoritative ledger status checks.",
		Buckets: prometheus.DefBuckets,
	})
)
