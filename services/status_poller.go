package services

import (
	"context"
	"time"

	"github.com/eastemblem/proofengine-payments/metrics"
	"github.com/eastemblem/proofengine-payments/models"

	"go.uber.org/zap"
)

// PollConfig bounds the pull channel: first query after InitialDelay, then one
// per Interval, at most MaxAttempts in total.
type PollConfig struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxAttempts  int
}

// DefaultPollConfig gives roughly three minutes of wall clock before the
// budget runs out.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		InitialDelay: 2 * time.Second,
		Interval:     3 * time.Second,
		MaxAttempts:  60,
	}
}

// StatusPoller is the pull channel: a per-session loop querying the ledger on
// a fixed cadence. It is the only channel whose terminal answer is trusted
// without further verification, because it already asked the ledger.
type StatusPoller struct {
	ledger LedgerClient
	cfg    PollConfig
	logger *zap.Logger
}

func NewStatusPoller(ledger LedgerClient, cfg PollConfig, logger *zap.Logger) *StatusPoller {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultPollConfig()
	}
	return &StatusPoller{ledger: ledger, cfg: cfg, logger: logger}
}

// Run polls until a terminal ledger answer, the attempt budget, or ctx
// cancellation. Terminal answers go to sink; an exhausted budget goes to
// exhausted without declaring failure, since a silent gateway is not evidence
// that the payment failed. Transport errors are swallowed here and retried on
// the next tick.
func (p *StatusPoller) Run(ctx context.Context, orderReference string, sink func(models.LedgerSignal), exhausted func()) {
	timer := time.NewTimer(p.cfg.InitialDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		metrics.PollAttempts.Inc()

		status, err := p.ledger.GetStatus(ctx, orderReference)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("Status poll failed, will retry",
				zap.String("order_reference", orderReference),
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else if sig, terminal := ledgerSignalFrom(status); terminal {
			sink(sig)
			return
		}

		if attempt >= p.cfg.MaxAttempts {
			p.logger.Warn("Polling budget exhausted without a terminal answer",
				zap.String("order_reference", orderReference),
				zap.Int("attempts", attempt))
			metrics.PollBudgetExhausted.Inc()
			exhausted()
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func ledgerSignalFrom(status *models.StatusResponse) (models.LedgerSignal, bool) {
	switch status.Status {
	case models.TransactionCompleted:
		return models.LedgerSignal{Outcome: models.LedgerCompleted}, true
	case models.TransactionFailed:
		return models.LedgerSignal{Outcome: models.LedgerFailed, Reason: status.FailureReason}, true
	case models.TransactionCancelled:
		return models.LedgerSignal{Outcome: models.LedgerCancelled}, true
	default:
		return models.LedgerSignal{Outcome: models.LedgerPending}, false
	}
}
