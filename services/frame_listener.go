package services

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/eastemblem/proofengine-payments/metrics"
	"github.com/eastemblem/proofengine-payments/models"

	"go.uber.org/zap"
)

// FrameListener is the push channel: it receives raw messages relayed from the
// embedded gateway surface and forwards typed signals to subscribed sessions.
// The surface is cross-origin and untrusted, so nothing beyond the typed
// classification ever leaves this package, and a success here is only a hint.
type FrameListener struct {
	allowedOrigins map[string]struct{}
	logger         *zap.Logger

	mu    sync.RWMutex
	sinks map[string]func(models.GatewaySignal)
}

func NewFrameListener(allowedOrigins []string, logger *zap.Logger) *FrameListener {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		if o != "" {
			allowed[o] = struct{}{}
		}
	}
	return &FrameListener{
		allowedOrigins: allowed,
		logger:         logger,
		sinks:          make(map[string]func(models.GatewaySignal)),
	}
}

// Subscribe registers a sink for one session. Acquired on entering the
// awaiting-confirmation step, released on every terminal transition.
func (l *FrameListener) Subscribe(orderReference string, sink func(models.GatewaySignal)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks[orderReference] = sink
}

// Unsubscribe drops the session's sink. Safe to call twice.
func (l *FrameListener) Unsubscribe(orderReference string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sinks, orderReference)
}

// Subscribed reports whether a session currently holds a subscription.
func (l *FrameListener) Subscribed(orderReference string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.sinks[orderReference]
	return ok
}

// Deliver classifies one raw frame message and forwards it to the session's
// sink. Messages from unknown origins and unrecognized payloads are dropped;
// pending markers are swallowed, they exist only to suppress premature
// failure inference.
func (l *FrameListener) Deliver(orderReference, origin string, payload []byte) {
	if _, ok := l.allowedOrigins[origin]; !ok {
		l.logger.Warn("Dropping frame message from unknown origin",
			zap.String("order_reference", orderReference),
			zap.String("origin", origin))
		return
	}

	sig := ClassifyFramePayload(payload)
	metrics.FrameMessages.WithLabelValues(string(sig.Outcome)).Inc()

	switch sig.Outcome {
	case models.GatewayUnknown, models.GatewayPending:
		return
	}

	l.mu.RLock()
	sink, ok := l.sinks[orderReference]
	l.mu.RUnlock()
	if !ok {
		// Session already terminal or never existed. Late messages are expected.
		l.logger.Debug("No subscription for frame message",
			zap.String("order_reference", orderReference))
		return
	}

	l.logger.Info("Gateway signal received",
		zap.String("order_reference", orderReference),
		zap.String("outcome", string(sig.Outcome)))
	sink(sig)
}

// ClassifyFramePayload parses a raw frame message into the closed signal type.
// The payload is either a structured object with a type discriminator or a
// freeform string carrying keyword markers; anything else is unknown.
func ClassifyFramePayload(payload []byte) models.GatewaySignal {
	var msg models.FrameMessage
	if err := json.Unmarshal(payload, &msg); err == nil && msg.Type != "" {
		switch msg.Type {
		case models.FramePaymentSuccess:
			return models.GatewaySignal{Outcome: models.GatewaySuccess}
		case models.FramePaymentError:
			reason := msg.Error
			if reason == "" {
				reason = "payment failed"
			}
			return models.GatewaySignal{Outcome: models.GatewayError, Reason: reason}
		case models.FramePaymentCancelled:
			return models.GatewaySignal{Outcome: models.GatewayCancelled}
		case models.FramePaymentPending:
			return models.GatewaySignal{Outcome: models.GatewayPending}
		default:
			return models.GatewaySignal{Outcome: models.GatewayUnknown}
		}
	}

	text := string(payload)
	var quoted string
	if err := json.Unmarshal(payload, &quoted); err == nil {
		text = quoted
	}
	return classifyFreeform(text)
}

// Keyword markers are matched case-sensitively; the gateway emits them verbatim.
func classifyFreeform(text string) models.GatewaySignal {
	switch {
	case strings.Contains(text, "successful"),
		strings.Contains(text, "authorised"),
		strings.Contains(text, "completed"):
		return models.GatewaySignal{Outcome: models.GatewaySuccess}
	case strings.Contains(text, "failed"), strings.Contains(text, "declined"):
		return models.GatewaySignal{Outcome: models.GatewayError, Reason: text}
	case strings.Contains(text, "cancelled"):
		return models.GatewaySignal{Outcome: models.GatewayCancelled}
	default:
		return models.GatewaySignal{Outcome: models.GatewayUnknown}
	}
}
