package models

// GatewayOutcome classifies a message pushed from the embedded checkout frame.
// The push channel is fast but untrusted: a success outcome is a hint, never
// proof, and must be verified against the ledger before it is believed.
type GatewayOutcome string

const (
	GatewaySuccess   GatewayOutcome = "success"
	GatewayError     GatewayOutcome = "error"
	GatewayCancelled GatewayOutcome = "cancelled"
	GatewayPending   GatewayOutcome = "pending"
	// GatewayUnknown means the payload matched no known shape. Ignored, not an error.
	GatewayUnknown GatewayOutcome = "unknown"
)

// GatewaySignal is the typed result of classifying one raw frame message.
// Untrusted payload fields never flow past this classification step.
type GatewaySignal struct {
	Outcome GatewayOutcome
	Reason  string // populated for GatewayError
}

// FrameMessage is the structured form the embedded gateway surface may post.
// The frame may equally post a freeform string carrying keyword markers.
type FrameMessage struct {
	Type           string `json:"type"`
	OrderReference string `json:"orderReference,omitempty"`
	Error          string `json:"error,omitempty"`
}

const (
	FramePaymentSuccess   = "PAYMENT_SUCCESS"
	FramePaymentError     = "PAYMENT_ERROR"
	FramePaymentCancelled = "PAYMENT_CANCELLED"
	FramePaymentPending   = "PAYMENT_PENDING"
)

// LedgerOutcome classifies a ledger status query. The pull channel is slower
// but authoritative: Completed/Failed here need no further verification.
type LedgerOutcome string

const (
	LedgerPending   LedgerOutcome = "pending"
	LedgerCompleted LedgerOutcome = "completed"
	LedgerFailed    LedgerOutcome = "failed"
	LedgerCancelled LedgerOutcome = "cancelled"
)

// LedgerSignal is one authoritative answer from the transaction ledger.
type LedgerSignal struct {
	Outcome LedgerOutcome
	Reason  string // populated for LedgerFailed
}
