package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind identifies where in the payment lifecycle an error arose.
type Kind string

const (
	// KindCreation: the payment session could not be created (network or
	// validation). Terminal; retrying starts an entirely new session.
	KindCreation Kind = "creation_error"
	// KindGatewayDeclined: the gateway explicitly reported failure. Trusted
	// without a ledger round-trip since it cannot be spoofed into a success.
	KindGatewayDeclined Kind = "gateway_declined"
	// KindVerification: a ledger status query failed in transport, distinct
	// from the ledger answering "failed". Retried by the next poll tick.
	KindVerification Kind = "verification_error"
	// KindUserCancelled: the user abandoned the checkout.
	KindUserCancelled Kind = "user_cancelled"
	// KindUnresolvedTimeout: polling gave up without a terminal answer. Soft:
	// the session stays open rather than being forced into failure.
	KindUnresolvedTimeout Kind = "unresolved_timeout"
)

// Error is the application error carried across service boundaries.
type Error struct {
	Kind    Kind   `json:"kind,omitempty"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error.
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Creation builds a terminal session-creation error.
func Creation(message string, err error) *Error {
	return &Error{Kind: KindCreation, Code: http.StatusBadGateway, Message: message, Err: err}
}

// GatewayDeclined builds an explicit gateway failure with the declared reason.
func GatewayDeclined(reason string) *Error {
	return &Error{Kind: KindGatewayDeclined, Code: http.StatusPaymentRequired, Message: reason}
}

// Verification builds a transport-level status-query failure.
func Verification(message string, err error) *Error {
	return &Error{Kind: KindVerification, Code: http.StatusBadGateway, Message: message, Err: err}
}

// UserCancelled builds the user-abandoned-checkout error.
func UserCancelled(orderReference string) *Error {
	return &Error{Kind: KindUserCancelled, Code: http.StatusConflict, Message: "payment cancelled by user: " + orderReference}
}

// UnresolvedTimeout marks a session whose polling budget ran out undecided.
func UnresolvedTimeout(orderReference string) *Error {
	return &Error{Kind: KindUnresolvedTimeout, Code: http.StatusAccepted, Message: "payment still unverified: " + orderReference}
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// Common error types
var (
	ErrBadRequest     = New(http.StatusBadRequest, "Bad request", nil)
	ErrUnauthorized   = New(http.StatusUnauthorized, "Unauthorized", nil)
	ErrNotFound       = New(http.StatusNotFound, "Not found", nil)
	ErrConflict       = New(http.StatusConflict, "Conflict", nil)
	ErrInternalServer = New(http.StatusInternalServerError, "Internal server error", nil)
)

// ErrorMiddleware maps errors attached to the gin context into JSON responses.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			var appErr *Error
			if !errors.As(err, &appErr) {
				appErr = New(http.StatusInternalServerError, "Internal server error", err)
			}

			c.JSON(appErr.Code, appErr)
			c.Abort()
		}
	}
}
