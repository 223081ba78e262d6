package controllers

import (
	"io"
	"net/http"

	"github.com/eastemblem/proofengine-payments/apperrors"
	"github.com/eastemblem/proofengine-payments/middleware"
	"github.com/eastemblem/proofengine-payments/models"
	"github.com/eastemblem/proofengine-payments/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CheckoutController struct {
	Sessions   *services.SessionService
	Reconciler *services.Reconciler
	Listener   *services.FrameListener
	Logger     *zap.Logger
}

// StartCheckout begins a fresh checkout attempt. Each call produces a new
// order reference; retrying after failure or cancellation never reuses one.
func (cc *CheckoutController) StartCheckout(c *gin.Context) {
	var intent models.PaymentIntent
	if err := c.ShouldBindJSON(&intent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	intent.UserID = middleware.GetUserID(c)

	session, err := cc.Sessions.StartCheckout(c.Request.Context(), intent)
	if err != nil {
		// The failed session is still returned: the UI shows the failure
		// screen with a retry affordance that starts over.
		c.JSON(http.StatusBadGateway, gin.H{"session": session, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// GetSession reports the current step. Every terminal step is distinct, and a
// failed session always carries its order reference for support traceability.
func (cc *CheckoutController) GetSession(c *gin.Context) {
	session, ok := cc.Reconciler.Get(c.Param("orderReference"))
	if !ok {
		_ = c.Error(apperrors.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// CancelSession is the explicit user cancel action.
func (cc *CheckoutController) CancelSession(c *gin.Context) {
	session, err := cc.Reconciler.Cancel(c.Request.Context(), c.Param("orderReference"))
	if err != nil {
		cc.Logger.Info("Cancel request not applied",
			zap.String("order_reference", session.OrderReference), zap.Error(err))
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// RefreshSession runs one on-demand verification for sessions the poller left
// unresolved.
func (cc *CheckoutController) RefreshSession(c *gin.Context) {
	session, err := cc.Reconciler.Refresh(c.Request.Context(), c.Param("orderReference"))
	if err != nil {
		cc.Logger.Info("Refresh did not settle the session",
			zap.String("order_reference", session.OrderReference), zap.Error(err))
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// FrameMessage relays one raw message posted by the embedded gateway surface.
// The listener validates the origin and classifies the payload; whatever the
// outcome, the relay answers 202 so the frame learns nothing about session
// state.
func (cc *CheckoutController) FrameMessage(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}

	cc.Listener.Deliver(c.Param("orderReference"), c.GetHeader("Origin"), payload)
	c.JSON(http.StatusAccepted, gin.H{"status": "received"})
}
