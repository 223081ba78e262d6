package controllers

import (
	"net/http"

	"github.com/eastemblem/proofengine-payments/middleware"
	"github.com/eastemblem/proofengine-payments/models"
	"github.com/eastemblem/proofengine-payments/services"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// WebhookParser verifies and decodes gateway webhook requests.
type WebhookParser interface {
	ParseWebhook(r *http.Request) (stripe.Event, error)
}

type LedgerController struct {
	Service services.LedgerService
	Webhook WebhookParser
	Logger  *zap.Logger
}

// CreatePayment opens a transaction record plus gateway checkout session.
func (lc *LedgerController) CreatePayment(c *gin.Context) {
	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserID == "" {
		req.UserID = middleware.GetUserID(c)
	}

	resp, err := lc.Service.CreatePayment(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetStatus is polled by the reconciliation engine and called once per
// verification.
func (lc *LedgerController) GetStatus(c *gin.Context) {
	orderReference := c.Param("orderReference")

	resp, err := lc.Service.GetStatus(c.Request.Context(), orderReference)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Cancel marks a pending transaction cancelled. Best-effort from the caller's
// point of view; terminal records are untouched.
func (lc *LedgerController) Cancel(c *gin.Context) {
	orderReference := c.Param("orderReference")

	if err := lc.Service.Cancel(c.Request.Context(), orderReference); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

// GatewayWebhook applies gateway callbacks to the transaction record.
func (lc *LedgerController) GatewayWebhook(c *gin.Context) {
	event, err := lc.Webhook.ParseWebhook(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook"})
		return
	}

	if err := lc.Service.ApplyGatewayEvent(c.Request.Context(), event); err != nil {
		lc.Logger.Error("Failed to apply gateway event",
			zap.String("type", string(event.Type)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process webhook"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
