package routes

import (
	"github.com/eastemblem/proofengine-payments/controllers"
	"github.com/eastemblem/proofengine-payments/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterLedgerRoutes wires the transaction ledger's HTTP contract. The
// gateway webhook stays unauthenticated; its signature check is the auth.
func RegisterLedgerRoutes(r *gin.Engine, lc *controllers.LedgerController, jwtSecret string) {
	payments := r.Group("/payments")
	payments.Use(middleware.AuthMiddleware(jwtSecret))
	payments.POST("", lc.CreatePayment)
	payments.GET("/:orderReference/status", lc.GetStatus)
	payments.POST("/:orderReference/cancel", lc.Cancel)

	r.POST("/stripe/webhook", lc.GatewayWebhook)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterCheckoutRoutes wires the reconciliation engine's surface. The frame
// relay endpoint is unauthenticated by design: the embedded surface holds no
// user credentials, and the listener's origin check plus the ledger-backed
// trust policy make its messages hints at most.
func RegisterCheckoutRoutes(r *gin.Engine, cc *controllers.CheckoutController, jwtSecret string) {
	sessions := r.Group("/checkout/sessions")
	sessions.Use(middleware.AuthMiddleware(jwtSecret))
	sessions.POST("", cc.StartCheckout)
	sessions.GET("/:orderReference", cc.GetSession)
	sessions.POST("/:orderReference/cancel", cc.CancelSession)
	sessions.POST("/:orderReference/refresh", cc.RefreshSession)

	r.POST("/checkout/sessions/:orderReference/messages", cc.FrameMessage)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
