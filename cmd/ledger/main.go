package main

import (
	"log"

	"github.com/eastemblem/proofengine-payments/apperrors"
	"github.com/eastemblem/proofengine-payments/config"
	"github.com/eastemblem/proofengine-payments/controllers"
	"github.com/eastemblem/proofengine-payments/database"
	"github.com/eastemblem/proofengine-payments/logger"
	"github.com/eastemblem/proofengine-payments/models"
	"github.com/eastemblem/proofengine-payments/repository"
	"github.com/eastemblem/proofengine-payments/routes"
	"github.com/eastemblem/proofengine-payments/services"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadLedger()
	if err != nil {
		log.Fatal("[Ledger] Failed to load config:", err)
	}

	logger.Initialize(cfg.Env)
	defer logger.Log.Sync()

	db, err := database.ConnectPostgres(cfg, logger.Log, &models.TransactionRecord{})
	if err != nil {
		log.Fatal("[Ledger] Failed to connect to DB:", err)
	}
	defer database.Close(db)

	repo := repository.NewGormTransactionRepo(db)
	stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey, cfg.CheckoutSuccess, cfg.CheckoutCancel)
	ledgerSvc := services.NewLedgerService(repo, stripeSvc, logger.Log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger())
	r.Use(apperrors.ErrorMiddleware())

	lc := &controllers.LedgerController{
		Service: ledgerSvc,
		Webhook: stripeSvc,
		Logger:  logger.Log,
	}
	routes.RegisterLedgerRoutes(r, lc, cfg.JWTSecret)

	log.Println("[Ledger] Running on port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("[Ledger] Server failed:", err)
	}
}
