package main

import (
	"log"
	"strings"
	"time"

	"github.com/eastemblem/proofengine-payments/apperrors"
	"github.com/eastemblem/proofengine-payments/config"
	"github.com/eastemblem/proofengine-payments/controllers"
	"github.com/eastemblem/proofengine-payments/database"
	"github.com/eastemblem/proofengine-payments/kafka"
	"github.com/eastemblem/proofengine-payments/logger"
	"github.com/eastemblem/proofengine-payments/models"
	"github.com/eastemblem/proofengine-payments/repository"
	"github.com/eastemblem/proofengine-payments/routes"
	"github.com/eastemblem/proofengine-payments/services"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadReconciler()
	if err != nil {
		log.Fatal("[Reconciler] Failed to load config:", err)
	}

	logger.Initialize(cfg.Env)
	defer logger.Log.Sync()

	db, err := database.ConnectPostgres(cfg, logger.Log, &models.Entitlement{})
	if err != nil {
		log.Fatal("[Reconciler] Failed to connect to DB:", err)
	}
	defer database.Close(db)

	redisClient, err := database.NewRedisClient(cfg.RedisURL, logger.Log)
	if err != nil {
		log.Fatal("[Reconciler] Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	producer := kafka.NewPaymentEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic)
	defer producer.Close()

	entitlementRepo := repository.NewGormEntitlementRepo(db)
	activator := services.NewEntitlementService(entitlementRepo, redisClient, producer, logger.Log)

	ledgerClient := services.NewHTTPLedgerClient(cfg.LedgerBaseURL, 10*time.Second)
	listener := services.NewFrameListener(cfg.AllowedOrigins, logger.Log)
	poller := services.NewStatusPoller(ledgerClient, services.PollConfig{
		InitialDelay: cfg.PollInitialDelay,
		Interval:     cfg.PollInterval,
		MaxAttempts:  cfg.PollMaxAttempts,
	}, logger.Log)

	reconciler := services.NewReconciler(ledgerClient, activator, listener, poller, logger.Log)
	defer reconciler.Close()

	sessions := services.NewSessionService(ledgerClient, reconciler, logger.Log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger())
	r.Use(apperrors.ErrorMiddleware())

	cc := &controllers.CheckoutController{
		Sessions:   sessions,
		Reconciler: reconciler,
		Listener:   listener,
		Logger:     logger.Log,
	}
	routes.RegisterCheckoutRoutes(r, cc, cfg.JWTSecret)

	log.Println("[Reconciler] Running on port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("[Reconciler] Server failed:", err)
	}
}
