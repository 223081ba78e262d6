package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries the environment for both the ledger and reconciler binaries.
type Config struct {
	Env  string
	Port string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	RedisURL string

	KafkaBrokers string
	KafkaTopic   string

	StripeSecretKey  string
	StripeWebhookKey string
	CheckoutSuccess  string // redirect target after gateway checkout
	CheckoutCancel   string

	LedgerBaseURL  string // reconciler → ledger
	JWTSecret      string
	AllowedOrigins []string // origins the embedded frame may post from

	PollInitialDelay time.Duration
	PollInterval     time.Duration
	PollMaxAttempts  int
}

// LoadLedger loads configuration for the ledger service.
func LoadLedger() (*Config, error) {
	_ = godotenv.Load()

	cfg := baseConfig("8087")
	cfg.StripeSecretKey = os.Getenv("STRIPE_API_KEY")
	cfg.StripeWebhookKey = os.Getenv("STRIPE_WEBHOOK_SECRET")
	cfg.CheckoutSuccess = getEnv("CHECKOUT_SUCCESS_URL", "https://app.proofengine.io/checkout/return")
	cfg.CheckoutCancel = getEnv("CHECKOUT_CANCEL_URL", "https://app.proofengine.io/checkout/cancelled")

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" ||
		cfg.StripeSecretKey == "" || cfg.StripeWebhookKey == "" {
		return nil, fmt.Errorf("missing required environment variables")
	}

	return cfg, nil
}

// LoadReconciler loads configuration for the reconciliation engine.
func LoadReconciler() (*Config, error) {
	_ = godotenv.Load()

	cfg := baseConfig("8088")
	cfg.LedgerBaseURL = os.Getenv("LEDGER_BASE_URL")
	cfg.RedisURL = getEnv("REDIS_URL", "redis://localhost:6379/0")
	cfg.KafkaBrokers = getEnv("KAFKA_BROKERS", "localhost:9092")
	cfg.KafkaTopic = getEnv("KAFKA_PAYMENT_TOPIC", "payment-events")
	cfg.AllowedOrigins = strings.Split(getEnv("GATEWAY_ALLOWED_ORIGINS", "https://checkout.stripe.com"), ",")

	cfg.PollInitialDelay = getEnvDuration("POLL_INITIAL_DELAY", 2*time.Second)
	cfg.PollInterval = getEnvDuration("POLL_INTERVAL", 3*time.Second)
	cfg.PollMaxAttempts = getEnvInt("POLL_MAX_ATTEMPTS", 60)

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" ||
		cfg.LedgerBaseURL == "" {
		return nil, fmt.Errorf("missing required environment variables")
	}

	return cfg, nil
}

func baseConfig(defaultPort string) *Config {
	return &Config{
		Env:              getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", defaultPort),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Dubai"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
