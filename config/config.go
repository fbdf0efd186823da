package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	PostgresTimeZone string

	RedisURL    string
	DedupWindow time.Duration

	KafkaBrokers     []string
	OrderEventsTopic string

	WhatsAppAPIVersion    string
	WhatsAppPhoneNumberID string
	WhatsAppAccessToken   string
	WhatsAppVerifyToken   string
	WhatsAppAppSecret     string

	StripeSecretKey  string
	StripeWebhookKey string
	Currency         string
	SuccessURL       string
	CancelURL        string

	PaymentTimeout    time.Duration
	ReconcileInterval time.Duration

	SeedMenu bool
}

func Load() Config {
	// Missing .env is fine, system environment takes over.
	_ = godotenv.Load()

	return Config{
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getEnv("POSTGRES_DB", "conversations"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Africa/Lagos"),

		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		DedupWindow: getDuration("DEDUP_WINDOW", 24*time.Hour),

		KafkaBrokers:     strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "order.events"),

		WhatsAppAPIVersion:    getEnv("WHATSAPP_API_VERSION", "v21.0"),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:     getEnv("WHATSAPP_APP_SECRET", ""),

		StripeSecretKey:  getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookKey: getEnv("STRIPE_WEBHOOK_KEY", ""),
		Currency:         getEnv("PAYMENT_CURRENCY", "ngn"),
		SuccessURL:       getEnv("PAYMENT_SUCCESS_URL", "https://example.com/payment/success"),
		CancelURL:        getEnv("PAYMENT_CANCEL_URL", "https://example.com/payment/cancel"),

		PaymentTimeout:    getDuration("PAYMENT_TIMEOUT", 30*time.Minute),
		ReconcileInterval: getDuration("RECONCILE_INTERVAL", 5*time.Minute),

		SeedMenu: getEnv("SEED_MENU", "false") == "true",
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
