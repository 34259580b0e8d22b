package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Payment  PaymentConfig
	Cache    CacheConfig
	Tracing  TracingConfig
	Storage  StorageConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	WebhookLogFilePath string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
	EventTopic         string
}

type DatabaseConfig struct {
	Driver     string // "postgres" or "sqlite"
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type PaymentConfig struct {
	Provider              string // "razorpay" or "midtrans"
	RazorpayKeyId         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	// SignatureSecret signs the checkout "order_id|payment_id" payload.
	SignatureSecret    string
	MidtransServerKey  string
	MidtransClientKey  string
	MidtransProduction bool
	VerifyTimeout      time.Duration
}

type CacheConfig struct {
	Driver string // "redis" or "memory"
	TTL    time.Duration
}

type TracingConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
}

type StorageConfig struct {
	Driver string // "gorm" or "memory"
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	razorpaySecret := getEnv("RAZORPAY_KEY_SECRET", "")

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			WebhookLogFilePath: getEnv("WEBHOOK_LOG_FILE_PATH", "webhook.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			EventTopic:         getEnv("SUBSCRIPTION_EVENT_TOPIC", "subscription.events"),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Milk Subscriptions"),
		},
		Payment: PaymentConfig{
			Provider:              getEnv("PAYMENT_PROVIDER", "razorpay"),
			RazorpayKeyId:         getEnv("RAZORPAY_KEY_ID", ""),
			RazorpayKeySecret:     razorpaySecret,
			RazorpayWebhookSecret: getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
			SignatureSecret:       getEnv("PAYMENT_SIGNATURE_SECRET", razorpaySecret),
			MidtransServerKey:     getEnv("MIDTRANS_SERVER_KEY", ""),
			MidtransClientKey:     getEnv("MIDTRANS_CLIENT_KEY", ""),
			MidtransProduction:    getEnvAsBool("MIDTRANS_IS_PRODUCTION", false),
			VerifyTimeout:         getEnvAsDuration("PAYMENT_VERIFY_TIMEOUT", 10*time.Second),
		},
		Cache: CacheConfig{
			Driver: getEnv("CACHE_DRIVER", "memory"),
			TTL:    getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "milk-subscription-be"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Storage: StorageConfig{
			Driver: getEnv("STORAGE_DRIVER", "gorm"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
