// Package config loads the gateway configuration from the process
// environment. A .env file is honored when present so local runs match the
// deployment setup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/FikFikk/luminastore/internal/apperr"
)

type Config struct {
	HTTPPort string

	BackendBaseURL string
	BackendAPIKey  string

	ShippingBaseURL string
	ShippingAPIKey  string

	PaymentBaseURL     string
	DuitkuMerchantCode string
	DuitkuAPIKey       string

	RedisAddr    string
	KafkaBrokers []string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	QuoteTTL      time.Duration
	MethodTTL     time.Duration
	AmountBucket  int64
	QuoteDebounce time.Duration
	RetryBaseWait time.Duration
	MaxQuoteRetry int
	NotesLimit    int
}

// Load reads the environment. Only BACKEND_BASE_URL is fatal at startup;
// route-scoped credentials are checked by the routes that need them so an
// unconfigured third-party integration degrades to a 500 on that route only.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		BackendBaseURL:     os.Getenv("BACKEND_BASE_URL"),
		BackendAPIKey:      os.Getenv("BACKEND_API_KEY"),
		ShippingBaseURL:    getEnv("SHIPPING_BASE_URL", ""),
		ShippingAPIKey:     os.Getenv("SHIPPING_API_KEY"),
		PaymentBaseURL:     getEnv("PAYMENT_BASE_URL", ""),
		DuitkuMerchantCode: os.Getenv("DUITKU_MERCHANT_CODE"),
		DuitkuAPIKey:       os.Getenv("DUITKU_API_KEY"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 15*time.Second),
		ShutdownTimeout:    10 * time.Second,
		QuoteTTL:           getDuration("SHIPPING_QUOTE_TTL", 5*time.Minute),
		MethodTTL:          getDuration("PAYMENT_METHOD_TTL", 30*time.Minute),
		AmountBucket:       getInt64("PAYMENT_AMOUNT_BUCKET", 10000),
		QuoteDebounce:      getDuration("QUOTE_DEBOUNCE", 400*time.Millisecond),
		RetryBaseWait:      getDuration("QUOTE_RETRY_BASE_WAIT", time.Second),
		MaxQuoteRetry:      getInt("MAX_QUOTE_RETRIES", 3),
		NotesLimit:         getInt("ORDER_NOTES_LIMIT", 200),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}

	if cfg.BackendBaseURL == "" {
		return nil, fmt.Errorf("required environment variable BACKEND_BASE_URL not set")
	}

	return cfg, nil
}

// RequireShipping reports whether the destination-search route has its
// credentials; routes surface the config class as HTTP 500.
func (c *Config) RequireShipping() error {
	if c.ShippingAPIKey == "" {
		return apperr.Config("shipping rate lookup is not configured")
	}
	return nil
}

func (c *Config) RequirePayment() error {
	if c.DuitkuMerchantCode == "" || c.DuitkuAPIKey == "" {
		return apperr.Config("payment method lookup is not configured")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
