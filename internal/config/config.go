package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server reads from the environment.
type Config struct {
	MongoURI string
	DBName   string
	Port     string

	// JWTSecret signs both owner session tokens and magic-link tokens.
	// There is deliberately no fallback value: a missing secret is fatal.
	JWTSecret string

	// BaseURL is the public origin used when building magic-link URLs
	// and login emails, e.g. "https://reviews.example.com".
	BaseURL string

	HCaptchaSecret string

	ResendAPIKey string
	FromEmail    string

	// WebhookTimeout bounds each outbound webhook delivery.
	WebhookTimeout time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// Load .env (ignore error in production — env vars set directly)
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:       os.Getenv("MONGODB_URI"),
		DBName:         getEnv("DB_NAME", "plethora"),
		Port:           getEnv("PORT", "8080"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		HCaptchaSecret: os.Getenv("HCAPTCHA_SECRET_KEY"),
		ResendAPIKey:   os.Getenv("RESEND_API_KEY"),
		FromEmail:      os.Getenv("FROM_EMAIL"),
		WebhookTimeout: 10 * time.Second,
	}

	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGODB_URI is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
