package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries all runtime settings. Values come from the environment, with
// an optional .env file for local development.
type Config struct {
	Addr        string
	PGDSN       string
	FrontendURL string

	JWTSecret string
	TokenTTL  time.Duration

	FacebookAppID     string
	FacebookAppSecret string
	FacebookRedirect  string
	GraphBaseURL      string

	WebhookVerifyToken string
	WebhookSecret      string

	RateBurst    int
	RatePerSec   int
	MaxBodyBytes int64
}

// Load reads configuration from the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	return &Config{
		Addr:        getEnv("PROMPTLY_ADDR", ":8080"),
		PGDSN:       getEnv("PROMPTLY_PG_DSN", ""),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		JWTSecret: getEnv("PROMPTLY_JWT_SECRET", ""),
		TokenTTL:  getEnvDuration("PROMPTLY_TOKEN_TTL", 168*time.Hour),

		FacebookAppID:     getEnv("FACEBOOK_APP_ID", ""),
		FacebookAppSecret: getEnv("FACEBOOK_APP_SECRET", ""),
		FacebookRedirect:  getEnv("FACEBOOK_REDIRECT_URI", ""),
		GraphBaseURL:      getEnv("GRAPH_BASE_URL", "https://graph.facebook.com/v18.0"),

		WebhookVerifyToken: getEnv("WEBHOOK_VERIFY_TOKEN", ""),
		WebhookSecret:      getEnv("WEBHOOK_SECRET", ""),

		RateBurst:    getEnvInt("PROMPTLY_RATE_BURST", 20),
		RatePerSec:   getEnvInt("PROMPTLY_RATE_PER_SEC", 10),
		MaxBodyBytes: getEnvInt64("PROMPTLY_MAX_BODY_BYTES", 1<<20),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
