package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server
	Port        string
	Environment string

	// Database
	DatabaseURL string

	// JWT
	JWTSecret    string
	JWTExpiresIn string

	// Session
	SessionSecret string

	// Business calendar
	Timezone string

	// Settlement
	SettlementMaxRetries int

	// Notifications
	NotifyWorkers       int
	NotifyQueueSize     int
	NotifyMaxAttempts   int
	NotifyRetryBackoff  time.Duration
	NotifyRetryMaxDelay time.Duration

	// Razorpay
	RazorpayKeyID     string
	RazorpayKeySecret string

	// GCP Storage
	GCPBucketName                string
	GoogleApplicationCredentials string

	// Allowed Origins
	AllowedOrigins string
}

var AppConfig *Config

// Load reads the environment into a Config without touching AppConfig.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                         getEnv("PORT", "5500"),
		Environment:                  getEnv("NODE_ENV", "development"),
		DatabaseURL:                  getEnv("DATABASE_URL", ""),
		JWTSecret:                    getEnv("JWT_SECRET", ""),
		JWTExpiresIn:                 getEnv("JWT_EXPIRES_IN", "7d"),
		SessionSecret:                getEnv("SESSION_SECRET", ""),
		Timezone:                     getEnv("APP_TIMEZONE", "Asia/Kolkata"),
		RazorpayKeyID:                getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:            getEnv("RAZORPAY_KEY_SECRET", ""),
		GCPBucketName:                getEnv("GCP_BUCKET_NAME", ""),
		GoogleApplicationCredentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		AllowedOrigins:               getEnv("ALLOWED_ORIGINS", ""),
	}

	var err error
	if cfg.SettlementMaxRetries, err = getEnvInt("SETTLEMENT_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.NotifyWorkers, err = getEnvInt("NOTIFY_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.NotifyQueueSize, err = getEnvInt("NOTIFY_QUEUE_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.NotifyMaxAttempts, err = getEnvInt("NOTIFY_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.NotifyRetryBackoff, err = getEnvDuration("NOTIFY_RETRY_BACKOFF", time.Second); err != nil {
		return nil, err
	}
	if cfg.NotifyRetryMaxDelay, err = getEnvDuration("NOTIFY_RETRY_MAX_DELAY", 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.SettlementMaxRetries < 1 {
		return nil, fmt.Errorf("SETTLEMENT_MAX_RETRIES must be at least 1")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE %q: %w", cfg.Timezone, err)
	}

	return cfg, nil
}

// LoadConfig loads environment variables into AppConfig
func LoadConfig() {
	// Load .env file if it exists (optional in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := Load()
	if err != nil {
		log.Fatal(err)
	}
	AppConfig = cfg

	log.Println("✅ Configuration loaded successfully")
}

// Location returns the business calendar timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// IsProduction returns true if running in production mode
func IsProduction() bool {
	return AppConfig.Environment == "production"
}

// IsDevelopment returns true if running in development mode
func IsDevelopment() bool {
	return AppConfig == nil || AppConfig.Environment == "development" || AppConfig.Environment == ""
}
