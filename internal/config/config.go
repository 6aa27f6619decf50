package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
// It follows the 12-factor app methodology by prioritizing environment variables.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Webhook    WebhookConfig
	Dispatcher DispatcherConfig
	Retry      RetryConfig
}

type ServerConfig struct {
	Port        string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// WebhookConfig carries the SafeHaven webhook contract: the shared signing
// secret and the header names events arrive under.
type WebhookConfig struct {
	Secret          string
	EventIDHeader   string
	SignatureHeader string
}

// DispatcherConfig sizes the async processing pool.
type DispatcherConfig struct {
	MinWorkers    int
	MaxWorkers    int
	QueueCapacity int
	ShutdownGrace time.Duration
}

// RetryConfig drives the out-of-band sweep over FAILED and stale
// PROCESSING rows.
type RetryConfig struct {
	MaxAttempts    int
	RetryAfter     time.Duration
	SweepInterval  time.Duration
	BatchSize      int
	StaleThreshold time.Duration
}

// LoadConfig loads configuration from environment variables.
// Defaults can be set here if needed.
func LoadConfig() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "safehaven"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Webhook: WebhookConfig{
			Secret:          getEnv("SAFEHAVEN_WEBHOOK_SECRET", ""),
			EventIDHeader:   getEnv("SAFEHAVEN_EVENT_ID_HEADER", "X-SafeHaven-Event-Id"),
			SignatureHeader: getEnv("SAFEHAVEN_SIGNATURE_HEADER", "X-SafeHaven-Signature"),
		},
		Dispatcher: DispatcherConfig{
			MinWorkers:    getEnvAsInt("DISPATCHER_MIN_WORKERS", 5),
			MaxWorkers:    getEnvAsInt("DISPATCHER_MAX_WORKERS", 10),
			QueueCapacity: getEnvAsInt("DISPATCHER_QUEUE_CAPACITY", 100),
			ShutdownGrace: getEnvAsDuration("DISPATCHER_SHUTDOWN_GRACE", 60*time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts:    getEnvAsInt("WEBHOOK_RETRY_MAX_ATTEMPTS", 5),
			RetryAfter:     getEnvAsDuration("WEBHOOK_RETRY_AFTER", 5*time.Minute),
			SweepInterval:  getEnvAsDuration("WEBHOOK_RETRY_SWEEP_INTERVAL", time.Minute),
			BatchSize:      getEnvAsInt("WEBHOOK_RETRY_BATCH_SIZE", 100),
			StaleThreshold: getEnvAsDuration("WEBHOOK_STALE_THRESHOLD", 15*time.Minute),
		},
	}, nil
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
