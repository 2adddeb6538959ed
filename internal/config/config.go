// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Model artifacts
	ModelDir      string // directory holding model_config.json etc; searched if empty
	ModelEndpoint string // inference sidecar predict URL

	// Scoring
	Threshold float64 // optional override of the config's optimal_threshold; 0 = use optimal

	// History
	HistoryFile string // optional CSV mirror of the prediction history

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint; empty disables tracing

	// Rate limiting
	RateLimitRPM int
}

// Defaults
const (
	DefaultPort         = "8080"
	DefaultEnv          = "development"
	DefaultLogLevel     = "info"
	DefaultRateLimitRPM = 120
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", DefaultPort),
		Env:           getEnv("ENV", DefaultEnv),
		LogLevel:      getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:   os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		ModelDir:      os.Getenv("MODEL_DIR"),    // Optional, default search paths apply
		ModelEndpoint: os.Getenv("MODEL_ENDPOINT"),
		Threshold:     getEnvFloat("THRESHOLD", 0),
		HistoryFile:   os.Getenv("HISTORY_FILE"),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		RateLimitRPM:  int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimitRPM)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.ModelEndpoint == "" {
		return fmt.Errorf("MODEL_ENDPOINT is required")
	}

	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("THRESHOLD must be in [0, 1]")
	}

	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
