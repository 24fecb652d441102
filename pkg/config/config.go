package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConversionPolicy controls how the import pipeline reacts when the
// exchange-rate lookup fails for a row.
type ConversionPolicy string

const (
	// ConversionPolicyIsolate records the failure as a per-row error and
	// keeps processing the remaining rows.
	ConversionPolicyIsolate ConversionPolicy = "isolate"
	// ConversionPolicyAbort fails the whole import on the first
	// conversion error.
	ConversionPolicyAbort ConversionPolicy = "abort"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Exchange ExchangeConfig
	Import   ImportConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type ExchangeConfig struct {
	BaseURL string
	Timeout time.Duration
	// CacheMaxAge bounds how long a fetched rate stays in the in-memory
	// cache before the daily purge drops it.
	CacheMaxAge time.Duration
}

type ImportConfig struct {
	// MaxFileBytes caps the size of an uploaded CSV.
	MaxFileBytes int64
	// RateWorkers bounds concurrent exchange-rate lookups per import.
	RateWorkers int
	// OnConversionError selects the enrichment failure policy.
	OnConversionError ConversionPolicy
	// ArchiveDir is where raw uploads are kept for audit. Empty disables
	// archiving.
	ArchiveDir string
}

type MetricsConfig struct {
	Enabled bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 100),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 200),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "rupee-ledger"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Exchange: ExchangeConfig{
			BaseURL:     getEnv("EXCHANGE_BASE_URL", "http://localhost:3000"),
			Timeout:     getEnvAsDuration("EXCHANGE_TIMEOUT", 5*time.Second),
			CacheMaxAge: getEnvAsDuration("EXCHANGE_CACHE_MAX_AGE", 7*24*time.Hour),
		},
		Import: ImportConfig{
			MaxFileBytes:      int64(getEnvAsInt("IMPORT_MAX_FILE_BYTES", 5<<20)),
			RateWorkers:       getEnvAsInt("IMPORT_RATE_WORKERS", 8),
			OnConversionError: ConversionPolicy(getEnv("IMPORT_ON_CONVERSION_ERROR", string(ConversionPolicyIsolate))),
			ArchiveDir:        getEnv("IMPORT_ARCHIVE_DIR", "./uploads"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	switch cfg.Import.OnConversionError {
	case ConversionPolicyIsolate, ConversionPolicyAbort:
	default:
		return nil, fmt.Errorf("invalid IMPORT_ON_CONVERSION_ERROR: %q", cfg.Import.OnConversionError)
	}

	if cfg.Import.RateWorkers < 1 {
		cfg.Import.RateWorkers = 1
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
