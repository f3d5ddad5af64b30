// Package config handles loading and validating configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the whale-copy-lab daemons.
type Config struct {
	// Hyperliquid info API
	HyperliquidAPIURL string
	HyperliquidWSURL  string
	HyperliquidMaxRPS float64
	SlippagePct       float64

	// Ingestion
	IngestInterval time.Duration
	EnableWSIngest bool

	// Copier
	CopierPollInterval time.Duration

	// Binance market data (price backfill)
	BinanceAPIKey    string
	BinanceSecretKey string

	// Storage. Empty DSNs switch the daemons to in-memory stores.
	DatabaseURL   string
	ClickHouseDSN string

	// Metrics. Empty disables the /metrics listener.
	MetricsAddr string
}

// Load reads configuration from environment variables with fallback to a
// .env file. Priority order: environment variables > .env file > defaults.
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		HyperliquidAPIURL: getEnv("HYPERLIQUID_API_URL", "https://api.hyperliquid.xyz"),
		HyperliquidWSURL:  getEnv("HYPERLIQUID_WS_URL", "wss://api.hyperliquid.xyz/ws"),
		HyperliquidMaxRPS: getEnvFloat("HYPERLIQUID_MAX_RPS", 3.0),
		SlippagePct:       getEnvFloat("HYPERLIQUID_SLIPPAGE_PCT", 1.0),

		IngestInterval: time.Duration(getEnvInt("INGEST_INTERVAL_SECONDS", 300)) * time.Second,
		EnableWSIngest: getEnvBool("ENABLE_WS_INGEST", false),

		CopierPollInterval: time.Duration(getEnvInt("COPIER_POLL_MS", 1000)) * time.Millisecond,

		BinanceAPIKey:    getEnv("BINANCE_API_KEY", ""),
		BinanceSecretKey: getEnv("BINANCE_SECRET_KEY", ""),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		ClickHouseDSN: getEnv("CLICKHOUSE_DSN", ""),

		MetricsAddr: getEnv("METRICS_ADDR", ":9100"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.HyperliquidAPIURL == "" {
		return fmt.Errorf("HYPERLIQUID_API_URL is required")
	}

	if c.HyperliquidMaxRPS <= 0 {
		return fmt.Errorf("HYPERLIQUID_MAX_RPS must be positive")
	}

	if c.SlippagePct < 0 {
		return fmt.Errorf("HYPERLIQUID_SLIPPAGE_PCT must not be negative")
	}

	if c.IngestInterval < time.Second {
		return fmt.Errorf("INGEST_INTERVAL_SECONDS must be at least 1")
	}

	if c.CopierPollInterval < 100*time.Millisecond {
		return fmt.Errorf("COPIER_POLL_MS must be at least 100")
	}

	if c.EnableWSIngest && c.HyperliquidWSURL == "" {
		return fmt.Errorf("HYPERLIQUID_WS_URL is required when ENABLE_WS_INGEST is set")
	}

	return nil
}

// MaskedBinanceKey returns the API key with most characters hidden for logging.
func (c *Config) MaskedBinanceKey() string {
	return maskSecret(c.BinanceAPIKey)
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as a float64 or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean or returns a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
