package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"trademon/internal/adapters/logger" // Import the logger package for LogLevel
)

// granularities is the fixed set of accepted candle sizes. Anything else is
// rejected at configuration time, not at runtime.
var granularities = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"1d":  24 * time.Hour,
}

// ParseGranularity maps a candle-size label to its bucket duration.
func ParseGranularity(size string) (time.Duration, error) {
	g, ok := granularities[strings.ToLower(size)]
	if !ok {
		return 0, fmt.Errorf("invalid candle size %q (want one of 1m, 5m, 15m, 1h, 6h, 1d)", size)
	}
	return g, nil
}

// Config holds all application configuration.
type Config struct {
	// Exchange
	UseSandbox bool // Sandbox is the default environment - safety first

	// Monitoring
	ProductID     string
	CandleSize    string
	Granularity   time.Duration
	SetupMaxCount int // Sequential-count saturation, traditionally 9

	// Two-leg trade ladder
	EntryPrice   float64
	ExitPrice    float64
	SourceAmount float64
	LadderSteps  int

	// Output
	RenderMode   string // "table" or "json"
	CombinedView bool   // one consolidated table instead of per-bias suffix views

	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // "std" or "json"

	// Connection settings
	ReconnectInterval time.Duration
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	cfg.UseSandbox = getEnvAsBool("USE_SANDBOX", true)

	cfg.ProductID = getEnv("PRODUCT_ID", "BTC-USD")
	if cfg.ProductID == "" {
		errs = append(errs, "PRODUCT_ID must be set")
	}

	cfg.CandleSize = getEnv("CANDLE_SIZE", "5m")
	cfg.Granularity, err = ParseGranularity(cfg.CandleSize)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CANDLE_SIZE: %v", err))
	}

	cfg.SetupMaxCount = getEnvAsInt("SETUP_MAX_COUNT", 9)
	if cfg.SetupMaxCount <= 0 {
		errs = append(errs, "SETUP_MAX_COUNT must be positive")
	}

	cfg.EntryPrice, err = getEnvAsFloat("ENTRY_PRICE", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ENTRY_PRICE: %v", err))
	}
	cfg.ExitPrice, err = getEnvAsFloat("EXIT_PRICE", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid EXIT_PRICE: %v", err))
	}
	cfg.SourceAmount, err = getEnvAsFloat("SOURCE_AMOUNT", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SOURCE_AMOUNT: %v", err))
	}
	cfg.LadderSteps = getEnvAsInt("LADDER_STEPS", 1)

	cfg.RenderMode = strings.ToLower(getEnv("RENDER_MODE", "json"))
	if cfg.RenderMode != "table" && cfg.RenderMode != "json" {
		errs = append(errs, fmt.Sprintf("RENDER_MODE must be 'table' or 'json', got %q", cfg.RenderMode))
	}
	cfg.CombinedView = getEnvAsBool("COMBINED_VIEW", false)

	cfg.DBPath = getEnv("DB_PATH", "./data/trademon.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "std"))
	if cfg.LogFormat != "std" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be 'std' or 'json', got %q", cfg.LogFormat))
	}

	reconnectSeconds := getEnvAsInt("RECONNECT_INTERVAL_SECONDS", 30)
	if reconnectSeconds <= 0 {
		errs = append(errs, "RECONNECT_INTERVAL_SECONDS must be positive")
	}
	cfg.ReconnectInterval = time.Duration(reconnectSeconds) * time.Second

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// ValidateLadder checks the fields the two-leg executor requires beyond the
// common set. The monitor does not need them, so they are validated here
// rather than in LoadConfig.
func (c *Config) ValidateLadder() error {
	var errs []string
	if c.EntryPrice <= 0 {
		errs = append(errs, "ENTRY_PRICE must be positive")
	}
	if c.ExitPrice <= 0 {
		errs = append(errs, "EXIT_PRICE must be positive")
	}
	if c.EntryPrice > 0 && c.ExitPrice > 0 && c.ExitPrice <= c.EntryPrice {
		errs = append(errs, "EXIT_PRICE must be greater than ENTRY_PRICE")
	}
	if c.SourceAmount <= 0 {
		errs = append(errs, "SOURCE_AMOUNT must be positive")
	}
	if c.LadderSteps <= 0 {
		errs = append(errs, "LADDER_STEPS must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("ladder configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
