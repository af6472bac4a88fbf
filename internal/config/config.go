package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabasePath  string
	MarketDataURL string
	LogLevel      string
	Port          int
	DevMode       bool

	// Portfolio ledger
	InitialBalance      float64
	CommissionRate      float64 // flat rate x notional, both sides
	MaxPositionFraction float64 // max position value as fraction of portfolio value

	// Execution gate
	AutoExecutionEnabled    bool
	EnabledInstruments      []string // initial allow-list, grows on strategy start
	MinConfidence           float64
	MaxDailyTrades          int
	MaxDailyLossFraction    float64
	BasePositionFraction    float64 // sizing baseline, scaled by confidence
	MaxAutoPositionFraction float64 // cap for automated position sizing
	MinNotional             float64

	// Allocation coordinator
	RebalanceThreshold float64
	SignalTimeoutSecs  int

	// Analytics
	RiskFreeRate float64 // annual, as decimal

	// Scheduling (cron expressions with seconds field)
	CoordinationSchedule string
	DailyResetSchedule   string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnvAsInt("PORT", 8001),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		DatabasePath:  getEnv("DATABASE_PATH", "./data/papertrader.db"),
		MarketDataURL: getEnv("MARKET_DATA_URL", "http://localhost:9000"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		InitialBalance:      getEnvAsFloat("INITIAL_BALANCE", 1_000_000),
		CommissionRate:      getEnvAsFloat("COMMISSION_RATE", 0.003),
		MaxPositionFraction: getEnvAsFloat("MAX_POSITION_FRACTION", 0.10),

		AutoExecutionEnabled:    getEnvAsBool("AUTO_EXECUTION_ENABLED", false),
		EnabledInstruments:      getEnvAsSlice("ENABLED_INSTRUMENTS"),
		MinConfidence:           getEnvAsFloat("MIN_CONFIDENCE", 0.7),
		MaxDailyTrades:          getEnvAsInt("MAX_DAILY_TRADES", 5),
		MaxDailyLossFraction:    getEnvAsFloat("MAX_DAILY_LOSS_FRACTION", 0.02),
		BasePositionFraction:    getEnvAsFloat("BASE_POSITION_FRACTION", 0.02),
		MaxAutoPositionFraction: getEnvAsFloat("MAX_AUTO_POSITION_FRACTION", 0.05),
		MinNotional:             getEnvAsFloat("MIN_NOTIONAL", 1000),

		RebalanceThreshold: getEnvAsFloat("REBALANCE_THRESHOLD", 0.05),
		SignalTimeoutSecs:  getEnvAsInt("SIGNAL_TIMEOUT_SECONDS", 30),

		RiskFreeRate: getEnvAsFloat("RISK_FREE_RATE", 0.15),

		CoordinationSchedule: getEnv("COORDINATION_SCHEDULE", "0 0 */6 * * *"),
		DailyResetSchedule:   getEnv("DAILY_RESET_SCHEDULE", "0 0 10 * * *"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and sane
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.InitialBalance <= 0 {
		return fmt.Errorf("INITIAL_BALANCE must be positive")
	}
	if c.CommissionRate < 0 {
		return fmt.Errorf("COMMISSION_RATE cannot be negative")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("MIN_CONFIDENCE must be in [0, 1]")
	}
	if c.MaxDailyTrades <= 0 {
		return fmt.Errorf("MAX_DAILY_TRADES must be positive")
	}
	if c.RebalanceThreshold <= 0 || c.RebalanceThreshold >= 1 {
		return fmt.Errorf("REBALANCE_THRESHOLD must be in (0, 1)")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.ToUpper(strings.TrimSpace(part)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
