package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the trading agent.
type Config struct {
	Port string

	// Universe and data
	Universe     []string
	LookbackDays int

	// Venue credentials. When either is empty the agent runs against the
	// simulated venue.
	VenueAPIKey    string
	VenueAPISecret string
	SimStartCash   float64

	// Risk limits (fractions of portfolio value unless noted)
	MaxPositionFraction float64
	MaxRiskFraction     float64
	MaxPositions        int
	DailyLossLimit      float64
	StopLossFraction    float64

	// Scheduling
	TradingInterval  int // minutes between trading cycles
	PositionInterval int // minutes between position-management cycles

	// Strategy config file (YAML); empty means built-in defaults.
	StrategyConfigPath string

	// Database
	DBPath string

	// Auth
	JWTSecret   string
	APIPassword string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the agent still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                getEnv("PORT", "8080"),
		Universe:            splitAndTrim(getEnv("UNIVERSE", "AAPL,MSFT,GOOGL,AMZN,NVDA")),
		LookbackDays:        getEnvInt("LOOKBACK_DAYS", 100),
		VenueAPIKey:         os.Getenv("VENUE_API_KEY"),
		VenueAPISecret:      os.Getenv("VENUE_API_SECRET"),
		SimStartCash:        getEnvFloat("SIM_START_CASH", 10000.0),
		MaxPositionFraction: getEnvFloat("MAX_POSITION_FRACTION", 0.20),
		MaxRiskFraction:     getEnvFloat("MAX_RISK_FRACTION", 0.02),
		MaxPositions:        getEnvInt("MAX_POSITIONS", 5),
		DailyLossLimit:      getEnvFloat("DAILY_LOSS_LIMIT", 0.05),
		StopLossFraction:    getEnvFloat("STOP_LOSS_FRACTION", 0.02),
		TradingInterval:     getEnvInt("TRADING_INTERVAL_MINUTES", 30),
		PositionInterval:    getEnvInt("POSITION_INTERVAL_MINUTES", 5),
		StrategyConfigPath:  getEnv("STRATEGY_CONFIG", ""),
		DBPath:              getEnv("DB_PATH", "./data/trading.db"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		APIPassword:         os.Getenv("API_PASSWORD"),
	}, nil
}

// SimMode reports whether the agent should trade against the simulated
// venue instead of a live one.
func (c *Config) SimMode() bool {
	return c.VenueAPIKey == "" || c.VenueAPISecret == ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, strings.ToUpper(t))
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
