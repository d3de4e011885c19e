// Package config loads environment-driven settings for the service.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the trading service.
type Config struct {
	Port string

	// Market
	Symbol      string
	Timeframe   string
	CandleLimit int

	// Exchange
	UseSimExchange bool
	BudaAPIKey     string
	BudaAPISecret  string

	// Engine
	LoopIntervalSeconds int
	TradingEnabled      bool // server-level kill switch for real trading
	DefaultStrategy     string
	StrategiesPath      string

	// Paper trading
	PaperInitialBalance float64
	FeePct              float64

	// Risk
	MaxTradePct     float64
	MinBalanceQuote float64
	CooldownMinutes int
	MaxDailyTrades  int

	// Persistence / auth
	DBPath    string
	JWTSecret string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                getEnv("PORT", "8080"),
		Symbol:              getEnv("SYMBOL", "BTC-CLP"),
		Timeframe:           getEnv("TIMEFRAME", "1h"),
		CandleLimit:         getEnvInt("CANDLE_LIMIT", 100),
		UseSimExchange:      getEnv("USE_SIM_EXCHANGE", "true") == "true",
		BudaAPIKey:          os.Getenv("BUDA_API_KEY"),
		BudaAPISecret:       os.Getenv("BUDA_API_SECRET"),
		LoopIntervalSeconds: getEnvInt("LOOP_INTERVAL_SECONDS", 60),
		TradingEnabled:      getEnv("TRADING_ENABLED", "false") == "true",
		DefaultStrategy:     getEnv("DEFAULT_STRATEGY", "smart_dca"),
		StrategiesPath:      getEnv("STRATEGIES_PATH", "./strategies.yaml"),
		PaperInitialBalance: getEnvFloat("PAPER_INITIAL_BALANCE", 20000),
		FeePct:              getEnvFloat("FEE_PCT", 0.008),
		MaxTradePct:         getEnvFloat("MAX_TRADE_PCT", 0.25),
		MinBalanceQuote:     getEnvFloat("MIN_BALANCE_QUOTE", 5000),
		CooldownMinutes:     getEnvInt("COOLDOWN_MINUTES", 30),
		MaxDailyTrades:      getEnvInt("MAX_DAILY_TRADES", 3),
		DBPath:              getEnv("DB_PATH", "./data/dca-core.db"),
		JWTSecret:           getEnv("JWT_SECRET", "dev-secret"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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
