package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"dca-core/internal/api"
	"dca-core/internal/engine"
	"dca-core/internal/events"
	"dca-core/internal/monitor"
	"dca-core/internal/risk"
	"dca-core/internal/strategy"
	"dca-core/pkg/config"
	"dca-core/pkg/db"
	"dca-core/pkg/exchange"
	"dca-core/pkg/exchange/buda"
	"dca-core/pkg/exchange/sim"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("db migrations: %v", err)
	}

	var client exchange.Client
	if cfg.UseSimExchange {
		log.Println("using simulated exchange")
		client = sim.New()
	} else {
		log.Println("using Buda exchange")
		client = buda.New(cfg.BudaAPIKey, cfg.BudaAPISecret)
	}
	defer client.Close()

	strategyParams, err := strategy.LoadConfig(cfg.StrategiesPath)
	if err != nil {
		log.Fatalf("strategies config: %v", err)
	}

	bus := events.NewBus()
	metrics := monitor.NewSystemMetrics()

	engCfg := engine.Config{
		Symbol:              cfg.Symbol,
		Timeframe:           cfg.Timeframe,
		CandleLimit:         cfg.CandleLimit,
		LoopInterval:        time.Duration(cfg.LoopIntervalSeconds) * time.Second,
		RealTradingEnabled:  cfg.TradingEnabled,
		PaperInitialBalance: decimal.NewFromFloat(cfg.PaperInitialBalance),
		FeePct:              decimal.NewFromFloat(cfg.FeePct),
		Risk: risk.Config{
			MaxTradePct:         decimal.NewFromFloat(cfg.MaxTradePct),
			MinBalanceQuote:     decimal.NewFromFloat(cfg.MinBalanceQuote),
			Cooldown:            time.Duration(cfg.CooldownMinutes) * time.Minute,
			MaxDailyTrades:      cfg.MaxDailyTrades,
			FeePct:              decimal.NewFromFloat(cfg.FeePct),
			SmallTradeThreshold: decimal.NewFromInt(10000),
			MaxFeeImpactPct:     decimal.NewFromFloat(0.02),
		},
		StrategyParams: strategyParams,
	}
	eng := engine.New(engCfg, client, bus, metrics, database)

	meta := api.SystemMeta{
		Symbol:          cfg.Symbol,
		Timeframe:       cfg.Timeframe,
		UseSimExchange:  cfg.UseSimExchange,
		TradingEnabled:  cfg.TradingEnabled,
		DefaultStrategy: cfg.DefaultStrategy,
		Version:         version,
	}
	server := api.NewServer(eng, bus, database, client, metrics, meta, cfg.JWTSecret)

	go func() {
		log.Printf("listening on :%s", cfg.Port)
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down")
	if err := eng.Stop(); err != nil {
		log.Printf("engine stop: %v", err)
	}
}
