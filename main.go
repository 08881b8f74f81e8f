package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading-agent/internal/agent"
	"trading-agent/internal/analyzer"
	"trading-agent/internal/api"
	"trading-agent/internal/events"
	"trading-agent/internal/execution"
	"trading-agent/internal/marketdata"
	"trading-agent/internal/orchestrator"
	"trading-agent/internal/risk"
	"trading-agent/internal/strategy"
	"trading-agent/pkg/config"
	"trading-agent/pkg/db"
)

var buildVersion = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("starting trading agent %s on port %s", buildVersion, cfg.Port)
	log.Printf("universe: %v, lookback: %d days", cfg.Universe, cfg.LookbackDays)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("db migrations failed: %v", err)
	}

	// Venue. Live credentials are accepted by config but this build only
	// ships the simulated venue; say so loudly rather than silently
	// paper-trading someone who expected live orders.
	if !cfg.SimMode() {
		log.Println("WARNING: venue credentials set but live execution is not enabled in this build; running against the simulated venue")
	} else {
		log.Println("no venue credentials configured, running against the simulated venue")
	}
	venue := execution.NewSimVenue(cfg.SimStartCash)
	venueName := "sim"

	strategies, err := strategy.LoadConfig(cfg.StrategyConfigPath)
	if err != nil {
		log.Fatalf("strategy config failed: %v", err)
	}
	for _, st := range strategies {
		log.Printf("strategy enabled: %s", st.Name())
	}

	riskMgr := risk.NewManager(risk.Config{
		MaxPositionFraction: cfg.MaxPositionFraction,
		MaxRiskFraction:     cfg.MaxRiskFraction,
		MaxPositions:        cfg.MaxPositions,
		DailyLossLimit:      cfg.DailyLossLimit,
		StopLossFraction:    cfg.StopLossFraction,
	}, cfg.SimStartCash)

	source := marketdata.NewMockSource(100, 0.5, time.Now().UnixNano())
	an := analyzer.New()
	strategyAgent := agent.New(strategies)
	execAgent := execution.NewAgent(database, venue, bus)

	orch := orchestrator.New(
		source, an, strategyAgent, riskMgr, execAgent,
		database, bus, cfg.Universe, cfg.LookbackDays,
	)

	// Resume: promote or void any fills left unconfirmed by a crash.
	if err := execAgent.ReconcileUnconfirmed(ctx); err != nil {
		log.Printf("startup reconciliation failed: %v", err)
	}

	// Cycle loops
	go runEvery(ctx, time.Duration(cfg.TradingInterval)*time.Minute, func() {
		if _, err := orch.RunTradingCycle(ctx); err != nil {
			log.Printf("trading cycle failed: %v", err)
		}
	})
	go runEvery(ctx, time.Duration(cfg.PositionInterval)*time.Minute, func() {
		if err := orch.ManagePositions(ctx); err != nil {
			log.Printf("position cycle failed: %v", err)
		}
	})

	// API
	if cfg.JWTSecret == "" {
		log.Println("WARNING: JWT_SECRET not set, API authentication is disabled")
	}
	server := api.NewServer(api.Deps{
		Bus:          bus,
		DB:           database,
		Risk:         riskMgr,
		Analyzer:     an,
		Orchestrator: orch,
		Source:       source,
		Strategies:   strategies,
		LookbackDays: cfg.LookbackDays,
		Meta: api.SystemMeta{
			SimMode:  true,
			Venue:    venueName,
			Universe: cfg.Universe,
			Version:  buildVersion,
		},
		JWTSecret:   cfg.JWTSecret,
		APIPassword: cfg.APIPassword,
	})
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
	cancel()
	bus.Close()
}

// runEvery fires fn immediately and then on every tick until ctx is done.
func runEvery(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		interval = time.Minute
	}
	fn()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
