package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maksimww/papertrader/internal/clients/marketdata"
	"github.com/maksimww/papertrader/internal/config"
	"github.com/maksimww/papertrader/internal/database"
	"github.com/maksimww/papertrader/internal/domain"
	"github.com/maksimww/papertrader/internal/events"
	"github.com/maksimww/papertrader/internal/modules/allocation"
	"github.com/maksimww/papertrader/internal/modules/analytics"
	"github.com/maksimww/papertrader/internal/modules/execution"
	"github.com/maksimww/papertrader/internal/modules/portfolio"
	"github.com/maksimww/papertrader/internal/modules/statestore"
	"github.com/maksimww/papertrader/internal/modules/strategy"
	"github.com/maksimww/papertrader/internal/scheduler"
	"github.com/maksimww/papertrader/internal/server"
	"github.com/maksimww/papertrader/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not configured yet
		panic(err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting paper trading service")

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Price source: simulated walk in dev mode, HTTP client otherwise
	var prices domain.PriceSource
	if cfg.DevMode || cfg.MarketDataURL == "" {
		prices = marketdata.NewSimulated(log)
		log.Info().Msg("Using simulated market data")
	} else {
		prices = marketdata.NewClient(cfg.MarketDataURL, log)
	}

	eventManager := events.NewManager(log)

	// Portfolio ledger with write-through persistence
	tradeRepo := portfolio.NewTradeRepository(db, log)
	positionRepo := portfolio.NewPositionRepository(db, log)
	snapshotRepo := portfolio.NewSnapshotRepository(db, log)
	ledgerStore := portfolio.NewStore(db, tradeRepo, positionRepo, snapshotRepo, log)
	ledger := portfolio.NewLedger(portfolio.Config{
		InitialBalance:      cfg.InitialBalance,
		CommissionRate:      cfg.CommissionRate,
		MaxPositionFraction: cfg.MaxPositionFraction,
	}, ledgerStore, log)
	if err := ledger.Load(); err != nil {
		log.Fatal().Err(err).Msg("Failed to restore ledger")
	}

	// Strategies
	registry := strategy.NewRegistry(log)
	if err := registry.Register(strategy.NewRSIStrategy(prices, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register RSI strategy")
	}
	if err := registry.Register(strategy.NewMACDStrategy(prices, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register MACD strategy")
	}

	// Persistent activation state
	state := statestore.New(db, log)
	if err := state.Load(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load strategy state")
	}

	coordinator := allocation.NewCoordinator(registry, state,
		time.Duration(cfg.SignalTimeoutSecs)*time.Second, cfg.RebalanceThreshold, log)
	coordinator.RestoreFromState()

	// Execution gate
	executionRepo := execution.NewRepository(db, log)
	gate := execution.NewGate(execution.Config{
		MinConfidence:           cfg.MinConfidence,
		MaxDailyTrades:          cfg.MaxDailyTrades,
		MaxDailyLossFraction:    cfg.MaxDailyLossFraction,
		BasePositionFraction:    cfg.BasePositionFraction,
		MaxAutoPositionFraction: cfg.MaxAutoPositionFraction,
		MinNotional:             cfg.MinNotional,
		Enabled:                 cfg.AutoExecutionEnabled,
		EnabledInstruments:      cfg.EnabledInstruments,
	}, ledger, prices, executionRepo, log)

	// Instruments with active strategies stay tradeable after restart
	for _, records := range state.Snapshot() {
		for _, rec := range records {
			gate.EnableInstrument(rec.Instrument)
		}
	}

	analyticsService := analytics.NewService(ledger, snapshotRepo, prices, cfg.RiskFreeRate, log)

	// Background jobs
	cycleJob := scheduler.NewCoordinationCycleJob(coordinator, gate, ledger, eventManager, 5*time.Minute, log)
	resetJob := scheduler.NewDailyResetJob(gate, eventManager, log)

	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.CoordinationSchedule, cycleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register coordination cycle")
	}
	if err := sched.AddJob(cfg.DailyResetSchedule, resetJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register daily reset")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Deps{
		Config:           cfg,
		Log:              log,
		Registry:         registry,
		Coordinator:      coordinator,
		State:            state,
		Gate:             gate,
		Analytics:        analyticsService,
		Events:           eventManager,
		PortfolioHandler: portfolio.NewHandler(ledger, tradeRepo, prices, log),
		ExecutionHandler: execution.NewHandler(gate, executionRepo, log),
		CycleJob:         cycleJob,
		Scheduler:        sched,
		RunCycle:         func() error { return sched.RunNow(cycleJob) },
		StartedAt:        time.Now(),
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
