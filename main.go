package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"trading-engine/config"
	"trading-engine/internal/api"
	"trading-engine/internal/backtest"
	"trading-engine/internal/confluence"
	"trading-engine/internal/database"
	"trading-engine/internal/events"
	"trading-engine/internal/indicator"
	"trading-engine/internal/learning"
	"trading-engine/internal/logging"
	tradesignal "trading-engine/internal/signal"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	generateConfig := flag.Bool("generate-config", false, "write a sample config file and exit")
	flag.Parse()

	if *generateConfig {
		if err := config.GenerateSampleConfig(*configPath); err != nil {
			log.Fatalf("Failed to generate config: %v", err)
		}
		log.Printf("Sample config written to %s", *configPath)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.LoggingConfig.Level,
		Format: cfg.LoggingConfig.Format,
		Output: cfg.LoggingConfig.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	logger.Info().Msg("logging initialized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventBus := events.NewEventBus()

	// Analysis pipeline
	indicators := indicator.NewEngine()
	confluenceEngine := confluence.NewEngine(indicators, cfg.EngineConfig.ConfluenceThreshold, logger)
	generator := tradesignal.NewGenerator(tradesignal.Config{
		Threshold:      cfg.EngineConfig.ConfluenceThreshold,
		ATRMultiplier:  cfg.SignalConfig.ATRMultiplier,
		BaseRiskReward: cfg.SignalConfig.BaseRiskReward,
		WideRiskReward: cfg.SignalConfig.WideRiskReward,
		RiskPercent:    cfg.SignalConfig.RiskPercent,
		ExpirySeconds:  cfg.SignalConfig.ExpirySeconds,
	}, cfg.SignalConfig.InitialBalance, logger)
	backtester := backtest.NewEngine(indicators, backtest.Config{
		InitialBalance: cfg.BacktestConfig.InitialBalance,
		CommissionPct:  cfg.BacktestConfig.CommissionPct,
		SlippagePct:    cfg.BacktestConfig.SlippagePct,
		StopATRMult:    cfg.BacktestConfig.ATRStopMult,
		RewardRatio:    cfg.BacktestConfig.RiskReward,
	}, logger)

	// Learning loop
	learner := learning.NewOnlineLearner(learning.LearnerConfig{
		BufferSize:   cfg.LearningConfig.BufferSize,
		RetrainEvery: cfg.LearningConfig.RetrainEvery,
		MinSamples:   cfg.LearningConfig.MinSamples,
	}, nil, logger)
	mistakeTracker := learning.NewMistakeTracker(logger)
	performanceTracker := learning.NewPerformanceTracker(learning.TrackerConfig{
		LookbackTrades: cfg.LearningConfig.LookbackTrades,
		MinWinRate:     cfg.LearningConfig.MinWinRate,
		MaxDrawdownPct: cfg.LearningConfig.MaxDrawdownPct,
		MinSharpe:      cfg.LearningConfig.MinSharpe,
		InitialBalance: cfg.SignalConfig.InitialBalance,
	}, logger)

	// Kill switch state survives restarts via Redis when configured
	stateStore := database.NewTrackerStateStore(database.RedisConfig{
		Addr:     cfg.RedisConfig.Addr,
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.DB,
	}, logger)
	defer stateStore.Close()

	if state, ok := stateStore.Load(ctx); ok {
		performanceTracker.Restore(state.State, state.PauseReason, state.Balance, state.Peak)
		logger.Info().Str("state", state.State).Msg("restored tracker state")
	}

	// Persistence is optional; an empty DB host runs the engine stateless
	var repo *database.Repository
	if cfg.DatabaseConfig.Host != "" {
		db, err := database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Error().Err(err).Msg("database unavailable, running without persistence")
		} else {
			defer db.Close()
			if err := db.RunMigrations(ctx); err != nil {
				logger.Error().Err(err).Msg("migrations failed")
			}
			repo = database.NewRepository(db)
			logger.Info().Msg("database connected")
		}
	}

	server := api.NewServer(api.ServerConfig{
		Host:           cfg.ServerConfig.Host,
		Port:           cfg.ServerConfig.Port,
		ProductionMode: cfg.ServerConfig.ProductionMode,
	}, api.Deps{
		Confluence:  confluenceEngine,
		Generator:   generator,
		Backtester:  backtester,
		Learner:     learner,
		Mistakes:    mistakeTracker,
		Performance: performanceTracker,
		Repo:        repo,
		StateStore:  stateStore,
		EventBus:    eventBus,
	}, logger)

	mistakeTracker.AddObserver(func(m learning.Mistake) error {
		eventBus.PublishMistakeDetected(string(m.Type), m.Outcome.Symbol, m.Severity)
		return nil
	})
	eventBus.SubscribeAll(func(event events.Event) {
		logger.Debug().Str("type", string(event.Type)).Interface("data", event.Data).Msg("event")
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	logger.Info().Msg("stopped")
}
