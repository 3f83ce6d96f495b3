package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfolio/allocator/internal/config"
	"github.com/quantfolio/allocator/internal/database"
	"github.com/quantfolio/allocator/internal/modules/allocation"
	"github.com/quantfolio/allocator/internal/modules/pricing"
	"github.com/quantfolio/allocator/internal/scheduler"
	"github.com/quantfolio/allocator/internal/server"
	"github.com/quantfolio/allocator/pkg/logger"
)

func main() {
	// Load configuration first so the logger honours LOG_LEVEL
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{Level: "info"})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting allocator")

	// Initialize database
	db, err := database.New(database.Config{Path: cfg.DatabasePath})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Wire modules
	priceRepo := pricing.NewRepository(db.Conn())
	revaluation := pricing.NewRevaluationService(db.Conn(), priceRepo, log)
	pricingHandler := pricing.NewHandler(revaluation, log)

	provider := allocation.NewProvider(db.Conn(), log)
	engine := allocation.NewEngine(provider, log)
	allocationHandler := allocation.NewHandler(engine, log)

	// Initialize scheduler
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	if err := registerJobs(sched, revaluation, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:       cfg.Port,
		Log:        log,
		DB:         db,
		Config:     cfg,
		Allocation: allocationHandler,
		Pricing:    pricingHandler,
		DevMode:    cfg.DevMode,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func registerJobs(sched *scheduler.Scheduler, revaluation *pricing.RevaluationService, cfg *config.Config, log zerolog.Logger) error {
	if !cfg.RevalueEnabled {
		log.Info().Msg("Revaluation job disabled")
		return nil
	}

	return sched.AddJob(cfg.RevalueCron, scheduler.NewRevaluationJob(revaluation, log))
}
