// Package main is the entry point for the wallet optimizer service.
//
// Startup sequence:
// 1. Load configuration from environment variables (.env file)
// 2. Wire databases, repositories and services via the DI container
// 3. Import the quote directory once, then keep it synced on a schedule
// 4. Serve the HTTP API until SIGINT/SIGTERM, then shut down gracefully
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/cryptowallet/internal/config"
	"github.com/aristath/cryptowallet/internal/di"
	historyhandlers "github.com/aristath/cryptowallet/internal/modules/history/handlers"
	returnshandlers "github.com/aristath/cryptowallet/internal/modules/returns/handlers"
	runshandlers "github.com/aristath/cryptowallet/internal/modules/runs/handlers"
	"github.com/aristath/cryptowallet/internal/scheduler"
	"github.com/aristath/cryptowallet/internal/server"
	"github.com/aristath/cryptowallet/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("quotes_dir", cfg.QuotesDir).
		Str("db_driver", cfg.DBDriver).
		Msg("Starting wallet optimizer")

	ctx := context.Background()

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// A missing quote directory is not fatal: the scheduled sync picks it up later.
	if err := container.ImportJob.Run(); err != nil {
		log.Warn().Err(err).Msg("Initial quote import failed")
	}

	sched := scheduler.New(log)
	if err := di.RegisterJobs(container, cfg, sched); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		DataDir:   cfg.DataDir,
		Databases: container.Databases(),
		Jobs:      container.Jobs(),
		Runs:      container.RunService,
		Modules: []server.RouteRegistrar{
			returnshandlers.NewHandler(container.ReturnsProvider, log),
			historyhandlers.NewHandler(container.HistoryStore, container.ImportJob, log),
			runshandlers.NewHandler(container.RunService, cfg.EvolutionConfig(), log),
		},
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Running searches are cancelled and persisted before the databases close.
	if err := container.RunService.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Runs did not finish before shutdown")
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
