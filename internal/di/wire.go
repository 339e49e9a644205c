package di

import (
	"context"
	"fmt"

	"github.com/aristath/cryptowallet/internal/config"
	"github.com/aristath/cryptowallet/internal/scheduler"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container.
// Databases are opened first, then repositories, services and jobs.
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := InitializeServices(ctx, container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")
	return container, nil
}

// walCheckpointSchedule runs the WAL maintenance job.
const walCheckpointSchedule = "@every 15m"

// RegisterJobs schedules the background jobs
func RegisterJobs(container *Container, cfg *config.Config, sched *scheduler.Scheduler) error {
	if err := sched.AddJob(cfg.QuoteSyncSchedule, container.ImportJob); err != nil {
		return fmt.Errorf("failed to register %s: %w", container.ImportJob.Name(), err)
	}
	if err := sched.AddJob(walCheckpointSchedule, container.WALCheckpointJob); err != nil {
		return fmt.Errorf("failed to register %s: %w", container.WALCheckpointJob.Name(), err)
	}
	return nil
}
