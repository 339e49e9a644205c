package di

import (
	"context"
	"fmt"

	"github.com/aristath/cryptowallet/internal/config"
	"github.com/aristath/cryptowallet/internal/modules/evolution"
	"github.com/aristath/cryptowallet/internal/modules/history"
	"github.com/aristath/cryptowallet/internal/modules/quotes"
	"github.com/aristath/cryptowallet/internal/modules/returns"
	"github.com/aristath/cryptowallet/internal/modules/runs"
	"github.com/aristath/cryptowallet/internal/scheduler"
	"github.com/rs/zerolog"
)

// InitializeServices builds repositories, services and jobs on top of the databases
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.HistoryStore = history.NewHistoryDB(container.HistoryDB.Conn(), log)
	container.RunRepo = runs.NewRepository(container.RunsDB.Conn(), log)

	if n, err := container.RunRepo.MarkInterrupted(); err != nil {
		return err
	} else if n > 0 {
		log.Warn().Int64("runs", n).Msg("Marked runs interrupted by the previous shutdown as failed")
	}

	provider, err := returns.NewProvider(container.HistoryStore, cfg.ReturnsConfig(), log)
	if err != nil {
		return fmt.Errorf("failed to create returns provider: %w", err)
	}
	container.ReturnsProvider = provider
	container.RunSearchers = snapshotSearchers(container.HistoryStore, cfg.ReturnsConfig(), log)

	archiver, err := runs.NewArchiver(ctx, cfg.Archive, log)
	if err != nil {
		return fmt.Errorf("failed to create run archiver: %w", err)
	}
	container.Archiver = archiver
	container.RunService = runs.NewService(container.RunSearchers, container.RunRepo, archiver, log)

	container.QuoteLoader = quotes.NewLoader(cfg.QuoteConcurrency, log)
	container.ImportJob = history.NewImportJob(cfg.QuotesDir, container.QuoteLoader, container.HistoryStore, log, provider)
	container.WALCheckpointJob = scheduler.NewWALCheckpointJob(log, container.HistoryDB, container.RunsDB)
	return nil
}

// snapshotSearchers gives every run an engine over a copy of the price history taken when
// the run starts, so imports during the run do not change its data.
func snapshotSearchers(store *history.HistoryDB, cfg returns.Config, log zerolog.Logger) runs.SearcherFactory {
	return func() (runs.Searcher, error) {
		snapshot, err := store.Snapshot()
		if err != nil {
			return nil, err
		}
		provider, err := returns.NewProvider(snapshot, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create returns provider: %w", err)
		}
		return evolution.NewEngine(provider, log), nil
	}
}
