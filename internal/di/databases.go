package di

import (
	"fmt"

	"github.com/aristath/cryptowallet/internal/config"
	"github.com/aristath/cryptowallet/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens history.db and runs.db and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// history.db is rebuilt from the quote files, so durability can be relaxed
	historyDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("history"),
		Profile: database.ProfileCache,
		Name:    "history",
		Driver:  cfg.Driver(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}
	container.HistoryDB = historyDB

	runsDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("runs"),
		Profile: database.ProfileStandard,
		Name:    "runs",
		Driver:  cfg.Driver(),
	})
	if err != nil {
		historyDB.Close()
		return nil, fmt.Errorf("failed to initialize runs database: %w", err)
	}
	container.RunsDB = runsDB

	for _, db := range container.Databases() {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().
		Str("driver", string(cfg.Driver())).
		Str("data_dir", cfg.DataDir).
		Msg("Databases initialized and schemas applied")
	return container, nil
}
