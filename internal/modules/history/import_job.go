package history

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/cryptowallet/internal/modules/quotes"
	"github.com/rs/zerolog"
)

// CacheInvalidator drops cached statistics once new prices are stored.
type CacheInvalidator interface {
	Invalidate()
}

// ImportJob copies the quote files of a directory into the history database. Assets whose
// file disappeared are removed.
type ImportJob struct {
	dir       string
	loader    *quotes.Loader
	historyDB *HistoryDB
	caches    []CacheInvalidator
	timeout   time.Duration
	log       zerolog.Logger
}

// NewImportJob creates an import job for dir.
func NewImportJob(dir string, loader *quotes.Loader, historyDB *HistoryDB, log zerolog.Logger, caches ...CacheInvalidator) *ImportJob {
	return &ImportJob{
		dir:       dir,
		loader:    loader,
		historyDB: historyDB,
		caches:    caches,
		timeout:   5 * time.Minute,
		log:       log.With().Str("job", "import_quotes").Logger(),
	}
}

// Name returns the job name
func (j *ImportJob) Name() string {
	return "import_quotes"
}

// Run imports the quote directory.
func (j *ImportJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	_, err := j.Import(ctx)
	return err
}

// ImportResult summarizes one import.
type ImportResult struct {
	Imported int `json:"imported"`
	Removed  int `json:"removed"`
	Prices   int `json:"prices"`
}

// Import loads every quote file and replaces the stored history with it.
func (j *ImportJob) Import(ctx context.Context) (*ImportResult, error) {
	start := time.Now()

	snapshot, err := j.loader.LoadDir(ctx, j.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load quotes: %w", err)
	}

	assets, err := snapshot.Assets()
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	present := make(map[string]bool, len(assets))
	for _, asset := range assets {
		present[asset] = true
		prices, err := snapshot.GetDailyPrices(asset)
		if err != nil {
			return nil, err
		}
		if err := j.historyDB.SyncPrices(asset, j.dir, prices); err != nil {
			return nil, err
		}
		result.Imported++
		result.Prices += len(prices)
	}

	stored, err := j.historyDB.Assets()
	if err != nil {
		return nil, err
	}
	for _, asset := range stored {
		if present[asset] {
			continue
		}
		if err := j.historyDB.DeleteAsset(asset); err != nil {
			return nil, err
		}
		result.Removed++
	}

	for _, c := range j.caches {
		c.Invalidate()
	}

	j.log.Info().
		Int("imported", result.Imported).
		Int("removed", result.Removed).
		Int("prices", result.Prices).
		Dur("duration", time.Since(start)).
		Msg("Quote import completed")
	return result, nil
}
