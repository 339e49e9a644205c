package runs

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/cryptowallet/internal/database"
	"github.com/aristath/cryptowallet/internal/modules/evolution"
	"github.com/aristath/cryptowallet/internal/modules/quotes"
	"github.com/aristath/cryptowallet/internal/modules/returns"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setupRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "runs.db"),
		Name: "runs",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return NewRepository(db.Conn(), zerolog.Nop())
}

func testConfig() evolution.Config {
	cfg := evolution.DefaultConfig()
	cfg.PopulationSize = 10
	cfg.PortfolioSize = 3
	cfg.MaxGenerations = 5
	cfg.Seed = 42
	return cfg
}

func testWallet(fitness float64) evolution.Wallet {
	return evolution.NewWallet([]string{"BTC", "ETH"}, []float64{0.6, 0.4}).WithFitness(fitness)
}

func fitness(f float64) *float64 { return &f }

// stubSearcher reports scripted progress. With release set it waits for release or
// cancellation before reporting.
type stubSearcher struct {
	release     chan struct{}
	generations int
	err         error
}

func (s *stubSearcher) Run(ctx context.Context, cfg evolution.Config, progress evolution.ProgressFunc) (*evolution.Report, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return &evolution.Report{
				State:      evolution.StateCancelled,
				Generation: 0,
				BestWallet: testWallet(0.5),
			}, nil
		}
	}
	if s.err != nil {
		return nil, s.err
	}

	history := make([]evolution.GenerationStat, 0, s.generations)
	for g := 1; g <= s.generations; g++ {
		history = append(history, evolution.GenerationStat{
			Generation:  g,
			BestFitness: fitness(float64(g) / 10),
			MeanFitness: fitness(float64(g) / 20),
			Scored:      cfg.PopulationSize - 1,
			Degenerate:  1,
		})
		if g < s.generations {
			progress(g, testWallet(float64(g)/10))
		}
	}
	return &evolution.Report{
		State:      evolution.StateExhausted,
		Generation: s.generations,
		BestWallet: testWallet(float64(s.generations) / 10),
		History:    history,
		Duration:   time.Millisecond,
	}, nil
}

// randomWalkProvider builds a returns provider over n assets with 90 days of prices.
func randomWalkProvider(t *testing.T, n int) *returns.Provider {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	prices := make(map[string][]returns.PricePoint, n)
	for a := 0; a < n; a++ {
		price := 100.0
		series := make([]returns.PricePoint, 90)
		for i := range series {
			price *= 1 + 0.001*float64(a) + 0.02*rng.NormFloat64()
			series[i] = returns.PricePoint{
				Date:  start.AddDate(0, 0, i).Format("2006-01-02"),
				Close: price,
			}
		}
		prices[fmt.Sprintf("COIN%d", a)] = series
	}

	provider, err := returns.NewProvider(quotes.NewSnapshot(prices), returns.Config{}, zerolog.Nop())
	require.NoError(t, err)
	return provider
}
