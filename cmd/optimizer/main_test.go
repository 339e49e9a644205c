package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/cryptowallet/internal/modules/evolution"
	"github.com/aristath/cryptowallet/internal/modules/returns"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	s, err := loadSettings(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "quotations", s.QuotesDir)
	assert.Equal(t, 4, s.Concurrency)
	assert.Equal(t, returns.MethodSimple, s.ReturnMethod)
	assert.Equal(t, evolution.DefaultConfig(), s.Evolution)
}

func TestLoadSettings_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "optimizer.yaml"),
		[]byte("population_size: 30\nportfolio_size: 4\nselection: tournament\n"), 0o644))
	t.Setenv("WALLET_PORTFOLIO_SIZE", "6")

	s, err := loadSettings([]string{"-max_generations", "50", "-seed", "11", "-return_method", "log"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 30, s.Evolution.PopulationSize, "config file")
	assert.Equal(t, 6, s.Evolution.PortfolioSize, "environment beats file")
	assert.Equal(t, evolution.SelectionTournament, s.Evolution.Selection)
	assert.Equal(t, 50, s.Evolution.MaxGenerations, "flag")
	assert.Equal(t, int64(11), s.Evolution.Seed)
	assert.Equal(t, returns.MethodLog, s.ReturnMethod)
	assert.Equal(t, 1.5, s.Evolution.TargetSharpe, "default")
}

func TestLoadSettings_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := loadSettings([]string{"-portfolio_size", "1"}, io.Discard)
	assert.ErrorIs(t, err, evolution.ErrConfiguration)

	_, err = loadSettings([]string{"-return_method", "geometric"}, io.Discard)
	assert.Error(t, err)

	_, err = loadSettings([]string{"-unknown"}, io.Discard)
	assert.Error(t, err)
}

func TestOptimize(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"BTC.csv": "Date,Price\n2024-01-01,100\n2024-01-02,102\n2024-01-03,101\n2024-01-04,105\n2024-01-05,104\n",
		"ETH.csv": "Date,Price\n2024-01-01,50\n2024-01-02,49\n2024-01-03,51\n2024-01-04,52\n2024-01-05,53\n",
		"SOL.csv": "Date,Price\n2024-01-01,20\n2024-01-02,21\n2024-01-03,23\n2024-01-04,22\n2024-01-05,24\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	s := &settings{
		QuotesDir:    dir,
		Concurrency:  2,
		ReturnMethod: returns.MethodSimple,
		MinHistory:   2,
		Evolution: evolution.Config{
			TargetSharpe:   1e6,
			PopulationSize: 4,
			PortfolioSize:  2,
			MaxGenerations: 2,
			Seed:           1,
		},
	}

	report, err := optimize(context.Background(), s, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, evolution.StateExhausted, report.State)
	assert.Equal(t, 2, report.Generation)

	var out bytes.Buffer
	printReport(&out, report)
	assert.Contains(t, out.String(), "EXHAUSTED after 2 generation(s)")
	assert.Contains(t, out.String(), report.BestWallet.Assets[0])

	reportPath := filepath.Join(dir, "report.json")
	require.NoError(t, writeReport(reportPath, report))
	assert.FileExists(t, reportPath)
}

func TestLoadSettings_Help(t *testing.T) {
	var usage bytes.Buffer
	_, err := loadSettings([]string{"-h"}, &usage)
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, usage.String(), "minimum number of daily returns (prices - 1)")
}
