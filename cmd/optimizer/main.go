// Package main runs one wallet search from the console over a directory of quote files
// and prints the best wallet found.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/aristath/cryptowallet/internal/modules/evolution"
	"github.com/aristath/cryptowallet/internal/modules/quotes"
	"github.com/aristath/cryptowallet/internal/modules/returns"
	"github.com/aristath/cryptowallet/internal/modules/runs"
	"github.com/aristath/cryptowallet/pkg/logger"
	"github.com/rs/zerolog"
)

func main() {
	s, err := loadSettings(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.New(logger.Config{Level: s.LogLevel, Pretty: true, Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := optimize(ctx, s, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Optimization failed")
	}

	printReport(os.Stdout, report)

	if s.ReportPath != "" {
		if err := writeReport(s.ReportPath, report); err != nil {
			log.Error().Err(err).Msg("Failed to write report")
		}
	}
	if s.ChartPath != "" {
		if err := writeChart(s.ChartPath, report); err != nil {
			log.Error().Err(err).Msg("Failed to write chart")
		}
	}
}

// optimize loads the quote directory into memory and runs one search over it.
func optimize(ctx context.Context, s *settings, log zerolog.Logger) (*evolution.Report, error) {
	snapshot, err := quotes.NewLoader(s.Concurrency, log).LoadDir(ctx, s.QuotesDir)
	if err != nil {
		return nil, err
	}

	provider, err := returns.NewProvider(snapshot, returns.Config{
		Method:     s.ReturnMethod,
		MinHistory: s.MinHistory,
	}, log)
	if err != nil {
		return nil, err
	}

	engine := evolution.NewEngine(provider, log)
	return engine.Run(ctx, s.Evolution, func(generation int, best evolution.Wallet) {
		log.Info().
			Int("generation", generation).
			Float64("best_sharpe", best.FitnessValue()).
			Strs("assets", best.Assets).
			Msg("Generation complete")
	})
}

func printReport(w io.Writer, report *evolution.Report) {
	fmt.Fprintf(w, "State: %s after %d generation(s) in %s\n", report.State, report.Generation, report.Duration)
	fmt.Fprintf(w, "Sharpe ratio: %.4f\n\n", report.BestWallet.FitnessValue())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ASSET\tWEIGHT")
	for i, asset := range report.BestWallet.Assets {
		fmt.Fprintf(tw, "%s\t%6.2f%%\n", asset, report.BestWallet.Weights[i]*100)
	}
	tw.Flush()
}

func writeReport(path string, report *evolution.Report) error {
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

func writeChart(path string, report *evolution.Report) error {
	png, err := runs.RenderFitnessChart(fmt.Sprintf("%s after %d generations", report.State, report.Generation), report.History)
	if err != nil {
		return err
	}
	return os.WriteFile(path, png, 0644)
}
