package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/aristath/cryptowallet/internal/modules/evolution"
	"github.com/aristath/cryptowallet/internal/modules/returns"
	"github.com/spf13/viper"
)

// settings is the resolved configuration of one console run.
type settings struct {
	QuotesDir    string
	Concurrency  int
	ReturnMethod returns.Method
	MinHistory   int
	LogLevel     string
	ChartPath    string
	ReportPath   string
	Evolution    evolution.Config
}

// loadSettings resolves settings from, in increasing precedence: defaults, an optional
// optimizer.{yaml,json,toml} file in ./configs or ., WALLET_* environment variables and
// explicitly passed flags.
func loadSettings(args []string, stderr io.Writer) (*settings, error) {
	v := viper.New()
	v.SetConfigName("optimizer")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.SetEnvPrefix("WALLET")
	v.AutomaticEnv()

	d := evolution.DefaultConfig()
	v.SetDefault("quotes_dir", "quotations")
	v.SetDefault("quote_concurrency", 4)
	v.SetDefault("return_method", string(returns.MethodSimple))
	v.SetDefault("min_history", returns.DefaultMinHistory)
	v.SetDefault("log_level", "info")
	v.SetDefault("chart", "")
	v.SetDefault("report", "")
	v.SetDefault("target_sharpe", d.TargetSharpe)
	v.SetDefault("risk_free_rate", d.RiskFreeRate)
	v.SetDefault("population_size", d.PopulationSize)
	v.SetDefault("portfolio_size", d.PortfolioSize)
	v.SetDefault("max_generations", d.MaxGenerations)
	v.SetDefault("selection", string(d.Selection))
	v.SetDefault("tournament_size", d.TournamentSize)
	v.SetDefault("weight_scheme", string(d.WeightScheme))
	v.SetDefault("seed", 0)

	fs := flag.NewFlagSet("optimizer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.String("quotes_dir", "", "directory of per-asset quote files (.csv, .xlsx)")
	fs.Int("quote_concurrency", 0, "quote files parsed in parallel")
	fs.String("return_method", "", "daily returns: simple or log")
	fs.Int("min_history", 0, "minimum number of daily returns (prices - 1) for an asset to take part")
	fs.String("log_level", "", "debug, info, warn or error")
	fs.String("chart", "", "write a fitness chart PNG to this path")
	fs.String("report", "", "write the JSON report to this path")
	fs.Float64("target_sharpe", 0, "stop once a wallet's Sharpe ratio exceeds this")
	fs.Float64("risk_free_rate", 0, "annual risk-free rate")
	fs.Int("population_size", 0, "wallets per generation")
	fs.Int("portfolio_size", 0, "assets per wallet")
	fs.Int("max_generations", 0, "generation limit")
	fs.String("selection", "", "elitism, tournament or combined")
	fs.Int("tournament_size", 0, "tournament size")
	fs.String("weight_scheme", "", "continuous or denomination")
	fs.Int64("seed", 0, "random seed (0 seeds from the clock)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Only flags given on the command line override lower layers.
	fs.Visit(func(f *flag.Flag) {
		v.Set(f.Name, f.Value.String())
	})

	method, err := returns.ParseMethod(v.GetString("return_method"))
	if err != nil {
		return nil, err
	}

	s := &settings{
		QuotesDir:    v.GetString("quotes_dir"),
		Concurrency:  v.GetInt("quote_concurrency"),
		ReturnMethod: method,
		MinHistory:   v.GetInt("min_history"),
		LogLevel:     v.GetString("log_level"),
		ChartPath:    v.GetString("chart"),
		ReportPath:   v.GetString("report"),
		Evolution: evolution.Config{
			TargetSharpe:   v.GetFloat64("target_sharpe"),
			RiskFreeRate:   v.GetFloat64("risk_free_rate"),
			PopulationSize: v.GetInt("population_size"),
			PortfolioSize:  v.GetInt("portfolio_size"),
			MaxGenerations: v.GetInt("max_generations"),
			Selection:      evolution.SelectionMode(v.GetString("selection")),
			TournamentSize: v.GetInt("tournament_size"),
			WeightScheme:   evolution.WeightScheme(v.GetString("weight_scheme")),
			Seed:           v.GetInt64("seed"),
		},
	}
	if s.Concurrency < 1 {
		return nil, fmt.Errorf("quote concurrency must be at least 1, got %d", s.Concurrency)
	}
	if err := s.Evolution.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
