// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aristath/cryptowallet/internal/database"
	"github.com/aristath/cryptowallet/internal/modules/evolution"
	"github.com/aristath/cryptowallet/internal/modules/returns"
	"github.com/aristath/cryptowallet/internal/modules/runs"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir           string // Base directory for the databases (always absolute)
	QuotesDir         string // Directory of per-asset quote files (always absolute)
	LogLevel          string
	Port              int
	DevMode           bool
	DBDriver          string
	QuoteSyncSchedule string
	QuoteConcurrency  int
	ReturnMethod      string
	MinHistory        int
	Evolution         evolution.Config
	Archive           runs.ArchiveConfig
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := resolveDir(getEnv("WALLET_DATA_DIR", "./data"), true)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}
	quotesDir, err := resolveDir(getEnv("WALLET_QUOTES_DIR", "quotations"), false)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve quotes directory: %w", err)
	}

	cfg := &Config{
		DataDir:           dataDir,
		QuotesDir:         quotesDir,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Port:              getEnvAsInt("GO_PORT", 8001),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		DBDriver:          getEnv("WALLET_DB_DRIVER", string(database.DriverModernc)),
		QuoteSyncSchedule: getEnv("WALLET_QUOTE_SYNC_SCHEDULE", "@every 1h"),
		QuoteConcurrency:  getEnvAsInt("WALLET_QUOTE_CONCURRENCY", 4),
		ReturnMethod:      getEnv("WALLET_RETURN_METHOD", string(returns.MethodSimple)),
		MinHistory:        getEnvAsInt("WALLET_MIN_HISTORY", returns.DefaultMinHistory),
		Evolution:         loadEvolutionConfig(),
		Archive: runs.ArchiveConfig{
			Endpoint:  getEnv("ARCHIVE_ENDPOINT", ""),
			Bucket:    getEnv("ARCHIVE_BUCKET", ""),
			AccessKey: getEnv("ARCHIVE_ACCESS_KEY", ""),
			SecretKey: getEnv("ARCHIVE_SECRET_KEY", ""),
			Region:    getEnv("ARCHIVE_REGION", ""),
			Prefix:    getEnv("ARCHIVE_PREFIX", "runs/"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEvolutionConfig reads the default search parameters used when a run does not
// override them.
func loadEvolutionConfig() evolution.Config {
	d := evolution.DefaultConfig()
	return evolution.Config{
		TargetSharpe:   getEnvAsFloat("WALLET_TARGET_SHARPE", d.TargetSharpe),
		RiskFreeRate:   getEnvAsFloat("WALLET_RISK_FREE_RATE", d.RiskFreeRate),
		PopulationSize: getEnvAsInt("WALLET_POPULATION_SIZE", d.PopulationSize),
		PortfolioSize:  getEnvAsInt("WALLET_PORTFOLIO_SIZE", d.PortfolioSize),
		MaxGenerations: getEnvAsInt("WALLET_MAX_GENERATIONS", d.MaxGenerations),
		Selection:      evolution.SelectionMode(getEnv("WALLET_SELECTION", string(d.Selection))),
		TournamentSize: getEnvAsInt("WALLET_TOURNAMENT_SIZE", d.TournamentSize),
		WeightScheme:   evolution.WeightScheme(getEnv("WALLET_WEIGHT_SCHEME", string(d.WeightScheme))),
		Seed:           int64(getEnvAsInt("WALLET_SEED", 0)),
	}
}

// Validate checks the configuration for impossible values
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if _, err := database.ParseDriver(c.DBDriver); err != nil {
		return err
	}
	if _, err := returns.ParseMethod(c.ReturnMethod); err != nil {
		return err
	}
	if c.MinHistory < 2 {
		return fmt.Errorf("minimum history must be at least 2 daily returns, got %d", c.MinHistory)
	}
	if c.QuoteConcurrency < 1 {
		return fmt.Errorf("quote concurrency must be at least 1, got %d", c.QuoteConcurrency)
	}
	if c.QuoteSyncSchedule == "" {
		return fmt.Errorf("quote sync schedule must not be empty")
	}
	if err := c.Evolution.Validate(); err != nil {
		return fmt.Errorf("invalid evolution defaults: %w", err)
	}
	return nil
}

// Driver returns the configured database driver
func (c *Config) Driver() database.Driver {
	d, _ := database.ParseDriver(c.DBDriver)
	return d
}

// ReturnsConfig returns the settings of the returns provider
func (c *Config) ReturnsConfig() returns.Config {
	m, _ := returns.ParseMethod(c.ReturnMethod)
	return returns.Config{Method: m, MinHistory: c.MinHistory}
}

// EvolutionConfig returns the default search parameters
func (c *Config) EvolutionConfig() evolution.Config {
	return c.Evolution
}

// DatabasePath returns the path of the named database inside DataDir
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

func resolveDir(dir string, create bool) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if create {
		if err := os.MkdirAll(abs, 0755); err != nil {
			return "", err
		}
	}
	return abs, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
