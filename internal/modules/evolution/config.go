package evolution

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config holds the parameters of one search. It is not modified during a run.
type Config struct {
	TargetSharpe   float64       `json:"target_sharpe"`
	RiskFreeRate   float64       `json:"risk_free_rate"`
	PopulationSize int           `json:"population_size"`
	PortfolioSize  int           `json:"portfolio_size"`
	MaxGenerations int           `json:"max_generations"`
	Selection      SelectionMode `json:"selection"`
	TournamentSize int           `json:"tournament_size"`
	WeightScheme   WeightScheme  `json:"weight_scheme"`
	Seed           int64         `json:"seed"`
}

// DefaultConfig returns the dashboard defaults: 4% risk-free rate, 20 wallets of 5 assets,
// 200 generations and a target Sharpe ratio of 1.5.
func DefaultConfig() Config {
	return Config{
		TargetSharpe:   1.5,
		RiskFreeRate:   0.04,
		PopulationSize: 20,
		PortfolioSize:  5,
		MaxGenerations: 200,
		Selection:      SelectionCombined,
		TournamentSize: DefaultTournamentSize,
		WeightScheme:   WeightsContinuous,
	}
}

// withDefaults fills the optional fields left empty.
func (c Config) withDefaults() Config {
	if c.Selection == "" {
		c.Selection = SelectionCombined
	}
	if c.TournamentSize <= 0 {
		c.TournamentSize = DefaultTournamentSize
	}
	if c.WeightScheme == "" {
		c.WeightScheme = WeightsContinuous
	}
	return c
}

// Validate rejects parameter combinations that make the search impossible.
func (c Config) Validate() error {
	c = c.withDefaults()

	if math.IsNaN(c.TargetSharpe) || math.IsInf(c.TargetSharpe, 0) {
		return fmt.Errorf("%w: target sharpe must be finite", ErrConfiguration)
	}
	if math.IsNaN(c.RiskFreeRate) || math.IsInf(c.RiskFreeRate, 0) || c.RiskFreeRate <= -1 {
		return fmt.Errorf("%w: risk-free rate must be finite and above -100%%, got %v",
			ErrConfiguration, c.RiskFreeRate)
	}
	if c.PopulationSize < 2 {
		return fmt.Errorf("%w: population size must be at least 2, got %d", ErrConfiguration, c.PopulationSize)
	}
	if c.PortfolioSize < 2 {
		return fmt.Errorf("%w: portfolio size must be at least 2, got %d", ErrConfiguration, c.PortfolioSize)
	}
	if c.MaxGenerations < 1 {
		return fmt.Errorf("%w: max generations must be at least 1, got %d", ErrConfiguration, c.MaxGenerations)
	}

	switch c.Selection {
	case SelectionElitism, SelectionTournament, SelectionCombined:
	default:
		return fmt.Errorf("%w: unknown selection mode %q", ErrConfiguration, c.Selection)
	}
	if need := requiredPopulation(c.Selection, c.TournamentSize); c.PopulationSize < need {
		return fmt.Errorf("%w: %s selection needs a population of at least %d, got %d",
			ErrConfiguration, c.Selection, need, c.PopulationSize)
	}

	switch c.WeightScheme {
	case WeightsContinuous:
	case WeightsDenomination:
		if !denominationFeasible(c.PortfolioSize) {
			return fmt.Errorf("%w: no %d denominations sum to 1", ErrConfiguration, c.PortfolioSize)
		}
	default:
		return fmt.Errorf("%w: unknown weight scheme %q", ErrConfiguration, c.WeightScheme)
	}
	return nil
}

// newRand seeds from the config, or from the clock when Seed is zero.
func (c Config) newRand() *rand.Rand {
	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
