package evolution

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// TradingDaysPerYear is the annualization convention for daily statistics.
const TradingDaysPerYear = 252

// ReturnsProvider supplies the historical return statistics the search is scored on.
type ReturnsProvider interface {
	// AssetUniverse returns a fresh snapshot of every asset with enough history.
	AssetUniverse() ([]string, error)
	// MeanAndCovariance returns per-asset mean daily returns and the covariance matrix
	// of daily returns, rows and columns in the order of assets.
	MeanAndCovariance(assets []string) (map[string]float64, *mat.SymDense, error)
}

// DailyRiskFreeRate converts an annual rate to its per trading day equivalent.
func DailyRiskFreeRate(annual float64) float64 {
	return math.Pow(1+annual, 1.0/TradingDaysPerYear) - 1
}

// Evaluator scores wallets by their historical Sharpe ratio.
type Evaluator struct {
	provider ReturnsProvider
	log      zerolog.Logger
}

// NewEvaluator creates an evaluator backed by provider.
func NewEvaluator(provider ReturnsProvider, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		provider: provider,
		log:      log.With().Str("component", "fitness").Logger(),
	}
}

// Evaluate returns the Sharpe ratio of w:
//
//	(wᵀμ - rf_daily) / sqrt(wᵀΣw)
//
// It fails with ErrDegenerateVolatility when the volatility is zero or not a real number.
func (e *Evaluator) Evaluate(w Wallet, riskFreeRate float64) (float64, error) {
	n := len(w.Assets)
	if n == 0 || len(w.Weights) != n {
		return 0, fmt.Errorf("malformed wallet: %d assets, %d weights", n, len(w.Weights))
	}

	means, cov, err := e.provider.MeanAndCovariance(w.Assets)
	if err != nil {
		return 0, fmt.Errorf("failed to load return statistics for %v: %w", w.Assets, err)
	}
	if cov.SymmetricDim() != n {
		return 0, fmt.Errorf("covariance matrix size %d doesn't match %d assets", cov.SymmetricDim(), n)
	}

	mu := make([]float64, n)
	for i, asset := range w.Assets {
		m, ok := means[asset]
		if !ok {
			return 0, fmt.Errorf("missing mean return for %s", asset)
		}
		mu[i] = m
	}

	weights := mat.NewVecDense(n, append([]float64(nil), w.Weights...))
	portfolioReturn := mat.Dot(weights, mat.NewVecDense(n, mu))
	volatility := math.Sqrt(mat.Inner(weights, cov, weights))

	if math.IsNaN(volatility) || math.IsInf(volatility, 0) || volatility <= 0 {
		return 0, fmt.Errorf("%w: volatility %v for %v", ErrDegenerateVolatility, volatility, w.Assets)
	}

	return (portfolioReturn - DailyRiskFreeRate(riskFreeRate)) / volatility, nil
}

// EvaluatePopulation scores every wallet and returns new wallets carrying the fitness.
// Wallets with degenerate volatility come back unscored; any other failure aborts.
func (e *Evaluator) EvaluatePopulation(population Population, riskFreeRate float64) (Population, error) {
	scored := make(Population, len(population))
	for i, w := range population {
		fitness, err := e.Evaluate(w, riskFreeRate)
		if errors.Is(err, ErrDegenerateVolatility) {
			e.log.Debug().
				Strs("assets", w.Assets).
				Err(err).
				Msg("Excluding wallet from ranking")
			scored[i] = NewWallet(w.Assets, w.Weights)
			continue
		}
		if err != nil {
			return nil, err
		}
		scored[i] = w.WithFitness(fitness)
	}
	return scored, nil
}
