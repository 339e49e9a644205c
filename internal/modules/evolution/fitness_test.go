package evolution

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestDailyRiskFreeRate(t *testing.T) {
	assert.Equal(t, 0.0, DailyRiskFreeRate(0))

	daily := DailyRiskFreeRate(0.04)
	assert.InDelta(t, 0.04, math.Pow(1+daily, TradingDaysPerYear)-1, 1e-12)
	assert.InDelta(t, 0.00015565, daily, 1e-9)
}

func TestEvaluate_SingleAssetSharpe(t *testing.T) {
	provider := &seriesProvider{series: map[string][]float64{
		"BTC": {0.01, -0.02, 0.03},
	}}
	evaluator := NewEvaluator(provider, zerolog.Nop())

	sharpe, err := evaluator.Evaluate(NewWallet([]string{"BTC"}, []float64{1}), 0)
	require.NoError(t, err)

	mean := (0.01 - 0.02 + 0.03) / 3
	variance := (math.Pow(0.01-mean, 2) + math.Pow(-0.02-mean, 2) + math.Pow(0.03-mean, 2)) / 2
	assert.InDelta(t, 0.0066667, mean, 1e-7)
	assert.InDelta(t, mean/math.Sqrt(variance), sharpe, 1e-12)
	assert.InDelta(t, 0.2649065, sharpe, 1e-6)
}

func TestEvaluate_SubtractsDailyRiskFreeRate(t *testing.T) {
	provider := &seriesProvider{series: map[string][]float64{
		"BTC": {0.01, -0.02, 0.03},
	}}
	evaluator := NewEvaluator(provider, zerolog.Nop())
	w := NewWallet([]string{"BTC"}, []float64{1})

	free, err := evaluator.Evaluate(w, 0)
	require.NoError(t, err)
	withRate, err := evaluator.Evaluate(w, 0.04)
	require.NoError(t, err)

	vol := (0.01 - 0.02 + 0.03) / 3 / free
	assert.InDelta(t, free-DailyRiskFreeRate(0.04)/vol, withRate, 1e-12)
}

func TestEvaluate_TwoAssetPortfolio(t *testing.T) {
	provider := &seriesProvider{series: map[string][]float64{
		"A": {0.01, 0.02, -0.01, 0.03},
		"B": {-0.01, 0.01, 0.02, 0.00},
	}}
	evaluator := NewEvaluator(provider, zerolog.Nop())

	sharpe, err := evaluator.Evaluate(NewWallet([]string{"A", "B"}, []float64{0.6, 0.4}), 0)
	require.NoError(t, err)

	// the same portfolio as a single blended series
	blended := make([]float64, 4)
	for i := range blended {
		blended[i] = 0.6*provider.series["A"][i] + 0.4*provider.series["B"][i]
	}
	single := &seriesProvider{series: map[string][]float64{"P": blended}}
	expected, err := NewEvaluator(single, zerolog.Nop()).Evaluate(NewWallet([]string{"P"}, []float64{1}), 0)
	require.NoError(t, err)

	assert.InDelta(t, expected, sharpe, 1e-9)
}

func TestEvaluate_DegenerateVolatility(t *testing.T) {
	provider := &seriesProvider{series: map[string][]float64{
		"FLAT": {0, 0, 0},
	}}
	evaluator := NewEvaluator(provider, zerolog.Nop())

	_, err := evaluator.Evaluate(NewWallet([]string{"FLAT"}, []float64{1}), 0)
	assert.ErrorIs(t, err, ErrDegenerateVolatility)
}

type failingProvider struct{ err error }

func (p failingProvider) AssetUniverse() ([]string, error) { return nil, p.err }

func (p failingProvider) MeanAndCovariance([]string) (map[string]float64, *mat.SymDense, error) {
	return nil, nil, p.err
}

func TestEvaluate_ProviderErrorPropagates(t *testing.T) {
	sentinel := errors.New("no history")
	evaluator := NewEvaluator(failingProvider{err: sentinel}, zerolog.Nop())

	_, err := evaluator.Evaluate(NewWallet([]string{"A", "B"}, []float64{0.5, 0.5}), 0)
	assert.ErrorIs(t, err, sentinel)

	_, err = evaluator.EvaluatePopulation(Population{NewWallet([]string{"A", "B"}, []float64{0.5, 0.5})}, 0)
	assert.ErrorIs(t, err, sentinel)
}

func TestEvaluate_MalformedWallet(t *testing.T) {
	evaluator := NewEvaluator(&seriesProvider{}, zerolog.Nop())

	_, err := evaluator.Evaluate(Wallet{}, 0)
	assert.Error(t, err)
}

func TestEvaluatePopulation_ExcludesDegenerate(t *testing.T) {
	provider := &seriesProvider{series: map[string][]float64{
		"A":    {0.01, 0.02, -0.01},
		"B":    {-0.01, 0.01, 0.02},
		"FLAT": {0, 0, 0},
	}}
	evaluator := NewEvaluator(provider, zerolog.Nop())

	pop := Population{
		NewWallet([]string{"A", "B"}, []float64{0.5, 0.5}),
		NewWallet([]string{"FLAT"}, []float64{1}),
	}

	scored, err := evaluator.EvaluatePopulation(pop, 0)
	require.NoError(t, err)
	require.Len(t, scored, 2)
	assert.True(t, scored[0].Scored())
	assert.False(t, scored[1].Scored())

	// inputs are not modified
	assert.False(t, pop[0].Scored())
	assert.Equal(t, pop[0].Assets, scored[0].Assets)
}
