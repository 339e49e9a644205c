package returns

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Stats(t *testing.T) {
	rets := make([]float64, 20)
	for i := range rets {
		if i%2 == 0 {
			rets[i] = 0.02
		} else {
			rets[i] = -0.01
		}
	}
	src := newMapSource(map[string][]PricePoint{"BTC": pricesFromReturns(1, rets...)})
	p := newTestProvider(t, src)

	stats, err := p.Stats("BTC")
	require.NoError(t, err)

	assert.Equal(t, "BTC", stats.Asset)
	assert.Equal(t, 20, stats.Observations)
	assert.Equal(t, "2024-01-01", stats.FirstDate)
	assert.Equal(t, "2024-01-21", stats.LastDate)
	assert.InDelta(t, 0.005, stats.MeanDailyReturn, 1e-12)
	assert.InDelta(t, stats.DailyVolatility*math.Sqrt(252), stats.AnnualizedVolatility, 1e-12)
	require.NotNil(t, stats.SharpeRatio)
	assert.Greater(t, *stats.SharpeRatio, 0.0)
	require.NotNil(t, stats.RSI)
	assert.Greater(t, *stats.RSI, 50.0)
	assert.Less(t, *stats.RSI, 100.0)
}

func TestProvider_StatsUnknownAsset(t *testing.T) {
	p := newTestProvider(t, newMapSource(map[string][]PricePoint{}))

	_, err := p.Stats("NOPE")
	assert.ErrorIs(t, err, ErrUnknownAsset)
}

func TestCalculateRSI(t *testing.T) {
	assert.Nil(t, calculateRSI([]float64{1, 2, 3}, 14))

	rising := make([]float64, 30)
	for i := range rising {
		rising[i] = float64(100 + i)
	}
	rsi := calculateRSI(rising, 14)
	require.NotNil(t, rsi)
	assert.InDelta(t, 100.0, *rsi, 1e-9)
}
