package returns

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource struct {
	mu     sync.Mutex
	prices map[string][]PricePoint
	loads  map[string]int
	err    error
}

func newMapSource(prices map[string][]PricePoint) *mapSource {
	return &mapSource{prices: prices, loads: make(map[string]int)}
}

func (s *mapSource) Assets() ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	assets := make([]string, 0, len(s.prices))
	for a := range s.prices {
		assets = append(assets, a)
	}
	// unsorted on purpose; the provider sorts
	sort.Sort(sort.Reverse(sort.StringSlice(assets)))
	return assets, nil
}

func (s *mapSource) GetDailyPrices(asset string) ([]PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.loads[asset]++
	return s.prices[asset], nil
}

// pricesFromReturns builds a daily price path starting at 100 on 2024-01-01.
func pricesFromReturns(startDay int, rets ...float64) []PricePoint {
	price := 100.0
	out := []PricePoint{{Date: day(startDay), Close: price}}
	for i, r := range rets {
		price *= 1 + r
		out = append(out, PricePoint{Date: day(startDay + i + 1), Close: price})
	}
	return out
}

func day(n int) string {
	return fmt.Sprintf("2024-01-%02d", n)
}

func newTestProvider(t *testing.T, src PriceSource) *Provider {
	t.Helper()
	p, err := NewProvider(src, Config{Method: MethodSimple}, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func TestNewProvider_RejectsUnknownMethod(t *testing.T) {
	_, err := NewProvider(newMapSource(nil), Config{Method: "cubic"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestProvider_AssetUniverseSortedAndFiltered(t *testing.T) {
	src := newMapSource(map[string][]PricePoint{
		"SOL":   pricesFromReturns(1, 0.01, 0.02, 0.03),
		"BTC":   pricesFromReturns(1, 0.01, -0.02, 0.03),
		"SHORT": pricesFromReturns(1, 0.01),
	})
	p := newTestProvider(t, src)

	universe, err := p.AssetUniverse()
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "SOL"}, universe)

	// each call is a fresh snapshot
	universe[0] = "MUTATED"
	again, err := p.AssetUniverse()
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "SOL"}, again)
}

func TestProvider_AssetUniverseSourceError(t *testing.T) {
	src := newMapSource(nil)
	src.err = errors.New("disk on fire")

	_, err := newTestProvider(t, src).AssetUniverse()
	assert.ErrorIs(t, err, src.err)
}

func TestProvider_SingleAssetStatistics(t *testing.T) {
	src := newMapSource(map[string][]PricePoint{
		"BTC": pricesFromReturns(1, 0.01, -0.02, 0.03),
	})
	p := newTestProvider(t, src)

	means, cov, err := p.MeanAndCovariance([]string{"BTC"})
	require.NoError(t, err)

	mean := (0.01 - 0.02 + 0.03) / 3
	variance := (math.Pow(0.01-mean, 2) + math.Pow(-0.02-mean, 2) + math.Pow(0.03-mean, 2)) / 2
	assert.InDelta(t, mean, means["BTC"], 1e-12)
	assert.InDelta(t, variance, cov.At(0, 0), 1e-12)

	rets, err := p.Returns("BTC")
	require.NoError(t, err)
	require.Len(t, rets, 3)
	assert.InDelta(t, -0.02, rets[1], 1e-12)
}

func TestProvider_CovarianceFollowsRequestedOrder(t *testing.T) {
	src := newMapSource(map[string][]PricePoint{
		"A": pricesFromReturns(1, 0.01, 0.02, -0.01, 0.03),
		"B": pricesFromReturns(1, -0.01, 0.01, 0.02, 0.00),
		"C": pricesFromReturns(1, 0.05, -0.04, 0.01, 0.02),
	})
	p := newTestProvider(t, src)

	m1, abc, err := p.MeanAndCovariance([]string{"A", "B", "C"})
	require.NoError(t, err)
	m2, cba, err := p.MeanAndCovariance([]string{"C", "B", "A"})
	require.NoError(t, err)

	assert.Equal(t, m1, m2)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, abc.At(i, j), cba.At(2-i, 2-j), 1e-15)
		}
	}
	assert.Greater(t, abc.At(2, 2), abc.At(1, 1), "C is the most volatile")
}

func TestProvider_AlignsOnCommonDates(t *testing.T) {
	src := newMapSource(map[string][]PricePoint{
		// returns dated 02..05
		"A": pricesFromReturns(1, 0.01, 0.02, -0.01, 0.03),
		// returns dated 04..06
		"B": pricesFromReturns(3, 0.05, 0.01, 0.02),
	})
	p := newTestProvider(t, src)

	means, _, err := p.MeanAndCovariance([]string{"A", "B"})
	require.NoError(t, err)

	n, err := p.Observations([]string{"B", "A"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	// A over 04 and 05 only
	assert.InDelta(t, (-0.01+0.03)/2, means["A"], 1e-12)
	assert.InDelta(t, (0.05+0.01)/2, means["B"], 1e-12)
}

func TestProvider_InsufficientHistory(t *testing.T) {
	src := newMapSource(map[string][]PricePoint{
		"A": pricesFromReturns(1, 0.01, 0.02),
		"B": pricesFromReturns(10, 0.05, 0.01),
	})
	p := newTestProvider(t, src)

	_, _, err := p.MeanAndCovariance([]string{"A", "B"})
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestProvider_Errors(t *testing.T) {
	src := newMapSource(map[string][]PricePoint{
		"A": pricesFromReturns(1, 0.01, 0.02),
	})
	p := newTestProvider(t, src)

	_, _, err := p.MeanAndCovariance([]string{"A", "MISSING"})
	assert.ErrorIs(t, err, ErrUnknownAsset)

	_, _, err = p.MeanAndCovariance([]string{"A", "A"})
	assert.Error(t, err)

	_, _, err = p.MeanAndCovariance(nil)
	assert.Error(t, err)
}

func TestProvider_CachesUntilInvalidated(t *testing.T) {
	src := newMapSource(map[string][]PricePoint{
		"A": pricesFromReturns(1, 0.01, 0.02, 0.03),
		"B": pricesFromReturns(1, 0.02, 0.01, -0.01),
	})
	p := newTestProvider(t, src)

	for i := 0; i < 5; i++ {
		_, _, err := p.MeanAndCovariance([]string{"A", "B"})
		require.NoError(t, err)
		_, _, err = p.MeanAndCovariance([]string{"B", "A"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.loads["A"])
	assert.Equal(t, 1, src.loads["B"])

	p.Invalidate()
	_, _, err := p.MeanAndCovariance([]string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, 2, src.loads["A"])
}

func TestProvider_ConcurrentAccess(t *testing.T) {
	src := newMapSource(map[string][]PricePoint{
		"A": pricesFromReturns(1, 0.01, 0.02, 0.03, -0.01),
		"B": pricesFromReturns(1, 0.02, 0.01, -0.01, 0.00),
		"C": pricesFromReturns(1, -0.02, 0.04, 0.01, 0.02),
	})
	p := newTestProvider(t, src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sets := [][]string{{"A", "B"}, {"B", "C"}, {"A", "B", "C"}}
			_, _, err := p.MeanAndCovariance(sets[i%len(sets)])
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}
