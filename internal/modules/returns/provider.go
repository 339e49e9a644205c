package returns

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultMinHistory is the minimum number of returns an asset needs to join the universe.
const DefaultMinHistory = 2

// Config controls how the provider derives returns.
type Config struct {
	Method     Method
	MinHistory int
}

// setStats are the statistics of one asset set, in sorted asset order.
type setStats struct {
	assets       []string
	means        []float64
	cov          *mat.SymDense
	observations int
}

// Provider computes and caches return statistics over a PriceSource. It is safe for
// concurrent use.
type Provider struct {
	source     PriceSource
	method     Method
	minHistory int
	log        zerolog.Logger

	mu     sync.RWMutex
	series map[string]Series
	sets   map[string]*setStats
}

// NewProvider creates a provider reading prices from source.
func NewProvider(source PriceSource, cfg Config, log zerolog.Logger) (*Provider, error) {
	method, err := ParseMethod(string(cfg.Method))
	if err != nil {
		return nil, err
	}
	minHistory := cfg.MinHistory
	if minHistory < DefaultMinHistory {
		minHistory = DefaultMinHistory
	}
	return &Provider{
		source:     source,
		method:     method,
		minHistory: minHistory,
		log:        log.With().Str("component", "returns_provider").Logger(),
		series:     make(map[string]Series),
		sets:       make(map[string]*setStats),
	}, nil
}

// Method returns the return method in use.
func (p *Provider) Method() Method {
	return p.method
}

// Invalidate drops every cached series and statistic, typically after new prices arrive.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.series = make(map[string]Series)
	p.sets = make(map[string]*setStats)
	p.log.Debug().Msg("Return statistics cache cleared")
}

// AssetUniverse returns a fresh sorted list of the assets with at least the minimum number
// of returns.
func (p *Provider) AssetUniverse() ([]string, error) {
	assets, err := p.source.Assets()
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	universe := make([]string, 0, len(assets))
	for _, asset := range assets {
		s, err := p.Series(asset)
		if err != nil {
			return nil, err
		}
		if s.Len() < p.minHistory {
			p.log.Debug().
				Str("asset", asset).
				Int("observations", s.Len()).
				Msg("Skipping asset with short history")
			continue
		}
		universe = append(universe, asset)
	}
	sort.Strings(universe)
	return universe, nil
}

// Returns returns a copy of the daily return values of asset.
func (p *Provider) Returns(asset string) ([]float64, error) {
	s, err := p.Series(asset)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), s.Values...), nil
}

// Series returns the dated return series of asset, computing it on first use.
func (p *Provider) Series(asset string) (Series, error) {
	p.mu.RLock()
	s, ok := p.series[asset]
	p.mu.RUnlock()
	if ok {
		return s, nil
	}

	prices, err := p.source.GetDailyPrices(asset)
	if err != nil {
		return Series{}, fmt.Errorf("failed to load prices for %s: %w", asset, err)
	}
	if len(prices) == 0 {
		return Series{}, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	s = Calculate(prices, p.method)

	p.mu.Lock()
	p.series[asset] = s
	p.mu.Unlock()
	return s, nil
}

// MeanAndCovariance returns the mean daily return of each asset and the sample covariance
// matrix of their returns, both over the dates all assets share. Matrix rows and columns
// follow the order of assets.
func (p *Provider) MeanAndCovariance(assets []string) (map[string]float64, *mat.SymDense, error) {
	if len(assets) == 0 {
		return nil, nil, fmt.Errorf("no assets provided")
	}

	stats, err := p.setStats(assets)
	if err != nil {
		return nil, nil, err
	}

	pos := make(map[string]int, len(stats.assets))
	for i, asset := range stats.assets {
		pos[asset] = i
	}

	n := len(assets)
	means := make(map[string]float64, n)
	cov := mat.NewSymDense(n, nil)
	for i, a := range assets {
		means[a] = stats.means[pos[a]]
		for j := i; j < n; j++ {
			cov.SetSym(i, j, stats.cov.At(pos[a], pos[assets[j]]))
		}
	}
	return means, cov, nil
}

// Observations returns how many aligned return dates the assets share.
func (p *Provider) Observations(assets []string) (int, error) {
	stats, err := p.setStats(assets)
	if err != nil {
		return 0, err
	}
	return stats.observations, nil
}

func (p *Provider) setStats(assets []string) (*setStats, error) {
	sorted := append([]string(nil), assets...)
	sort.Strings(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return nil, fmt.Errorf("duplicate asset %s", sorted[i])
		}
	}

	key := hashAssets(sorted)
	p.mu.RLock()
	cached, ok := p.sets[key]
	p.mu.RUnlock()
	if ok {
		return cached, nil
	}

	series := make([]Series, len(sorted))
	for i, asset := range sorted {
		s, err := p.Series(asset)
		if err != nil {
			return nil, err
		}
		series[i] = s
	}

	dates, columns := Align(series)
	if len(dates) < 2 {
		return nil, fmt.Errorf("%w: %v share %d return dates", ErrInsufficientHistory, sorted, len(dates))
	}

	data := mat.NewDense(len(dates), len(sorted), nil)
	means := make([]float64, len(sorted))
	for j, col := range columns {
		data.SetCol(j, col)
		means[j] = stat.Mean(col, nil)
	}
	cov := mat.NewSymDense(len(sorted), nil)
	stat.CovarianceMatrix(cov, data, nil)

	stats := &setStats{
		assets:       sorted,
		means:        means,
		cov:          cov,
		observations: len(dates),
	}

	p.mu.Lock()
	p.sets[key] = stats
	p.mu.Unlock()

	p.log.Debug().
		Str("hash", key[:8]).
		Int("assets", len(sorted)).
		Int("observations", len(dates)).
		Msg("Computed return statistics")
	return stats, nil
}

// hashAssets creates a deterministic cache key from a sorted asset list.
func hashAssets(sorted []string) string {
	h := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(h[:16])
}
