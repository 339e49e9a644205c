package evolution

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// seriesProvider computes statistics directly from in-memory return series.
type seriesProvider struct {
	series map[string][]float64
	calls  int
}

func (p *seriesProvider) AssetUniverse() ([]string, error) {
	assets := make([]string, 0, len(p.series))
	for asset := range p.series {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets, nil
}

func (p *seriesProvider) MeanAndCovariance(assets []string) (map[string]float64, *mat.SymDense, error) {
	p.calls++
	if len(assets) == 0 {
		return nil, nil, fmt.Errorf("no assets")
	}
	rows := len(p.series[assets[0]])
	data := mat.NewDense(rows, len(assets), nil)
	means := make(map[string]float64, len(assets))
	for j, asset := range assets {
		s, ok := p.series[asset]
		if !ok {
			return nil, nil, fmt.Errorf("unknown asset %s", asset)
		}
		for i := 0; i < rows; i++ {
			data.Set(i, j, s[i])
		}
		means[asset] = stat.Mean(s, nil)
	}
	cov := mat.NewSymDense(len(assets), nil)
	stat.CovarianceMatrix(cov, data, nil)
	return means, cov, nil
}

// syntheticProvider returns n assets with 120 days of drifting noisy returns.
func syntheticProvider(n int) *seriesProvider {
	rng := rand.New(rand.NewSource(7))
	series := make(map[string][]float64, n)
	for a := 0; a < n; a++ {
		drift := 0.0005 * float64(a+1)
		s := make([]float64, 120)
		for i := range s {
			s[i] = drift + 0.02*rng.NormFloat64()
		}
		series[fmt.Sprintf("COIN%02d", a)] = s
	}
	return &seriesProvider{series: series}
}

func scoredWallet(asset string, fitness float64) Wallet {
	return NewWallet([]string{asset, asset + "-2"}, []float64{0.5, 0.5}).WithFitness(fitness)
}

func weightSum(weights []float64) float64 {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	return sum
}
