package evolution

import (
	"fmt"
	"math/rand"
)

// maxSamplesPerWallet bounds the duplicate rejection loop of Initialize.
const maxSamplesPerWallet = 100

// Initializer builds random wallets from an asset universe.
type Initializer struct {
	rng     *rand.Rand
	weights WeightGenerator
}

// NewInitializer creates an initializer drawing assets from rng and weights from weights.
func NewInitializer(rng *rand.Rand, weights WeightGenerator) *Initializer {
	return &Initializer{rng: rng, weights: weights}
}

// Initialize returns populationSize distinct wallets of portfolioSize assets each.
func (in *Initializer) Initialize(universe []string, portfolioSize, populationSize int) (Population, error) {
	assets := uniqueAssets(universe)
	if portfolioSize < 1 {
		return nil, fmt.Errorf("%w: portfolio size must be positive, got %d", ErrConfiguration, portfolioSize)
	}
	if portfolioSize > len(assets) {
		return nil, fmt.Errorf("%w: portfolio size %d exceeds universe of %d assets",
			ErrConfiguration, portfolioSize, len(assets))
	}
	if populationSize < 1 {
		return nil, fmt.Errorf("%w: population size must be positive, got %d", ErrConfiguration, populationSize)
	}

	population := make(Population, 0, populationSize)
	seen := make(map[string]struct{}, populationSize)
	maxAttempts := populationSize * maxSamplesPerWallet

	for attempts := 0; len(population) < populationSize; attempts++ {
		if attempts >= maxAttempts {
			return nil, fmt.Errorf("%w: only %d of %d distinct wallets found after %d samples",
				ErrConfiguration, len(population), populationSize, attempts)
		}
		w, err := in.sample(assets, portfolioSize)
		if err != nil {
			return nil, err
		}
		sig := w.Signature()
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		population = append(population, w)
	}
	return population, nil
}

func (in *Initializer) sample(universe []string, size int) (Wallet, error) {
	weights, err := in.weights.Generate(size)
	if err != nil {
		return Wallet{}, err
	}
	return Wallet{
		Assets:  sampleAssets(in.rng, universe, size),
		Weights: weights,
	}, nil
}

// sampleAssets draws k assets without replacement with a partial Fisher-Yates shuffle.
func sampleAssets(rng *rand.Rand, universe []string, k int) []string {
	pool := append([]string(nil), universe...)
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return append([]string(nil), pool[:k]...)
}

func uniqueAssets(universe []string) []string {
	seen := make(map[string]struct{}, len(universe))
	out := make([]string, 0, len(universe))
	for _, asset := range universe {
		if _, ok := seen[asset]; ok {
			continue
		}
		seen[asset] = struct{}{}
		out = append(out, asset)
	}
	return out
}
