package evolution

import (
	"fmt"
	"math/rand"
	"sort"
)

// topUpAttemptsPerAsset bounds how many parent1 draws a child may spend per missing asset.
const topUpAttemptsPerAsset = 100

// Crossover combines two parents with a two-point, asset-preserving recombination.
type Crossover struct {
	rng     *rand.Rand
	weights WeightGenerator
}

// NewCrossover creates a crossover operator. Child weights are always regenerated by weights.
func NewCrossover(rng *rand.Rand, weights WeightGenerator) *Crossover {
	return &Crossover{rng: rng, weights: weights}
}

// Cross returns a child of p1 and p2 with fresh weights and no fitness.
func (c *Crossover) Cross(p1, p2 Wallet) (Wallet, error) {
	n := len(p1.Assets)
	if n != len(p2.Assets) {
		return Wallet{}, fmt.Errorf("%w: parent sizes %d and %d", ErrIncompatibleParents, n, len(p2.Assets))
	}
	if n == 0 {
		return Wallet{}, fmt.Errorf("%w: empty parents", ErrIncompatibleParents)
	}

	c1, c2 := c.cutPoints(n)

	raw := make([]string, 0, n)
	raw = append(raw, p1.Assets[:c1]...)
	raw = append(raw, p2.Assets[c1:c2]...)
	raw = append(raw, p1.Assets[c2:]...)

	child := uniqueAssets(raw)
	present := make(map[string]struct{}, n)
	for _, asset := range child {
		present[asset] = struct{}{}
	}

	for attempts := 0; len(child) < n; attempts++ {
		if attempts >= topUpAttemptsPerAsset*n {
			return Wallet{}, fmt.Errorf("%w: child has %d of %d assets after %d draws",
				ErrCrossoverExhausted, len(child), n, attempts)
		}
		asset := p1.Assets[c.rng.Intn(n)]
		if _, ok := present[asset]; ok {
			continue
		}
		present[asset] = struct{}{}
		child = append(child, asset)
	}
	child = child[:n]

	weights, err := c.weights.Generate(n)
	if err != nil {
		return Wallet{}, err
	}
	return Wallet{Assets: child, Weights: weights}, nil
}

// cutPoints returns 0 < c1 < c2 < n drawn uniformly over distinct pairs. Wallets with fewer
// than three assets get a single cut at min(1, n) and c2 = n.
func (c *Crossover) cutPoints(n int) (int, int) {
	if n < 3 {
		return min(1, n), n
	}
	a := 1 + c.rng.Intn(n-1)
	b := 1 + c.rng.Intn(n-2)
	if b >= a {
		b++
	}
	cuts := []int{a, b}
	sort.Ints(cuts)
	return cuts[0], cuts[1]
}
