package evolution

import (
	"fmt"
	"math/rand"
)

// WeightScheme selects how wallet weights are drawn.
type WeightScheme string

const (
	// WeightsContinuous draws uniform values and normalizes them.
	WeightsContinuous WeightScheme = "continuous"
	// WeightsDenomination picks values from a fixed denomination set summing to exactly 1.
	WeightsDenomination WeightScheme = "denomination"
)

// Denominations are expressed in tenths so the exact-sum search stays in integers.
var denominations = []int{1, 2, 3, 4, 5}

const (
	denominationUnit  = 0.10
	denominationTotal = 10
	maxWeightAttempts = 1000
)

// WeightGenerator produces n strictly positive weights summing to 1.
type WeightGenerator interface {
	Generate(n int) ([]float64, error)
}

// NewWeightGenerator returns the generator for scheme drawing from rng.
func NewWeightGenerator(scheme WeightScheme, rng *rand.Rand) (WeightGenerator, error) {
	switch scheme {
	case WeightsContinuous, "":
		return &continuousWeights{rng: rng}, nil
	case WeightsDenomination:
		return &denominationWeights{rng: rng}, nil
	default:
		return nil, fmt.Errorf("%w: unknown weight scheme %q", ErrConfiguration, scheme)
	}
}

type continuousWeights struct {
	rng *rand.Rand
}

func (g *continuousWeights) Generate(n int) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: cannot generate %d weights", ErrConfiguration, n)
	}
	raw := make([]float64, n)
	for i := range raw {
		// (0, 1], never zero
		raw[i] = 1 - g.rng.Float64()
	}
	return normalize(raw), nil
}

type denominationWeights struct {
	rng *rand.Rand
}

func (g *denominationWeights) Generate(n int) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: cannot generate %d weights", ErrConfiguration, n)
	}
	for attempt := 0; attempt < maxWeightAttempts; attempt++ {
		if raw, ok := g.draw(n); ok {
			return normalize(raw), nil
		}
	}
	return nil, fmt.Errorf("%w: no %d denominations sum to 1 after %d attempts",
		ErrConfiguration, n, maxWeightAttempts)
}

// draw picks denominations left to right, keeping only values after which the remaining
// positions can still reach the exact total.
func (g *denominationWeights) draw(n int) ([]float64, bool) {
	lo, hi := denominations[0], denominations[len(denominations)-1]
	remaining := denominationTotal
	out := make([]float64, n)
	candidates := make([]int, 0, len(denominations))

	for i := 0; i < n; i++ {
		left := n - i - 1
		candidates = candidates[:0]
		for _, d := range denominations {
			rest := remaining - d
			if rest >= left*lo && rest <= left*hi {
				candidates = append(candidates, d)
			}
		}
		if len(candidates) == 0 {
			return nil, false
		}
		d := candidates[g.rng.Intn(len(candidates))]
		out[i] = float64(d) * denominationUnit
		remaining -= d
	}
	return out, remaining == 0
}

// denominationFeasible reports whether n denominations can sum to exactly 1.
func denominationFeasible(n int) bool {
	lo, hi := denominations[0], denominations[len(denominations)-1]
	return n >= 1 && n*lo <= denominationTotal && n*hi >= denominationTotal
}
