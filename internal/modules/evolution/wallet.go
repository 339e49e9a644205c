package evolution

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// WeightTolerance is the allowed drift of a wallet's weight sum from 1.
const WeightTolerance = 1e-6

// Wallet is one candidate portfolio. Weights[i] is the allocation of Assets[i].
type Wallet struct {
	Assets  []string  `json:"assets"`
	Weights []float64 `json:"weights"`
	Fitness *float64  `json:"fitness,omitempty"`
}

// Population is an ordered collection of wallets.
type Population []Wallet

// NewWallet copies assets and weights into a wallet with no fitness.
func NewWallet(assets []string, weights []float64) Wallet {
	return Wallet{
		Assets:  append([]string(nil), assets...),
		Weights: append([]float64(nil), weights...),
	}
}

// Size returns the number of assets in the wallet.
func (w Wallet) Size() int {
	return len(w.Assets)
}

// Scored reports whether the wallet carries a fitness value.
func (w Wallet) Scored() bool {
	return w.Fitness != nil
}

// FitnessValue returns the fitness, or -Inf for an unscored wallet.
func (w Wallet) FitnessValue() float64 {
	if w.Fitness == nil {
		return math.Inf(-1)
	}
	return *w.Fitness
}

// Clone returns a deep copy of the wallet.
func (w Wallet) Clone() Wallet {
	c := NewWallet(w.Assets, w.Weights)
	if w.Fitness != nil {
		f := *w.Fitness
		c.Fitness = &f
	}
	return c
}

// WithFitness returns a copy of the wallet scored with f.
func (w Wallet) WithFitness(f float64) Wallet {
	c := NewWallet(w.Assets, w.Weights)
	c.Fitness = &f
	return c
}

// Signature identifies a wallet by its assets and weights rounded to two decimals.
func (w Wallet) Signature() string {
	var b strings.Builder
	for i, asset := range w.Assets {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(asset)
		b.WriteByte('=')
		if i < len(w.Weights) {
			b.WriteString(strconv.FormatFloat(w.Weights[i], 'f', 2, 64))
		}
	}
	return b.String()
}

// Validate checks the structural wallet invariants for the given portfolio size.
func (w Wallet) Validate(size int) error {
	if len(w.Assets) != size {
		return fmt.Errorf("wallet has %d assets, expected %d", len(w.Assets), size)
	}
	if len(w.Weights) != len(w.Assets) {
		return fmt.Errorf("wallet has %d weights for %d assets", len(w.Weights), len(w.Assets))
	}

	seen := make(map[string]struct{}, len(w.Assets))
	for _, asset := range w.Assets {
		if _, dup := seen[asset]; dup {
			return fmt.Errorf("duplicate asset %s", asset)
		}
		seen[asset] = struct{}{}
	}

	sum := 0.0
	for i, weight := range w.Weights {
		if !(weight > 0) {
			return fmt.Errorf("weight %d for %s is not positive: %v", i, w.Assets[i], weight)
		}
		sum += weight
	}
	if math.Abs(sum-1) > WeightTolerance {
		return fmt.Errorf("weights sum to %v", sum)
	}
	return nil
}

// Best returns the highest scored wallet of the population. Unscored wallets are
// skipped; ok is false when nothing is scored. Ties keep the earliest wallet.
func (p Population) Best() (Wallet, bool) {
	bestIdx := -1
	for i, w := range p {
		if !w.Scored() {
			continue
		}
		if bestIdx < 0 || *w.Fitness > *p[bestIdx].Fitness {
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return Wallet{}, false
	}
	return p[bestIdx], true
}

// Scored returns the wallets that carry a fitness value, in population order.
func (p Population) Scored() Population {
	out := make(Population, 0, len(p))
	for _, w := range p {
		if w.Scored() {
			out = append(out, w)
		}
	}
	return out
}

// MeanFitness averages the fitness of the scored wallets. ok is false when none is scored.
func (p Population) MeanFitness() (float64, bool) {
	sum := 0.0
	n := 0
	for _, w := range p {
		if w.Scored() {
			sum += *w.Fitness
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func normalize(weights []float64) []float64 {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	out := make([]float64, len(weights))
	for i, w := range weights {
		out[i] = w / sum
	}
	return out
}
