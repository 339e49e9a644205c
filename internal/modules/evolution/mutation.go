package evolution

import (
	"fmt"
	"math/rand"
)

const (
	clampMin   = 0.01
	clampRange = 0.09
)

// Mutator applies inversion mutation.
type Mutator struct {
	rng *rand.Rand
}

// NewMutator creates a mutator drawing bounds from rng.
func NewMutator(rng *rand.Rand) *Mutator {
	return &Mutator{rng: rng}
}

// Mutate reverses a random segment [lo, hi] of both assets and weights and returns the
// result as a new unscored wallet. Non-positive weights are clamped into [0.01, 0.1] before
// renormalizing.
func (m *Mutator) Mutate(w Wallet) (Wallet, error) {
	n := len(w.Assets)
	if n < 2 {
		return Wallet{}, fmt.Errorf("%w: inversion needs 2 assets, have %d", ErrWalletTooSmall, n)
	}
	if len(w.Weights) != n {
		return Wallet{}, fmt.Errorf("malformed wallet: %d assets, %d weights", n, len(w.Weights))
	}

	lo, hi := m.bounds(n)
	out := Invert(w, lo, hi)
	for i, weight := range out.Weights {
		if !(weight > 0) {
			out.Weights[i] = clampMin + clampRange*m.rng.Float64()
		}
	}
	out.Weights = normalize(out.Weights)
	return out, nil
}

// bounds returns 0 <= lo < hi < n drawn uniformly over distinct pairs.
func (m *Mutator) bounds(n int) (int, int) {
	a := m.rng.Intn(n)
	b := m.rng.Intn(n - 1)
	if b >= a {
		b++
	}
	if a > b {
		a, b = b, a
	}
	return a, b
}

// Invert returns a copy of w with positions lo..hi reversed in both assets and weights.
// Applying it twice with the same bounds restores the original order.
func Invert(w Wallet, lo, hi int) Wallet {
	out := NewWallet(w.Assets, w.Weights)
	for i, j := lo, hi; i < j; i, j = i+1, j-1 {
		out.Assets[i], out.Assets[j] = out.Assets[j], out.Assets[i]
		out.Weights[i], out.Weights[j] = out.Weights[j], out.Weights[i]
	}
	return out
}
