package evolution

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCrossover(t *testing.T, seed int64) *Crossover {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	weights, err := NewWeightGenerator(WeightsContinuous, rng)
	require.NoError(t, err)
	return NewCrossover(rng, weights)
}

func TestCross_ChildInvariants(t *testing.T) {
	p1 := NewWallet([]string{"BTC", "ETH", "SOL", "ADA", "XRP"}, []float64{0.2, 0.2, 0.2, 0.2, 0.2})
	p2 := NewWallet([]string{"ETH", "DOT", "BTC", "BNB", "DOGE"}, []float64{0.1, 0.2, 0.3, 0.2, 0.2})
	c := newTestCrossover(t, 21)

	for i := 0; i < 200; i++ {
		child, err := c.Cross(p1, p2)
		require.NoError(t, err)
		require.NoError(t, child.Validate(5))
		assert.False(t, child.Scored())

		for _, asset := range child.Assets {
			inParent := false
			for _, a := range append(append([]string{}, p1.Assets...), p2.Assets...) {
				if a == asset {
					inParent = true
					break
				}
			}
			assert.True(t, inParent, "asset %s from neither parent", asset)
		}
	}
}

func TestCross_DeterministicWithSeed(t *testing.T) {
	p1 := NewWallet([]string{"A", "B", "C", "D", "E", "F"}, []float64{0.1, 0.1, 0.2, 0.2, 0.2, 0.2})
	p2 := NewWallet([]string{"F", "G", "H", "A", "I", "J"}, []float64{0.1, 0.1, 0.2, 0.2, 0.2, 0.2})

	first, err := newTestCrossover(t, 99).Cross(p1, p2)
	require.NoError(t, err)
	second, err := newTestCrossover(t, 99).Cross(p1, p2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCross_DoesNotModifyParents(t *testing.T) {
	p1 := NewWallet([]string{"A", "B", "C"}, []float64{0.2, 0.3, 0.5})
	p2 := NewWallet([]string{"C", "D", "A"}, []float64{0.6, 0.2, 0.2})
	c := newTestCrossover(t, 4)

	_, err := c.Cross(p1, p2)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, p1.Assets)
	assert.Equal(t, []float64{0.2, 0.3, 0.5}, p1.Weights)
	assert.Equal(t, []string{"C", "D", "A"}, p2.Assets)
}

func TestCross_IdenticalParents(t *testing.T) {
	p := NewWallet([]string{"A", "B", "C", "D"}, []float64{0.25, 0.25, 0.25, 0.25})
	c := newTestCrossover(t, 6)

	child, err := c.Cross(p, p)
	require.NoError(t, err)
	assert.Equal(t, p.Assets, child.Assets)
	require.NoError(t, child.Validate(4))
}

func TestCross_TopsUpFromParentOne(t *testing.T) {
	// p2 repeats p1's assets in other positions, so the middle segment always collides
	p1 := NewWallet([]string{"A", "B", "C", "D"}, []float64{0.25, 0.25, 0.25, 0.25})
	p2 := NewWallet([]string{"A", "A", "A", "A"}, []float64{0.25, 0.25, 0.25, 0.25})
	c := newTestCrossover(t, 12)

	for i := 0; i < 50; i++ {
		child, err := c.Cross(p1, p2)
		require.NoError(t, err)
		assert.ElementsMatch(t, p1.Assets, child.Assets)
		require.NoError(t, child.Validate(4))
	}
}

func TestCross_Exhausted(t *testing.T) {
	// parent1 itself has only two distinct assets, a third can never be found
	p1 := NewWallet([]string{"A", "B", "A"}, []float64{0.3, 0.3, 0.4})
	p2 := NewWallet([]string{"A", "B", "B"}, []float64{0.3, 0.3, 0.4})
	c := newTestCrossover(t, 1)

	_, err := c.Cross(p1, p2)
	assert.ErrorIs(t, err, ErrCrossoverExhausted)
}

func TestCross_IncompatibleParents(t *testing.T) {
	c := newTestCrossover(t, 1)

	_, err := c.Cross(
		NewWallet([]string{"A", "B"}, []float64{0.5, 0.5}),
		NewWallet([]string{"A", "B", "C"}, []float64{0.3, 0.3, 0.4}),
	)
	assert.ErrorIs(t, err, ErrIncompatibleParents)

	_, err = c.Cross(Wallet{}, Wallet{})
	assert.ErrorIs(t, err, ErrIncompatibleParents)
}

func TestCutPoints_Bounds(t *testing.T) {
	c := newTestCrossover(t, 77)

	for n := 3; n <= 8; n++ {
		seen := make(map[[2]int]bool)
		for i := 0; i < 500; i++ {
			c1, c2 := c.cutPoints(n)
			require.Greater(t, c1, 0)
			require.Less(t, c1, c2)
			require.Less(t, c2, n)
			seen[[2]int{c1, c2}] = true
		}
		// every pair 0 < c1 < c2 < n is reachable
		assert.Len(t, seen, (n-1)*(n-2)/2, "n=%d", n)
	}

	c1, c2 := c.cutPoints(2)
	assert.Equal(t, 1, c1)
	assert.Equal(t, 2, c2)
}

func TestCross_TwoAssetWallets(t *testing.T) {
	p1 := NewWallet([]string{"A", "B"}, []float64{0.5, 0.5})
	p2 := NewWallet([]string{"C", "D"}, []float64{0.5, 0.5})
	c := newTestCrossover(t, 3)

	child, err := c.Cross(p1, p2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "D"}, child.Assets)
	require.NoError(t, child.Validate(2))
}
