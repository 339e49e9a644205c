package evolution

import (
	"fmt"
	"math/rand"
	"sort"
)

// SelectionMode names a parent selection strategy.
type SelectionMode string

const (
	SelectionElitism    SelectionMode = "elitism"
	SelectionTournament SelectionMode = "tournament"
	SelectionCombined   SelectionMode = "combined"
)

// DefaultTournamentSize is the number of contestants per tournament.
const DefaultTournamentSize = 3

// Selector picks two parents from a scored population.
type Selector interface {
	Select(population Population) ([]Wallet, error)
}

// NewSelector returns the strategy for mode. Tournaments draw from rng.
func NewSelector(mode SelectionMode, tournamentSize int, rng *rand.Rand) (Selector, error) {
	if tournamentSize <= 0 {
		tournamentSize = DefaultTournamentSize
	}
	switch mode {
	case SelectionElitism:
		return elitismSelector{}, nil
	case SelectionTournament:
		return tournamentSelector{size: tournamentSize, rng: rng}, nil
	case SelectionCombined, "":
		return combinedSelector{size: tournamentSize, rng: rng}, nil
	default:
		return nil, fmt.Errorf("%w: unknown selection mode %q", ErrConfiguration, mode)
	}
}

// requiredPopulation is the number of scored wallets mode needs.
func requiredPopulation(mode SelectionMode, tournamentSize int) int {
	switch mode {
	case SelectionElitism:
		return 2
	case SelectionTournament:
		return tournamentSize
	default:
		return max(2, tournamentSize)
	}
}

// Elitism returns the two fittest wallets, best first. Ties keep population order.
func Elitism(population Population) ([]Wallet, error) {
	ranked := population.Scored()
	if len(ranked) < 2 {
		return nil, fmt.Errorf("%w: elitism needs 2 scored wallets, have %d",
			ErrInsufficientPopulation, len(ranked))
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].Fitness > *ranked[j].Fitness
	})
	return []Wallet{ranked[0], ranked[1]}, nil
}

// Tournament draws size distinct scored wallets uniformly and returns the fittest.
func Tournament(population Population, size int, rng *rand.Rand) (Wallet, error) {
	contestants := population.Scored()
	if size < 1 {
		return Wallet{}, fmt.Errorf("%w: tournament size must be positive, got %d", ErrConfiguration, size)
	}
	if len(contestants) < size {
		return Wallet{}, fmt.Errorf("%w: tournament of %d needs as many scored wallets, have %d",
			ErrInsufficientPopulation, size, len(contestants))
	}

	idx := make([]int, len(contestants))
	for i := range idx {
		idx[i] = i
	}
	winner := -1
	for i := 0; i < size; i++ {
		j := i + rng.Intn(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		if winner < 0 || *contestants[idx[i]].Fitness > *contestants[winner].Fitness {
			winner = idx[i]
		}
	}
	return contestants[winner], nil
}

type elitismSelector struct{}

func (elitismSelector) Select(population Population) ([]Wallet, error) {
	return Elitism(population)
}

type tournamentSelector struct {
	size int
	rng  *rand.Rand
}

func (s tournamentSelector) Select(population Population) ([]Wallet, error) {
	first, err := Tournament(population, s.size, s.rng)
	if err != nil {
		return nil, err
	}
	second, err := Tournament(population, s.size, s.rng)
	if err != nil {
		return nil, err
	}
	return []Wallet{first, second}, nil
}

// combinedSelector pairs the elitist best with one tournament winner.
type combinedSelector struct {
	size int
	rng  *rand.Rand
}

func (s combinedSelector) Select(population Population) ([]Wallet, error) {
	if need, have := max(2, s.size), len(population.Scored()); have < need {
		return nil, fmt.Errorf("%w: combined selection needs %d scored wallets, have %d",
			ErrInsufficientPopulation, need, have)
	}
	elite, err := Elitism(population)
	if err != nil {
		return nil, err
	}
	winner, err := Tournament(population, s.size, s.rng)
	if err != nil {
		return nil, err
	}
	return []Wallet{elite[0], winner}, nil
}
