package evolution

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// State is the lifecycle state of a search.
type State string

const (
	StateRunning   State = "RUNNING"
	StateConverged State = "CONVERGED"
	StateExhausted State = "EXHAUSTED"
	StateCancelled State = "CANCELLED"
)

// Terminal reports whether no further generations follow s.
func (s State) Terminal() bool {
	return s == StateConverged || s == StateExhausted || s == StateCancelled
}

// GenerationStat summarizes one evaluated generation.
type GenerationStat struct {
	Generation  int      `json:"generation" msgpack:"g"`
	BestFitness *float64 `json:"best_fitness,omitempty" msgpack:"b"`
	MeanFitness *float64 `json:"mean_fitness,omitempty" msgpack:"m"`
	Scored      int      `json:"scored" msgpack:"s"`
	Degenerate  int      `json:"degenerate" msgpack:"d"`
}

// Report is the outcome of a finished search.
type Report struct {
	State      State            `json:"state"`
	Generation int              `json:"generation"`
	BestWallet Wallet           `json:"best_wallet"`
	History    []GenerationStat `json:"history"`
	Duration   time.Duration    `json:"duration_ns"`
}

// Engine runs the genetic search over the assets of a ReturnsProvider.
type Engine struct {
	provider ReturnsProvider
	log      zerolog.Logger
}

// NewEngine creates an engine scoring wallets against provider.
func NewEngine(provider ReturnsProvider, log zerolog.Logger) *Engine {
	return &Engine{
		provider: provider,
		log:      log.With().Str("component", "evolution_engine").Logger(),
	}
}

// search carries the operators and state of one run.
type search struct {
	cfg         Config
	universe    []string
	rng         *rand.Rand
	evaluator   *Evaluator
	initializer *Initializer
	selector    Selector
	crossover   *Crossover
	mutator     *Mutator
}

// Run evolves populations until a wallet beats cfg.TargetSharpe, cfg.MaxGenerations is
// reached, or ctx is cancelled. Cancellation is checked between generations and yields a
// CANCELLED report with the best wallet seen so far.
func (e *Engine) Run(ctx context.Context, cfg Config, progress ProgressFunc) (*Report, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s, err := e.newSearch(cfg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	population, err := s.initializer.Initialize(s.universe, cfg.PortfolioSize, cfg.PopulationSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize population: %w", err)
	}

	e.log.Info().
		Int("universe", len(s.universe)).
		Int("population_size", cfg.PopulationSize).
		Int("portfolio_size", cfg.PortfolioSize).
		Int("max_generations", cfg.MaxGenerations).
		Float64("target_sharpe", cfg.TargetSharpe).
		Str("selection", string(cfg.Selection)).
		Msg("Starting evolution")

	var (
		best    Wallet
		hasBest bool
		history []GenerationStat
	)

	finish := func(state State, generation int, w Wallet) *Report {
		report := &Report{
			State:      state,
			Generation: generation,
			BestWallet: w.Clone(),
			History:    history,
			Duration:   time.Since(start),
		}
		e.log.Info().
			Str("state", string(state)).
			Int("generation", generation).
			Float64("best_fitness", w.FitnessValue()).
			Strs("assets", w.Assets).
			Dur("duration", report.Duration).
			Msg("Evolution finished")
		return report
	}

	for generation := 1; ; generation++ {
		if err := ctx.Err(); err != nil {
			if !hasBest {
				return nil, fmt.Errorf("search cancelled before any wallet was scored: %w", err)
			}
			return finish(StateCancelled, generation-1, best), nil
		}

		scored, err := s.evaluator.EvaluatePopulation(population, cfg.RiskFreeRate)
		if err != nil {
			return nil, fmt.Errorf("generation %d: %w", generation, err)
		}

		stat := summarize(generation, scored)
		history = append(history, stat)

		genBest, ok := scored.Best()
		if ok && (!hasBest || *genBest.Fitness > *best.Fitness) {
			best = genBest.Clone()
			hasBest = true
		}

		e.log.Debug().
			Int("generation", generation).
			Int("scored", stat.Scored).
			Int("degenerate", stat.Degenerate).
			Float64("generation_best", genBest.FitnessValue()).
			Float64("best", best.FitnessValue()).
			Msg("Generation evaluated")

		if state, w := s.termination(generation, scored, best, hasBest); state.Terminal() {
			return finish(state, generation, w), nil
		}
		if generation >= cfg.MaxGenerations {
			return nil, fmt.Errorf("%w: no wallet could be scored in %d generations",
				ErrInsufficientPopulation, generation)
		}

		parents, err := s.selector.Select(scored)
		if err != nil {
			return nil, fmt.Errorf("generation %d: selection failed: %w", generation, err)
		}
		callProgress(progress, generation, best.Clone())

		population, err = s.breed(scored, parents)
		if err != nil {
			return nil, fmt.Errorf("generation %d: %w", generation, err)
		}
	}
}

// termination decides whether the search stops after evaluating generation. A wallet must
// strictly exceed the target to converge; otherwise the last generation ends with the best
// wallet seen in any generation.
func (s *search) termination(generation int, scored Population, best Wallet, hasBest bool) (State, Wallet) {
	if genBest, ok := scored.Best(); ok && *genBest.Fitness > s.cfg.TargetSharpe {
		return StateConverged, genBest
	}
	if generation >= s.cfg.MaxGenerations && hasBest {
		return StateExhausted, best
	}
	return StateRunning, Wallet{}
}

func (e *Engine) newSearch(cfg Config) (*search, error) {
	universe, err := e.provider.AssetUniverse()
	if err != nil {
		return nil, fmt.Errorf("failed to load asset universe: %w", err)
	}

	rng := cfg.newRand()
	weights, err := NewWeightGenerator(cfg.WeightScheme, rng)
	if err != nil {
		return nil, err
	}
	selector, err := NewSelector(cfg.Selection, cfg.TournamentSize, rng)
	if err != nil {
		return nil, err
	}

	return &search{
		cfg:         cfg,
		universe:    universe,
		rng:         rng,
		evaluator:   NewEvaluator(e.provider, e.log),
		initializer: NewInitializer(rng, weights),
		selector:    selector,
		crossover:   NewCrossover(rng, weights),
		mutator:     NewMutator(rng),
	}, nil
}

// breed builds the next population: one child of the selected parents, the parents
// themselves, about half a population of fresh wallets, then triples of offspring from
// random pairs of the previous population until the target size is reached.
func (s *search) breed(previous Population, parents []Wallet) (Population, error) {
	size := s.cfg.PopulationSize
	next := make(Population, 0, size+2)

	child, err := s.offspring(parents[0], parents[1])
	if err != nil {
		return nil, err
	}
	next = append(next, child, parents[0].Clone(), parents[1].Clone())

	if fresh := size / 2; fresh > 0 {
		wallets, err := s.initializer.Initialize(s.universe, s.cfg.PortfolioSize, fresh)
		if err != nil {
			return nil, fmt.Errorf("failed to inject fresh wallets: %w", err)
		}
		next = append(next, wallets...)
	}

	for len(next) < size {
		i := s.rng.Intn(len(previous))
		j := s.rng.Intn(len(previous) - 1)
		if j >= i {
			j++
		}
		p1, p2 := previous[i], previous[j]

		for _, pair := range [][2]Wallet{{p1, p2}, {p1, child}, {child, p2}} {
			w, err := s.offspring(pair[0], pair[1])
			if err != nil {
				return nil, err
			}
			next = append(next, w)
		}
	}

	return next[:size], nil
}

// offspring crosses a and b and mutates the result.
func (s *search) offspring(a, b Wallet) (Wallet, error) {
	child, err := s.crossover.Cross(a, b)
	if err != nil {
		return Wallet{}, fmt.Errorf("crossover failed: %w", err)
	}
	mutated, err := s.mutator.Mutate(child)
	if err != nil {
		return Wallet{}, fmt.Errorf("mutation failed: %w", err)
	}
	return mutated, nil
}

func summarize(generation int, population Population) GenerationStat {
	stat := GenerationStat{Generation: generation}
	if best, ok := population.Best(); ok {
		f := *best.Fitness
		stat.BestFitness = &f
	}
	if mean, ok := population.MeanFitness(); ok {
		stat.MeanFitness = &mean
	}
	stat.Scored = len(population.Scored())
	stat.Degenerate = len(population) - stat.Scored
	return stat
}
