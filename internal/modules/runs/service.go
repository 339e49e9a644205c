package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/cryptowallet/internal/metrics"
	"github.com/aristath/cryptowallet/internal/modules/evolution"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// subscriberBuffer is the number of events a slow subscriber may fall behind before
// events are dropped for it.
const subscriberBuffer = 16

// Searcher runs one genetic search.
type Searcher interface {
	Run(ctx context.Context, cfg evolution.Config, progress evolution.ProgressFunc) (*evolution.Report, error)
}

// SearcherFactory returns the searcher of one run. It is called when the run starts, so
// the searcher can hold the price history as of that moment for the whole run.
type SearcherFactory func() (Searcher, error)

// Fixed returns a factory handing out the same searcher to every run.
func Fixed(searcher Searcher) SearcherFactory {
	return func() (Searcher, error) { return searcher, nil }
}

type activeRun struct {
	cancel      context.CancelFunc
	subscribers map[chan Event]struct{}
}

// Service starts searches in the background and tracks them until they finish.
type Service struct {
	searchers SearcherFactory
	repo          *Repository
	archiver  *Archiver
	log       zerolog.Logger

	mu     sync.Mutex
	active map[string]*activeRun
	wg     sync.WaitGroup
}

// NewService creates a run service. archiver may be nil.
func NewService(searchers SearcherFactory, repo *Repository, archiver *Archiver, log zerolog.Logger) *Service {
	return &Service{
		searchers: searchers,
		repo:      repo,
		archiver:  archiver,
		log:       log.With().Str("service", "runs").Logger(),
		active:    make(map[string]*activeRun),
	}
}

// Start validates cfg, records a new run and executes it in the background.
func (s *Service) Start(cfg evolution.Config) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	searcher, err := s.searchers()
	if err != nil {
		return nil, fmt.Errorf("failed to prepare run: %w", err)
	}

	run := &Run{
		ID:        uuid.New().String(),
		State:     evolution.StateRunning,
		Config:    cfg,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.repo.Create(run); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.active[run.ID] = &activeRun{cancel: cancel, subscribers: make(map[chan Event]struct{})}
	s.mu.Unlock()

	metrics.RecordRunStarted()
	s.log.Info().Str("run_id", run.ID).Msg("Run started")

	started := *run
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.execute(ctx, searcher, run)
	}()
	return &started, nil
}

func (s *Service) execute(ctx context.Context, searcher Searcher, run *Run) {
	progress := func(generation int, best evolution.Wallet) {
		if err := s.repo.UpdateProgress(run.ID, generation, best); err != nil {
			s.log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to store run progress")
		}
		w := best
		s.publish(run.ID, Event{
			RunID:       run.ID,
			State:       evolution.StateRunning,
			Generation:  generation,
			BestFitness: w.Fitness,
			BestWallet:  &w,
		})
	}

	report, err := searcher.Run(ctx, run.Config, progress)
	finishedAt := time.Now().UTC().Truncate(time.Second)
	run.FinishedAt = &finishedAt

	summary := metrics.RunSummary{}
	switch {
	case err == nil:
		best := report.BestWallet
		run.State = report.State
		run.Generation = report.Generation
		run.BestWallet = &best
		run.History = report.History
		summary.Duration = report.Duration
		summary.BestFitness = best.Fitness
		for _, stat := range report.History {
			summary.Generations++
			summary.Evaluations += stat.Scored + stat.Degenerate
			summary.Degenerate += stat.Degenerate
		}
	case errors.Is(err, context.Canceled):
		run.State = evolution.StateCancelled
		run.Error = err.Error()
	default:
		run.State = StateFailed
		run.Error = err.Error()
	}
	summary.State = string(run.State)
	metrics.RecordRunFinished(summary)

	if key, err := s.archiver.Archive(context.Background(), run); err != nil {
		s.log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to archive run")
	} else {
		run.ArchiveKey = key
	}

	if err := s.repo.Finish(run); err != nil {
		s.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to store run outcome")
	}

	s.log.Info().
		Str("run_id", run.ID).
		Str("state", string(run.State)).
		Int("generation", run.Generation).
		Str("error", run.Error).
		Msg("Run finished")

	final := Event{
		RunID:       run.ID,
		State:       run.State,
		Generation:  run.Generation,
		BestFitness: run.BestFitness(),
		BestWallet:  run.BestWallet,
		Error:       run.Error,
	}
	s.mu.Lock()
	if a, ok := s.active[run.ID]; ok {
		for ch := range a.subscribers {
			sendFinal(ch, final)
			close(ch)
		}
		delete(s.active, run.ID)
	}
	s.mu.Unlock()
}

func (s *Service) publish(id string, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.active[id]; ok {
		for ch := range a.subscribers {
			trySend(ch, ev)
		}
	}
}

func trySend(ch chan Event, ev Event) {
	select {
	case ch <- ev:
	default:
	}
}

// sendFinal delivers the terminal event, dropping the oldest buffered events of a
// subscriber that fell behind. Only the run's own goroutine sends on ch.
func sendFinal(ch chan Event, ev Event) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Get returns a run by ID
func (s *Service) Get(id string) (*Run, error) {
	return s.repo.Get(id)
}

// List returns the most recent runs
func (s *Service) List(limit int) ([]*Run, error) {
	return s.repo.List(limit)
}

// Cancel stops an active run at its next generation boundary.
func (s *Service) Cancel(id string) error {
	s.mu.Lock()
	a, ok := s.active[id]
	s.mu.Unlock()
	if !ok {
		if _, err := s.repo.Get(id); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrRunNotActive, id)
	}

	a.cancel()
	s.log.Info().Str("run_id", id).Msg("Run cancellation requested")
	return nil
}

// Subscribe returns a channel receiving the progress events of an active run. The channel
// is closed after the terminal event. The returned function unsubscribes early.
func (s *Service) Subscribe(id string) (<-chan Event, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.active[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrRunNotActive, id)
	}

	ch := make(chan Event, subscriberBuffer)
	a.subscribers[ch] = struct{}{}

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if a, ok := s.active[id]; ok {
			if _, ok := a.subscribers[ch]; ok {
				delete(a.subscribers, ch)
				close(ch)
			}
		}
	}
	return ch, unsubscribe, nil
}

// Active returns the number of runs in progress
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Wait blocks until every run has finished
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown cancels all active runs and waits for them until ctx expires.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, a := range s.active {
		a.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
