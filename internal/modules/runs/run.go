// Package runs executes optimizer searches in the background, persists their outcome,
// and streams their progress.
package runs

import (
	"errors"
	"time"

	"github.com/aristath/cryptowallet/internal/modules/evolution"
)

// StateFailed marks a run whose search returned an error.
const StateFailed evolution.State = "FAILED"

var (
	// ErrRunNotFound is returned for unknown run IDs.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunNotActive is returned when a finished run is cancelled or subscribed to.
	ErrRunNotActive = errors.New("run is not active")
)

// Run is the persisted record of one search.
type Run struct {
	ID         string                     `json:"id"`
	State      evolution.State            `json:"state"`
	Config     evolution.Config           `json:"config"`
	Generation int                        `json:"generation"`
	BestWallet *evolution.Wallet          `json:"best_wallet,omitempty"`
	History    []evolution.GenerationStat `json:"history,omitempty"`
	Error      string                     `json:"error,omitempty"`
	ArchiveKey string                     `json:"archive_key,omitempty"`
	CreatedAt  time.Time                  `json:"created_at"`
	FinishedAt *time.Time                 `json:"finished_at,omitempty"`
}

// BestFitness returns the fitness of the best wallet, if any.
func (r *Run) BestFitness() *float64 {
	if r.BestWallet == nil || r.BestWallet.Fitness == nil {
		return nil
	}
	f := *r.BestWallet.Fitness
	return &f
}

// Event is one progress notification of a run. The last event of a run carries a
// terminal state.
type Event struct {
	RunID       string            `json:"run_id"`
	State       evolution.State   `json:"state"`
	Generation  int               `json:"generation"`
	BestFitness *float64          `json:"best_fitness,omitempty"`
	BestWallet  *evolution.Wallet `json:"best_wallet,omitempty"`
	Error       string            `json:"error,omitempty"`
}
