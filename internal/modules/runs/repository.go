package runs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/cryptowallet/internal/modules/evolution"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 50

// Repository persists runs in the runs database. Per-generation history is stored as a
// msgpack blob.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new run repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "runs").Logger(),
	}
}

// Create inserts a new run
func (r *Repository) Create(run *Run) error {
	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal run config: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO runs (id, state, config, generation, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, string(run.State), string(cfg), run.Generation, run.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// UpdateProgress stores the latest generation and best wallet of a running search.
func (r *Repository) UpdateProgress(id string, generation int, best evolution.Wallet) error {
	wallet, err := json.Marshal(best)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %w", err)
	}

	_, err = r.db.Exec(`
		UPDATE runs SET generation = ?, best_wallet = ?, best_fitness = ?
		WHERE id = ?
	`, generation, string(wallet), nullFloat(best.Fitness), id)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", id, err)
	}
	return nil
}

// Finish stores the outcome of a run
func (r *Repository) Finish(run *Run) error {
	var wallet sql.NullString
	if run.BestWallet != nil {
		b, err := json.Marshal(run.BestWallet)
		if err != nil {
			return fmt.Errorf("failed to marshal wallet: %w", err)
		}
		wallet = sql.NullString{String: string(b), Valid: true}
	}

	history, err := msgpack.Marshal(run.History)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	var finishedAt sql.NullInt64
	if run.FinishedAt != nil {
		finishedAt = sql.NullInt64{Int64: run.FinishedAt.Unix(), Valid: true}
	}

	res, err := r.db.Exec(`
		UPDATE runs
		SET state = ?, generation = ?, best_wallet = ?, best_fitness = ?, history = ?,
			error = NULLIF(?, ''), archive_key = NULLIF(?, ''), finished_at = ?
		WHERE id = ?
	`, string(run.State), run.Generation, wallet, nullFloat(run.BestFitness()), history,
		run.Error, run.ArchiveKey, finishedAt, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// SetArchiveKey records where the run report was archived
func (r *Repository) SetArchiveKey(id, key string) error {
	if _, err := r.db.Exec(`UPDATE runs SET archive_key = ? WHERE id = ?`, key, id); err != nil {
		return fmt.Errorf("failed to set archive key of run %s: %w", id, err)
	}
	return nil
}

const runColumns = `id, state, config, generation, best_wallet, history, error, archive_key, created_at, finished_at`

// Get returns one run
func (r *Repository) Get(id string) (*Run, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns the most recent runs, newest first
func (r *Repository) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// MarkInterrupted fails every run left RUNNING by a previous process.
func (r *Repository) MarkInterrupted() (int64, error) {
	res, err := r.db.Exec(`
		UPDATE runs SET state = ?, error = 'interrupted by shutdown', finished_at = ?
		WHERE state = ?
	`, string(StateFailed), time.Now().Unix(), string(evolution.StateRunning))
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run        Run
		state      string
		cfg        string
		wallet     sql.NullString
		history    []byte
		errMsg     sql.NullString
		archiveKey sql.NullString
		createdAt  int64
		finishedAt sql.NullInt64
	)
	if err := s.Scan(&run.ID, &state, &cfg, &run.Generation, &wallet, &history,
		&errMsg, &archiveKey, &createdAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.State = evolution.State(state)
	run.Error = errMsg.String
	run.ArchiveKey = archiveKey.String
	run.CreatedAt = time.Unix(createdAt, 0).UTC()
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0).UTC()
		run.FinishedAt = &t
	}

	if err := json.Unmarshal([]byte(cfg), &run.Config); err != nil {
		return nil, fmt.Errorf("failed to decode config of run %s: %w", run.ID, err)
	}
	if wallet.Valid {
		var w evolution.Wallet
		if err := json.Unmarshal([]byte(wallet.String), &w); err != nil {
			return nil, fmt.Errorf("failed to decode wallet of run %s: %w", run.ID, err)
		}
		run.BestWallet = &w
	}
	if len(history) > 0 {
		if err := msgpack.Unmarshal(history, &run.History); err != nil {
			return nil, fmt.Errorf("failed to decode history of run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
