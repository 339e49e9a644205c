package scheduler

import (
	"github.com/aristath/cryptowallet/internal/database"
	"github.com/rs/zerolog"
)

// walFrameWarning is the WAL size, in frames, above which a truncating checkpoint is forced.
const walFrameWarning = 1000

// WALCheckpointJob checkpoints the WAL of every database and truncates it once it grows
// past walFrameWarning frames.
type WALCheckpointJob struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewWALCheckpointJob creates a checkpoint job over databases. Nil entries are skipped.
func NewWALCheckpointJob(log zerolog.Logger, databases ...*database.DB) *WALCheckpointJob {
	return &WALCheckpointJob{
		databases: databases,
		log:       log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run executes the checkpoint pass. Failures on one database do not stop the others.
func (j *WALCheckpointJob) Run() error {
	checked := 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}

		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, frames, checkpointed int
		err := db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
		if err != nil {
			j.log.Warn().
				Err(err).
				Str("database", db.Name()).
				Msg("Failed to check WAL checkpoint")
			continue
		}

		if frames > walFrameWarning {
			j.log.Warn().
				Str("database", db.Name()).
				Int("wal_frames", frames).
				Int("checkpointed", checkpointed).
				Msg("WAL file is large, truncating")
			if err := db.WALCheckpoint("TRUNCATE"); err != nil {
				j.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL truncate failed")
			}
		} else {
			j.log.Debug().
				Str("database", db.Name()).
				Int("wal_frames", frames).
				Msg("WAL checkpoint status OK")
		}
		checked++
	}

	j.log.Info().
		Int("checked", checked).
		Msg("WAL checkpoint check completed")
	return nil
}
