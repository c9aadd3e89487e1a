package scheduler

import (
	"github.com/aristath/spaces/internal/database"
	"github.com/rs/zerolog"
)

// walFramesWarnThreshold is the WAL size (in frames) that triggers a forced checkpoint
const walFramesWarnThreshold = 1000

// CheckWALCheckpointsJob monitors WAL growth and checkpoints when it gets large
type CheckWALCheckpointsJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewCheckWALCheckpointsJob creates a new CheckWALCheckpointsJob
func NewCheckWALCheckpointsJob(db *database.DB, log zerolog.Logger) *CheckWALCheckpointsJob {
	return &CheckWALCheckpointsJob{
		db:  db,
		log: log.With().Str("job", "check_wal_checkpoints").Logger(),
	}
}

// Name returns the job name
func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run executes the check WAL checkpoints job
func (j *CheckWALCheckpointsJob) Run() error {
	if j.db == nil {
		return nil
	}

	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, frames, checkpointed int
	err := j.db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to check WAL checkpoint")
		return err
	}

	if frames > walFramesWarnThreshold {
		j.log.Warn().
			Int("wal_frames", frames).
			Int("checkpointed", checkpointed).
			Msg("WAL file is large, forcing truncate checkpoint")
		return j.db.WALCheckpoint("TRUNCATE")
	}

	j.log.Debug().
		Int("wal_frames", frames).
		Int("busy", busy).
		Msg("WAL checkpoint status OK")
	return nil
}
