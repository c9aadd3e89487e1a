package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const defaultJobTimeout = 10 * time.Minute

// AutoTransferJob executes automatic transfers that are due
type AutoTransferJob struct {
	runner  AutoTransferRunnerInterface
	timeout time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// NewAutoTransferJob creates a new AutoTransferJob
func NewAutoTransferJob(runner AutoTransferRunnerInterface, log zerolog.Logger) *AutoTransferJob {
	return &AutoTransferJob{
		runner:  runner,
		timeout: defaultJobTimeout,
		now:     time.Now,
		log:     log.With().Str("job", "auto_transfer").Logger(),
	}
}

// Name returns the job name
func (j *AutoTransferJob) Name() string {
	return "auto_transfer"
}

// Run executes the auto transfer job
func (j *AutoTransferJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	run, err := j.runner.RunDue(ctx, j.now().UTC())
	if run != nil {
		j.log.Info().
			Int("due", run.Due).
			Int("completed", run.Completed).
			Int("failed", run.Failed).
			Msg("Automatic transfers processed")
	}
	if err != nil {
		return fmt.Errorf("automatic transfers failed: %w", err)
	}
	return nil
}

// InvariantCheckJob verifies the balance invariant of every account
type InvariantCheckJob struct {
	checker InvariantCheckerInterface
	timeout time.Duration
	log     zerolog.Logger
}

// NewInvariantCheckJob creates a new InvariantCheckJob
func NewInvariantCheckJob(checker InvariantCheckerInterface, log zerolog.Logger) *InvariantCheckJob {
	return &InvariantCheckJob{
		checker: checker,
		timeout: defaultJobTimeout,
		log:     log.With().Str("job", "invariant_check").Logger(),
	}
}

// Name returns the job name
func (j *InvariantCheckJob) Name() string {
	return "invariant_check"
}

// Run executes the invariant check job
func (j *InvariantCheckJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	violations, err := j.checker.CheckAllAccounts(ctx)
	for _, report := range violations {
		j.log.Error().
			Str("account_id", report.AccountID).
			Str("spaces_total", report.SpacesTotal.String()).
			Str("account_total", report.AccountTotal.String()).
			Str("difference", report.Difference.String()).
			Msg("Account invariant violated")
	}
	if err != nil {
		return err
	}

	j.log.Debug().Msg("All accounts consistent")
	return nil
}

// BackupJob uploads a database snapshot and prunes expired ones
type BackupJob struct {
	backups BackupServiceInterface
	timeout time.Duration
	log     zerolog.Logger
}

// NewBackupJob creates a new BackupJob
func NewBackupJob(backups BackupServiceInterface, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backups: backups,
		timeout: 30 * time.Minute,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup job. Rotation only runs after a successful upload.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	key, err := j.backups.CreateAndUploadBackup(ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	deleted, err := j.backups.RotateOldBackups(ctx)
	if err != nil {
		return fmt.Errorf("backup rotation failed: %w", err)
	}

	j.log.Info().
		Str("key", key).
		Int("rotated", deleted).
		Msg("Backup job completed")

	return nil
}
