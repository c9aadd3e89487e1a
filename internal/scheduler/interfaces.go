package scheduler

import (
	"context"
	"time"

	"github.com/aristath/spaces/internal/modules/spaces"
)

// AutoTransferRunnerInterface defines the contract for executing due automatic transfers
// Used by scheduler to enable testing with mocks
type AutoTransferRunnerInterface interface {
	RunDue(ctx context.Context, now time.Time) (*spaces.AutoTransferRun, error)
}

// InvariantCheckerInterface defines the contract for account invariant checks
// Used by scheduler to enable testing with mocks
type InvariantCheckerInterface interface {
	CheckAllAccounts(ctx context.Context) ([]*spaces.InvariantReport, error)
}

// BackupServiceInterface defines the contract for off-site backups
// Used by scheduler to enable testing with mocks
type BackupServiceInterface interface {
	CreateAndUploadBackup(ctx context.Context) (string, error)
	RotateOldBackups(ctx context.Context) (int, error)
}
