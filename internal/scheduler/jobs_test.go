package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/spaces/internal/modules/spaces"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockAutoTransferRunner struct {
	mock.Mock
}

func (m *MockAutoTransferRunner) RunDue(ctx context.Context, now time.Time) (*spaces.AutoTransferRun, error) {
	args := m.Called(ctx, now)
	run, _ := args.Get(0).(*spaces.AutoTransferRun)
	return run, args.Error(1)
}

type MockInvariantChecker struct {
	mock.Mock
}

func (m *MockInvariantChecker) CheckAllAccounts(ctx context.Context) ([]*spaces.InvariantReport, error) {
	args := m.Called(ctx)
	reports, _ := args.Get(0).([]*spaces.InvariantReport)
	return reports, args.Error(1)
}

type MockBackupService struct {
	mock.Mock
}

func (m *MockBackupService) CreateAndUploadBackup(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockBackupService) RotateOldBackups(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestAutoTransferJob_Run(t *testing.T) {
	now := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	runner := new(MockAutoTransferRunner)
	runner.On("RunDue", mock.Anything, now).Return(&spaces.AutoTransferRun{Due: 2, Completed: 2}, nil).Once()

	job := NewAutoTransferJob(runner, zerolog.Nop())
	job.now = func() time.Time { return now }

	assert.Equal(t, "auto_transfer", job.Name())
	assert.NoError(t, job.Run())
	runner.AssertExpectations(t)
}

func TestAutoTransferJob_RunPropagatesFailures(t *testing.T) {
	runner := new(MockAutoTransferRunner)
	cause := &spaces.ValidationError{Message: "negative balance"}
	runner.On("RunDue", mock.Anything, mock.Anything).Return(&spaces.AutoTransferRun{Due: 1, Failed: 1}, cause)

	job := NewAutoTransferJob(runner, zerolog.Nop())
	err := job.Run()

	assert.ErrorIs(t, err, spaces.ErrValidation)
	runner.AssertExpectations(t)
}

func TestInvariantCheckJob_Run(t *testing.T) {
	checker := new(MockInvariantChecker)
	checker.On("CheckAllAccounts", mock.Anything).Return(nil, nil).Once()

	job := NewInvariantCheckJob(checker, zerolog.Nop())
	assert.Equal(t, "invariant_check", job.Name())
	assert.NoError(t, job.Run())

	violation := &spaces.InvariantReport{
		AccountID:    "A1",
		SpacesTotal:  decimal.RequireFromString("100"),
		AccountTotal: decimal.RequireFromString("90"),
		Difference:   decimal.RequireFromString("10"),
	}
	checker.On("CheckAllAccounts", mock.Anything).
		Return([]*spaces.InvariantReport{violation}, &spaces.ConflictError{Message: "A1", Err: spaces.ErrInvariantViolated}).Once()

	err := job.Run()
	assert.ErrorIs(t, err, spaces.ErrInvariantViolated)
	checker.AssertExpectations(t)
}

func TestBackupJob_Run(t *testing.T) {
	backups := new(MockBackupService)
	backups.On("CreateAndUploadBackup", mock.Anything).Return("spaces-backup-2024-05-01-033000.db.gz", nil).Once()
	backups.On("RotateOldBackups", mock.Anything).Return(2, nil).Once()

	job := NewBackupJob(backups, zerolog.Nop())
	assert.Equal(t, "backup", job.Name())
	assert.NoError(t, job.Run())
	backups.AssertExpectations(t)
}

func TestBackupJob_SkipsRotationWhenUploadFails(t *testing.T) {
	backups := new(MockBackupService)
	backups.On("CreateAndUploadBackup", mock.Anything).Return("", errors.New("bucket unreachable")).Once()

	job := NewBackupJob(backups, zerolog.Nop())
	err := job.Run()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unreachable")
	backups.AssertNotCalled(t, "RotateOldBackups", mock.Anything)
}
