package di

import (
	"context"
	"testing"

	"github.com/aristath/spaces/internal/config"
	"github.com/aristath/spaces/internal/events"
	"github.com/aristath/spaces/internal/modules/spaces"
	"github.com/aristath/spaces/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir: t.TempDir(),
		Port:    8080,
		Schedules: config.SchedulesConfig{
			AutoTransfer:   "0 0 6 * * *",
			InvariantCheck: "0 */15 * * * *",
			WALCheckpoint:  "0 0 * * * *",
			Backup:         "0 30 3 * * *",
		},
		Backup:    config.BackupConfig{RetentionDays: 14},
		Analytics: config.AnalyticsConfig{Compounding: true, DaysPerYear: 365},
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	// Verify container is fully populated
	assert.NotNil(t, container.SpacesDB)
	assert.NotNil(t, container.EventManager)
	assert.NotNil(t, container.LifecycleService)
	assert.NotNil(t, container.BalanceService)
	assert.NotNil(t, container.FreezeService)
	assert.NotNil(t, container.TransferService)
	assert.NotNil(t, container.AnalyticsService)
	assert.NotNil(t, container.AutoTransferService)
	assert.NotNil(t, container.Scheduler)
	assert.Nil(t, container.BackupService)

	// Backup is only registered when S3 is configured
	assert.Nil(t, jobs.Backup)
	assert.ElementsMatch(t,
		[]string{"auto_transfer", "invariant_check", "check_wal_checkpoints", "daily_maintenance"},
		keys(jobs.ByName()))
}

func TestWire_ServicesShareStoreAndEvents(t *testing.T) {
	cfg := testConfig(t)

	container, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	sub := container.EventBus.Subscribe(16)
	defer sub.Close()

	ctx := context.Background()
	main, err := container.LifecycleService.CreateMainSpace(ctx, "A1")
	require.NoError(t, err)
	_, err = container.BalanceService.ApplyDelta(ctx, spaces.ApplyDeltaRequest{
		SpaceID: main.ID,
		Amount:  decimal.RequireFromString("25"),
		Reason:  "opening deposit",
		Type:    spaces.EntryTypeDeposit,
	})
	require.NoError(t, err)

	report, err := container.BalanceService.VerifyAccountInvariant(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, report.Consistent)

	first := <-sub.C
	assert.Equal(t, events.SpaceCreated, first.Type)
	second := <-sub.C
	assert.Equal(t, events.BalanceChanged, second.Type)
}

func TestWire_InvalidDataDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataDir = "/dev/null/spaces"

	_, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func keys(m map[string]scheduler.Job) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
