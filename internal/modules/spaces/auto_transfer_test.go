package spaces

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDue(t *testing.T) {
	last := day(0)
	tests := []struct {
		name string
		cfg  *AutoTransferConfig
		now  time.Time
		want bool
	}{
		{"nil config", nil, day(0), false},
		{"disabled", &AutoTransferConfig{Enabled: false, Frequency: FrequencyDaily}, day(5), false},
		{"never ran", &AutoTransferConfig{Enabled: true, Frequency: FrequencyAnnually}, day(0), true},
		{"daily due", &AutoTransferConfig{Enabled: true, Frequency: FrequencyDaily, LastRunAt: &last}, day(1), true},
		{"daily early", &AutoTransferConfig{Enabled: true, Frequency: FrequencyDaily, LastRunAt: &last}, day(1).Add(-time.Second), false},
		{"weekly", &AutoTransferConfig{Enabled: true, Frequency: FrequencyWeekly, LastRunAt: &last}, day(7), true},
		{"monthly early", &AutoTransferConfig{Enabled: true, Frequency: FrequencyMonthly, LastRunAt: &last}, day(30), false},
		{"monthly", &AutoTransferConfig{Enabled: true, Frequency: FrequencyMonthly, LastRunAt: &last}, day(31), true},
		{"quarterly", &AutoTransferConfig{Enabled: true, Frequency: FrequencyQuarterly, LastRunAt: &last}, day0.AddDate(0, 3, 0), true},
		{"annually early", &AutoTransferConfig{Enabled: true, Frequency: FrequencyAnnually, LastRunAt: &last}, day(364), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDue(tt.cfg, tt.now))
		})
	}
}

func TestRunDue_FromMainSpace(t *testing.T) {
	env := newTestEnv(t)
	main := env.mainSpace(t, "A1")
	env.deposit(t, main.ID, "1000", day(1))

	savings, err := env.lifecycle.CreateSpace(env.ctx, CreateSpaceRequest{
		AccountID: "A1", Name: "Savings", Type: SpaceTypeSavings,
		AutoTransfer: &AutoTransferConfig{Enabled: true, Frequency: FrequencyMonthly, Amount: dec("100")},
	})
	require.NoError(t, err)

	run, err := env.autos.RunDue(env.ctx, day(2))
	require.NoError(t, err)
	assert.Equal(t, &AutoTransferRun{Due: 1, Completed: 1}, run)

	stored := env.reload(t, savings.ID)
	assert.True(t, dec("100").Equal(stored.Balance))
	require.NotNil(t, stored.AutoTransfer.LastRunAt)
	assert.Equal(t, day(2), *stored.AutoTransfer.LastRunAt)
	assert.True(t, dec("900").Equal(env.reload(t, main.ID).Balance))

	// not due again until a month later
	run, err = env.autos.RunDue(env.ctx, day(20))
	require.NoError(t, err)
	assert.Equal(t, 0, run.Due)

	run, err = env.autos.RunDue(env.ctx, day(2).AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, run.Completed)
	assert.True(t, dec("200").Equal(env.reload(t, savings.ID).Balance))
}

func TestRunDue_ExplicitSourceAndFailures(t *testing.T) {
	env := newTestEnv(t)
	main := env.mainSpace(t, "A1")
	buffer := env.space(t, "A1", "Buffer", SpaceTypeCustom)
	env.deposit(t, buffer.ID, "30", day(1))
	env.deposit(t, main.ID, "5", day(1))

	funded, err := env.lifecycle.CreateSpace(env.ctx, CreateSpaceRequest{
		AccountID: "A1", Name: "Emergency", Type: SpaceTypeEmergency,
		AutoTransfer: &AutoTransferConfig{Enabled: true, Frequency: FrequencyWeekly, Amount: dec("25"), SourceSpaceID: &buffer.ID},
	})
	require.NoError(t, err)
	starved, err := env.lifecycle.CreateSpace(env.ctx, CreateSpaceRequest{
		AccountID: "A1", Name: "Vacation", Type: SpaceTypeVacation,
		AutoTransfer: &AutoTransferConfig{Enabled: true, Frequency: FrequencyWeekly, Amount: dec("50")},
	})
	require.NoError(t, err)

	run, err := env.autos.RunDue(env.ctx, day(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, &AutoTransferRun{Due: 2, Completed: 1, Failed: 1}, run)

	assert.True(t, dec("25").Equal(env.reload(t, funded.ID).Balance))
	assert.True(t, dec("5").Equal(env.reload(t, buffer.ID).Balance))
	assert.Nil(t, env.reload(t, starved.ID).AutoTransfer.LastRunAt, "failed runs are retried next pass")

	report, err := env.balances.VerifyAccountInvariant(env.ctx, "A1")
	require.NoError(t, err)
	assert.True(t, report.Consistent)
}
