package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SPACES_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "0 0 6 * * *", cfg.Schedules.AutoTransfer)
	assert.Equal(t, "0 */15 * * * *", cfg.Schedules.InvariantCheck)
	assert.False(t, cfg.Backup.Enabled())
	assert.Equal(t, 14, cfg.Backup.RetentionDays)
	assert.True(t, cfg.Analytics.Compounding)
	assert.Equal(t, 365.0, cfg.Analytics.DaysPerYear)
	assert.Equal(t, filepath.Join(dir, "spaces.db"), cfg.DatabasePath())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SPACES_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("ANALYTICS_COMPOUNDING", "false")
	t.Setenv("ANALYTICS_DAYS_PER_YEAR", "360")
	t.Setenv("S3_BUCKET", "backups")
	t.Setenv("S3_ACCESS_KEY_ID", "key")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.False(t, cfg.Analytics.Compounding)
	assert.Equal(t, 360.0, cfg.Analytics.DaysPerYear)
	assert.True(t, cfg.Backup.Enabled())
	assert.Equal(t, "auto", cfg.Backup.Region)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port: 8080,
			Schedules: SchedulesConfig{
				AutoTransfer:   "0 0 6 * * *",
				InvariantCheck: "@every 15m",
				WALCheckpoint:  "0 0 * * * *",
				Backup:         "0 30 3 * * *",
			},
			Backup:    BackupConfig{RetentionDays: 14},
			Analytics: AnalyticsConfig{Compounding: true, DaysPerYear: 365},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Port = 70000 }, "invalid port"},
		{"bad cron", func(c *Config) { c.Schedules.Backup = "every night" }, "BACKUP_SCHEDULE"},
		{"days per year", func(c *Config) { c.Analytics.DaysPerYear = 0 }, "ANALYTICS_DAYS_PER_YEAR"},
		{"bucket without credentials", func(c *Config) { c.Backup.Bucket = "b" }, "credentials"},
		{"credentials without bucket", func(c *Config) { c.Backup.AccessKeyID = "k" }, "without S3_BUCKET"},
		{"retention", func(c *Config) {
			c.Backup = BackupConfig{Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"}
		}, "BACKUP_RETENTION_DAYS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
