// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the database and local backups (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	Schedules SchedulesConfig
	Backup    BackupConfig
	Analytics AnalyticsConfig
}

// SchedulesConfig holds cron specs (with seconds field) for background jobs
type SchedulesConfig struct {
	AutoTransfer   string
	InvariantCheck string
	WALCheckpoint  string
	Backup         string
}

// BackupConfig holds S3-compatible off-site backup settings.
// Backups are disabled when Bucket is empty.
type BackupConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int
}

// Enabled reports whether off-site backups are configured
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// AnalyticsConfig holds growth annualization settings
type AnalyticsConfig struct {
	Compounding bool
	DaysPerYear float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("SPACES_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Schedules: SchedulesConfig{
			AutoTransfer:   getEnv("AUTO_TRANSFER_SCHEDULE", "0 0 6 * * *"),
			InvariantCheck: getEnv("INVARIANT_CHECK_SCHEDULE", "0 */15 * * * *"),
			WALCheckpoint:  getEnv("WAL_CHECKPOINT_SCHEDULE", "0 0 * * * *"),
			Backup:         getEnv("BACKUP_SCHEDULE", "0 30 3 * * *"),
		},
		Backup: BackupConfig{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "auto"),
			Bucket:          getEnv("S3_BUCKET", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 14),
		},
		Analytics: AnalyticsConfig{
			Compounding: getEnvAsBool("ANALYTICS_COMPOUNDING", true),
			DaysPerYear: getEnvAsFloat("ANALYTICS_DAYS_PER_YEAR", 365),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DatabasePath returns the path of the spaces database inside DataDir
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "spaces.db")
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	specs := map[string]string{
		"AUTO_TRANSFER_SCHEDULE":   c.Schedules.AutoTransfer,
		"INVARIANT_CHECK_SCHEDULE": c.Schedules.InvariantCheck,
		"WAL_CHECKPOINT_SCHEDULE":  c.Schedules.WALCheckpoint,
		"BACKUP_SCHEDULE":          c.Schedules.Backup,
	}
	for name, spec := range specs {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, spec, err)
		}
	}

	if c.Analytics.DaysPerYear <= 0 {
		return fmt.Errorf("ANALYTICS_DAYS_PER_YEAR must be positive, got %v", c.Analytics.DaysPerYear)
	}

	b := c.Backup
	if b.Enabled() {
		if b.AccessKeyID == "" || b.SecretAccessKey == "" {
			return fmt.Errorf("S3_BUCKET is set but S3 credentials are missing")
		}
		if b.RetentionDays < 1 {
			return fmt.Errorf("BACKUP_RETENTION_DAYS must be at least 1, got %d", b.RetentionDays)
		}
	} else if b.AccessKeyID != "" || b.SecretAccessKey != "" || b.Endpoint != "" {
		return fmt.Errorf("S3 settings provided without S3_BUCKET")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
