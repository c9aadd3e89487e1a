// Package di provides dependency injection for services.
package di

import (
	"context"
	"fmt"

	"github.com/aristath/spaces/internal/config"
	"github.com/aristath/spaces/internal/events"
	"github.com/aristath/spaces/internal/modules/spaces"
	"github.com/aristath/spaces/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates the event bus, the store and every domain service
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.SpacesDB == nil {
		return fmt.Errorf("container must have an open database")
	}

	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	container.Store = spaces.NewSQLStore(container.SpacesDB.Conn(), log)
	container.Locker = spaces.NewKeyedLocker()

	// The account total is derived from the ledger, independent of cached balances
	totals := spaces.NewLedgerAccountTotals(container.Store)

	container.LifecycleService = spaces.NewLifecycleService(container.Store, container.Locker, container.EventManager, log)
	container.BalanceService = spaces.NewBalanceService(container.Store, totals, container.Locker, container.EventManager, log)
	container.FreezeService = spaces.NewFreezeService(container.Store, container.Locker, container.EventManager, log)
	container.TransferService = spaces.NewTransferService(container.Store, container.BalanceService, container.EventManager, log)
	container.AnalyticsService = spaces.NewAnalyticsService(container.Store, spaces.AnalyticsConfig{
		Compounding: cfg.Analytics.Compounding,
		DaysPerYear: cfg.Analytics.DaysPerYear,
	}, log)
	container.AutoTransferService = spaces.NewAutoTransferService(container.Store, container.TransferService, container.Locker, log)

	if cfg.Backup.Enabled() {
		client, err := reliability.NewS3Client(ctx, reliability.S3ClientConfig{
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			Bucket:          cfg.Backup.Bucket,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup client: %w", err)
		}
		container.BackupService = reliability.NewBackupService(container.SpacesDB, client, cfg.DataDir, cfg.Backup.RetentionDays, log)
	} else {
		log.Info().Msg("Off-site backups disabled (S3_BUCKET not set)")
	}

	return nil
}
