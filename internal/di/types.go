/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server and CLI for access to services.
 */
package di

import (
	"github.com/aristath/spaces/internal/database"
	"github.com/aristath/spaces/internal/events"
	"github.com/aristath/spaces/internal/modules/spaces"
	"github.com/aristath/spaces/internal/reliability"
	"github.com/aristath/spaces/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Database
	SpacesDB *database.DB

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Storage
	Store  *spaces.SQLStore
	Locker *spaces.KeyedLocker

	// Services
	LifecycleService    *spaces.LifecycleService
	BalanceService      *spaces.BalanceService
	FreezeService       *spaces.FreezeService
	TransferService     *spaces.TransferService
	AnalyticsService    *spaces.AnalyticsService
	AutoTransferService *spaces.AutoTransferService

	// Reliability
	BackupService *reliability.BackupService // nil when off-site backups are not configured

	Scheduler *scheduler.Scheduler
}

// JobInstances holds registered jobs for manual triggering via API
type JobInstances struct {
	AutoTransfer     scheduler.Job
	InvariantCheck   scheduler.Job
	WALCheckpoint    scheduler.Job
	DailyMaintenance scheduler.Job
	Backup           scheduler.Job // nil when off-site backups are not configured
}

// ByName returns the registered jobs keyed by job name
func (j *JobInstances) ByName() map[string]scheduler.Job {
	jobs := make(map[string]scheduler.Job)
	for _, job := range []scheduler.Job{j.AutoTransfer, j.InvariantCheck, j.WALCheckpoint, j.DailyMaintenance, j.Backup} {
		if job != nil {
			jobs[job.Name()] = job
		}
	}
	return jobs
}

// Close releases resources held by the container
func (c *Container) Close() error {
	if c.SpacesDB != nil {
		return c.SpacesDB.Close()
	}
	return nil
}
