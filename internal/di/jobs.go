// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/aristath/spaces/internal/config"
	"github.com/aristath/spaces/internal/reliability"
	"github.com/aristath/spaces/internal/scheduler"
	"github.com/rs/zerolog"
)

// dailyMaintenanceSchedule runs integrity and disk checks at 02:00
const dailyMaintenanceSchedule = "0 0 2 * * *"

// RegisterJobs creates the scheduler and registers every background job.
// The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(log)
	container.Scheduler = sched

	instances := &JobInstances{
		AutoTransfer:     scheduler.NewAutoTransferJob(container.AutoTransferService, log),
		InvariantCheck:   scheduler.NewInvariantCheckJob(container.BalanceService, log),
		WALCheckpoint:    scheduler.NewCheckWALCheckpointsJob(container.SpacesDB, log),
		DailyMaintenance: reliability.NewDailyMaintenanceJob(container.SpacesDB, cfg.DataDir, log),
	}

	schedules := []struct {
		spec string
		job  scheduler.Job
	}{
		{cfg.Schedules.AutoTransfer, instances.AutoTransfer},
		{cfg.Schedules.InvariantCheck, instances.InvariantCheck},
		{cfg.Schedules.WALCheckpoint, instances.WALCheckpoint},
		{dailyMaintenanceSchedule, instances.DailyMaintenance},
	}

	if container.BackupService != nil {
		instances.Backup = scheduler.NewBackupJob(container.BackupService, log)
		schedules = append(schedules, struct {
			spec string
			job  scheduler.Job
		}{cfg.Schedules.Backup, instances.Backup})
	}

	for _, s := range schedules {
		if err := sched.AddJob(s.spec, s.job); err != nil {
			return nil, fmt.Errorf("failed to register %s job: %w", s.job.Name(), err)
		}
	}

	return instances, nil
}
