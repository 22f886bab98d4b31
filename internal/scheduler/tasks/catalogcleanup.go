package tasks

import (
	"context"

	"github.com/vodsync/vodsync/internal/scheduler"
	"github.com/vodsync/vodsync/internal/vod"
)

const CatalogCleanupTaskID = "catalog-cleanup"

// OrphanCleaner removes catalog rows no relation references.
type OrphanCleaner interface {
	CleanupOrphans(ctx context.Context) (*vod.OrphanResult, error)
}

// RegisterCatalogCleanupTask registers the orphan cleanup task with the scheduler.
func RegisterCatalogCleanupTask(sched *scheduler.Scheduler, cleaner OrphanCleaner, cron string) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          CatalogCleanupTaskID,
		Name:        "Catalog Cleanup",
		Description: "Deletes movies, series and episodes no provider lists anymore",
		Cron:        cron,
		Func: func(ctx context.Context) error {
			_, err := cleaner.CleanupOrphans(ctx)
			return err
		},
	})
}
