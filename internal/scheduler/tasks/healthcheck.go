package tasks

import (
	"context"

	"github.com/vodsync/vodsync/internal/scheduler"
)

const HealthCheckTaskID = "health-check"

// HealthChecker tests provider credentials, storage and tools.
type HealthChecker interface {
	CheckAll(ctx context.Context) error
}

// RegisterHealthCheckTask registers the periodic health check. It also runs
// once at startup so the health endpoint is populated early.
func RegisterHealthCheckTask(sched *scheduler.Scheduler, checker HealthChecker, cron string) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          HealthCheckTaskID,
		Name:        "Health Check",
		Description: "Verifies provider credentials, data directories and ffprobe",
		Cron:        cron,
		Func:        checker.CheckAll,
		RunOnStart:  true,
	})
}
