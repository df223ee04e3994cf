package cronjobs

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

const (
	// DefaultSweepSchedule runs every 10 minutes.
	DefaultSweepSchedule = "*/10 * * * *"
	// memoryGCSchedule runs at the 5 minute mark of every hour.
	memoryGCSchedule = "5 * * * *"
)

// CacheSweeper drops feed cache entries that can no longer be served.
type CacheSweeper interface {
	Sweep() int
}

type GarbageCollector interface {
	CollectGarbage() error
}

// InitCronJobs schedules the maintenance jobs and starts the scheduler. The
// caller stops it on shutdown. A nil memory skips its garbage collection job.
func InitCronJobs(schedule string, cache CacheSweeper, mem GarbageCollector, logger *slog.Logger) (*cron.Cron, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	logger.Info("starting cron jobs", slog.String("sweep_schedule", schedule))
	c := cron.New()

	_, err := c.AddFunc(schedule, func() { sweepFeedCache(cache, logger) })
	if err != nil {
		return nil, fmt.Errorf("schedule feed cache sweep: %w", err)
	}

	if mem != nil {
		_, err = c.AddFunc(memoryGCSchedule, func() { collectMemoryGarbage(mem, logger) })
		if err != nil {
			return nil, fmt.Errorf("schedule memory gc: %w", err)
		}
	}

	c.Start()
	return c, nil
}

func sweepFeedCache(cache CacheSweeper, logger *slog.Logger) {
	removed := cache.Sweep()
	logger.Info("cronjob: feed cache swept", slog.Int("removed", removed))
}

func collectMemoryGarbage(mem GarbageCollector, logger *slog.Logger) {
	if err := mem.CollectGarbage(); err != nil {
		logger.Error("cronjob: memory gc failed", slog.String("error", err.Error()))
		return
	}
	logger.Debug("cronjob: memory gc done")
}
