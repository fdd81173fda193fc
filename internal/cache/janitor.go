package cache

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Janitor periodically purges expired entries.
type Janitor struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// StartJanitor schedules c.PurgeExpired with a cron spec such as "@every 5m".
func StartJanitor(logger *zap.Logger, c *Cache, schedule string) (*Janitor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &Janitor{cron: cron.New(), logger: logger}
	_, err := j.cron.AddFunc(schedule, func() {
		if n := c.PurgeExpired(); n > 0 {
			logger.Debug("purged expired cache entries",
				zap.String("op", "cache.Janitor"),
				zap.Int("purged", n),
			)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule cache janitor %q: %w", schedule, err)
	}
	j.cron.Start()
	logger.Info("cache janitor started", zap.String("op", "cache.Janitor"), zap.String("schedule", schedule))
	return j, nil
}

// Stop halts the schedule and waits for a running purge to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("cache janitor stopped", zap.String("op", "cache.Janitor"))
}
