package scheduler

import (
	"context"
	"time"

	"lexmatch_backend/platform/logger"
)

const (
	defaultAICallLogCleanupInterval = time.Hour
	defaultAICallLogRetention       = 30 * 24 * time.Hour
)

// AICallPruner deletes model call logs older than a cutoff.
type AICallPruner interface {
	DeleteAICallsBefore(ctx context.Context, before time.Time) (int64, error)
}

// AICallLogCleanup periodically removes old model call logs.
type AICallLogCleanup struct {
	repo      AICallPruner
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewAICallLogCleanup(repo AICallPruner, log *logger.Logger, interval, retention time.Duration) *AICallLogCleanup {
	if interval <= 0 {
		interval = defaultAICallLogCleanupInterval
	}
	if retention <= 0 {
		retention = defaultAICallLogRetention
	}

	return &AICallLogCleanup{
		repo:      repo,
		log:       log,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

func (c *AICallLogCleanup) Run(ctx context.Context) {
	if c == nil || c.repo == nil {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *AICallLogCleanup) cleanup(ctx context.Context) {
	before := c.now().Add(-c.retention)

	deleted, err := c.repo.DeleteAICallsBefore(ctx, before)
	if err != nil {
		c.log.Warn("ai call log cleanup failed", "error", err)
		return
	}

	if deleted > 0 {
		c.log.Info("ai call log cleanup deleted old logs", "deleted", deleted)
	}
}
