package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner drops journaled resolved alerts older than retention.
type Pruner interface {
	PruneResolved(ctx context.Context, retention time.Duration) (int, error)
}

// StartMaintenance schedules journal pruning on a cron expression such as
// "@hourly" or "0 */15 * * * *" (seconds field optional). Call Stop on the
// returned cron to halt it.
func StartMaintenance(ctx context.Context, schedule string, retention time.Duration, p Pruner, logger *slog.Logger) (*cron.Cron, error) {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))

	_, err := c.AddFunc(schedule, func() {
		n, err := p.PruneResolved(ctx, retention)
		if err != nil {
			logger.Error("alert journal prune failed", "error", err)
			return
		}
		if n > 0 {
			logger.Info("pruned resolved alerts", "count", n, "retention", retention)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule prune %q: %w", schedule, err)
	}

	c.Start()
	logger.Info("alert journal pruning scheduled", "schedule", schedule, "retention", retention)
	return c, nil
}
