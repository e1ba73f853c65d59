package tasks

import (
	"context"
	"fmt"
	"time"
)

// newRetentionTask creates the scheduled task that removes uploads past
// their expiry, cascading to messages and reports.
func newRetentionTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "retention")

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled retention task...")
		startTime := time.Now()

		removed, err := deps.Store.DeleteExpiredUploads(ctx, time.Now().UTC())

		duration := time.Since(startTime)
		if err != nil {
			log.ErrorContext(ctx, "Retention task failed", "error", err, "duration", duration)
			return fmt.Errorf("retention failed: %w", err)
		}

		log.InfoContext(ctx, "Scheduled retention task completed", "uploads_removed", removed, "duration", duration)
		return nil
	}
}
