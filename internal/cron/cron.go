package cron

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const cleanupInterval = 24 * time.Hour

// AuditCleaner deletes audit rows older than the retention window.
type AuditCleaner interface {
	CleanupOldLogs(ctx context.Context, days int) (int64, error)
}

// StartCleanupTask runs the audit retention cleanup on startup and then once
// a day until ctx is cancelled. The returned channel closes when it stops.
func StartCleanupTask(ctx context.Context, cleaner AuditCleaner, retentionDays int, log *zap.SugaredLogger) <-chan struct{} {
	return startCleanup(ctx, cleaner, retentionDays, cleanupInterval, log)
}

func startCleanup(ctx context.Context, cleaner AuditCleaner, retentionDays int, every time.Duration, log *zap.SugaredLogger) <-chan struct{} {
	done := make(chan struct{})
	if retentionDays <= 0 {
		log.Infow("audit retention disabled")
		close(done)
		return done
	}

	go func() {
		defer close(done)
		log.Infow("starting audit cleanup task", "retentionDays", retentionDays)

		run := func() {
			n, err := cleaner.CleanupOldLogs(ctx, retentionDays)
			if err != nil {
				log.Warnw("audit cleanup failed", "error", err)
				return
			}
			log.Infow("audit cleanup completed", "deleted", n)
		}
		run()

		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				run()
			case <-ctx.Done():
				return
			}
		}
	}()
	return done
}
