package tasks

import (
	"context"
	"fmt"
	"time"
)

const healthTimeout = 5 * time.Second

// newStoreHealthTask pings the database so a lost connection shows up in
// the logs before the next message fails on it.
func newStoreHealthTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", StoreHealth)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, healthTimeout)
		defer cancel()

		start := time.Now()
		if err := deps.Store.Ping(ctx); err != nil {
			log.ErrorContext(ctx, "Database ping failed", "error", err)
			return fmt.Errorf("store health check failed: %w", err)
		}
		log.DebugContext(ctx, "Database ping ok", "latency", time.Since(start))
		return nil
	}
}
