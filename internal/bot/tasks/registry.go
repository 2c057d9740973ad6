package tasks

import (
	"context"
)

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// Task names as used in the scheduler config section.
const (
	SQLMaintenance = "sql_maintenance"
	StoreHealth    = "store_health"
)

// RegisterAllTasks initializes and returns a map of all registered scheduled tasks,
// keyed by the name used in configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		SQLMaintenance: newSQLMaintenanceTask(deps),
		StoreHealth:    newStoreHealthTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
