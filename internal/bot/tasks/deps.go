// Package tasks implements scheduled tasks for psyprofile.
// It includes task definitions, dependencies, and registration.
package tasks

import (
	"context"
	"log/slog"
)

// Maintainer is the store surface the tasks need.
type Maintainer interface {
	Ping(ctx context.Context) error
	RunSQLMaintenance(ctx context.Context) error
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  Maintainer
}
