package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/psyprofile/internal/config"
	"github.com/edgard/psyprofile/internal/database"
	"github.com/edgard/psyprofile/internal/profiler"
)

// Ingester runs the profiling pipeline for one message.
type Ingester interface {
	Ingest(ctx context.Context, ev profiler.Event) (profiler.Result, error)
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Store    database.UserStore
	Pipeline Ingester
	// BotUsername replaces @botname in configured replies.
	BotUsername string
}
