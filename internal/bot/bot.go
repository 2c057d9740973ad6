// Package bot wires the long-running parts of psyprofile together and
// manages their lifecycle: the Telegram listener, the dashboard HTTP server
// and the task scheduler.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Listener receives Telegram updates until ctx ends. *bot.Bot satisfies it.
type Listener interface {
	Start(ctx context.Context)
}

// TaskScheduler runs scheduled tasks.
type TaskScheduler interface {
	Start() error
	Stop() error
}

// Bot represents the main application and manages its components' lifecycle.
type Bot struct {
	logger          *slog.Logger
	listener        Listener
	server          *http.Server
	scheduler       TaskScheduler
	shutdownTimeout time.Duration
}

// NewBot creates the orchestrator. server may be nil when the dashboard API
// is disabled.
func NewBot(logger *slog.Logger, listener Listener, server *http.Server, scheduler TaskScheduler, shutdownTimeout time.Duration) *Bot {
	return &Bot{
		logger:          logger.With("component", "bot_orchestrator"),
		listener:        listener,
		server:          server,
		scheduler:       scheduler,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run starts all components and blocks until ctx is cancelled or one of them fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")
		b.listener.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	if b.server != nil {
		g.Go(func() error {
			b.logger.Info("Starting HTTP server...", "addr", b.server.Addr)
			if err := b.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server failed: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), b.shutdownTimeout)
			defer cancel()
			if err := b.server.Shutdown(shutdownCtx); err != nil {
				b.logger.Error("Error shutting down HTTP server", "error", err)
			}
			b.logger.Info("HTTP server stopped.")
			return nil
		})
	}

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
