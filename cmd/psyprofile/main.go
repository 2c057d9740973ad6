// Package main contains the entrypoint for the psyprofile bot and its
// maintenance commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/edgard/psyprofile/internal/config"
	"github.com/edgard/psyprofile/internal/logger"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "psyprofile",
		Short:         "Telegram bot that keeps psychological profiles of chat participants",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "./config.yaml", "Path to configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to dotenv file")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newClearProfileCmd(opts),
		newStaffCmd(opts),
	)
	return root
}

// loadConfig loads configuration and installs the configured logger.
// full selects Validate over ValidateDatabase.
func loadConfig(opts *rootOptions, full bool) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		return nil, nil, err
	}
	validate := cfg.ValidateDatabase
	if full {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, nil, err
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	log.Debug("Configuration loaded", "path", opts.configPath, "driver", cfg.Database.Driver)
	return cfg, log, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot, scheduler and dashboard API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func usageError(format string, args ...any) error {
	return fmt.Errorf("usage: "+format, args...)
}
