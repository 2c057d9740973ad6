package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/psyprofile/internal/api"
	"github.com/edgard/psyprofile/internal/bot"
	"github.com/edgard/psyprofile/internal/bot/handlers"
	"github.com/edgard/psyprofile/internal/bot/tasks"
	"github.com/edgard/psyprofile/internal/database"
	"github.com/edgard/psyprofile/internal/llm"
	"github.com/edgard/psyprofile/internal/logger"
	"github.com/edgard/psyprofile/internal/profiler"
	"github.com/edgard/psyprofile/internal/telegram"
)

// runServe wires every component and blocks until ctx is cancelled or one
// of them fails.
func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, log, err := loadConfig(opts, true)
	if err != nil {
		return err
	}

	db, err := database.NewDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	llmClient, err := llm.New(ctx, cfg.LLM, log)
	if err != nil {
		return fmt.Errorf("init llm client: %w", err)
	}

	window, err := profiler.NewContextWindow(cfg.Pipeline.ContextPolicy, store, cfg.Pipeline.ContextWindowSize)
	if err != nil {
		return err
	}

	// The default handler is installed at bot creation, but the pipeline
	// needs the bot for avatar lookups, so it is bound afterwards.
	var ingest tgbot.HandlerFunc
	defaultHandler := func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
		if ingest != nil {
			ingest(ctx, b, update)
		}
	}

	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log,
		telegram.BotOptions(log, cfg.Telegram.Workers, defaultHandler, logger.Middleware(log))...)
	if err != nil {
		return err
	}

	me, err := tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}
	log.Info("Retrieved bot info", "bot_id", me.ID, "bot_username", me.Username)

	pipeline, err := profiler.NewPipeline(profiler.Deps{
		Users:    store,
		Messages: store,
		Window:   window,
		LLM:      llmClient,
		Avatars:  telegram.NewAvatarResolver(tg, cfg.Telegram.AvatarCacheTTL, log),
		Logger:   log,
	})
	if err != nil {
		return err
	}

	hDeps := handlers.HandlerDeps{
		Logger:      log,
		Config:      cfg,
		Store:       store,
		Pipeline:    pipeline,
		BotUsername: me.Username,
	}
	ingest = handlers.NewIngestHandler(hDeps)
	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		return err
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{Logger: log, Store: store}))
	if err != nil {
		return err
	}

	var server *http.Server
	if cfg.HTTP.Enabled {
		auth := api.NewAuth(cfg.HTTP.JWTSecret, cfg.HTTP.TokenTTL)
		if err := auth.SeedAdmin(ctx, store, cfg.HTTP.SeedAdminUsername, cfg.HTTP.SeedAdminPassword, log); err != nil {
			return err
		}
		server = api.NewServer(api.Deps{Config: &cfg.HTTP, Store: store, Auth: auth, Logger: log})
	}

	err = bot.NewBot(log, tg, server, sched, cfg.HTTP.ShutdownTimeout).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped: %w", err)
	}
	log.Info("Bot stopped gracefully.")
	return nil
}
