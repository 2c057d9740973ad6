package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/psyprofile/internal/database"
	"github.com/edgard/psyprofile/internal/profiler"
)

// NewProfileHandler returns a handler for /profile <user_id>.
func NewProfileHandler(deps HandlerDeps) bot.HandlerFunc {
	return profileHandler{deps}.Handle
}

type profileHandler struct {
	deps HandlerDeps
}

func (h profileHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "profile")
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	userID := commandArg(update.Message.Text)
	if userID == "" {
		reply(ctx, b, log, chatID, msgs.ProfileUsage)
		return
	}

	user, err := h.deps.Store.Get(ctx, userID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		reply(ctx, b, log, chatID, msgs.ProfileNotFound)
		return
	case err != nil:
		log.ErrorContext(ctx, "Failed to load user", "user_id", userID, "error", err)
		reply(ctx, b, log, chatID, msgs.GeneralError)
		return
	}

	name := profiler.DisplayName(user.Username, user.FirstName, user.LastName)
	if user.PsychoAnalysis == nil {
		reply(ctx, b, log, chatID, fmt.Sprintf("%s (%s)\n\n%s", name, user.UserID, msgs.NoProfile))
		return
	}
	reply(ctx, b, log, chatID, fmt.Sprintf("%s (%s)\n\n%s", name, user.UserID, *user.PsychoAnalysis))
}

// NewClearProfileHandler returns a handler for /clear_profile <user_id>.
func NewClearProfileHandler(deps HandlerDeps) bot.HandlerFunc {
	return clearProfileHandler{deps}.Handle
}

type clearProfileHandler struct {
	deps HandlerDeps
}

func (h clearProfileHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "clear_profile")
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	userID := commandArg(update.Message.Text)
	if userID == "" {
		reply(ctx, b, log, chatID, msgs.ProfileUsage)
		return
	}

	err := h.deps.Store.ClearProfile(ctx, userID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		reply(ctx, b, log, chatID, msgs.ProfileNotFound)
	case err != nil:
		log.ErrorContext(ctx, "Failed to clear profile", "user_id", userID, "error", err)
		reply(ctx, b, log, chatID, msgs.GeneralError)
	default:
		log.InfoContext(ctx, "Profile cleared by admin", "user_id", userID)
		reply(ctx, b, log, chatID, msgs.ProfileCleared)
	}
}
