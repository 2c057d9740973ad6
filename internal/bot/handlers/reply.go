package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
)

func reply(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", chatID)
	}
}

func withBotName(text, botUsername string) string {
	if botUsername == "" {
		return text
	}
	return strings.ReplaceAll(text, "@botname", "@"+botUsername)
}

// commandArg returns the first argument after the command, if any.
func commandArg(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}
