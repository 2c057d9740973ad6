package handlers

import (
	"context"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/psyprofile/internal/profiler"
)

// NewIngestHandler returns the default handler, feeding every text message
// with a human sender into the profiling pipeline. It never replies.
func NewIngestHandler(deps HandlerDeps) bot.HandlerFunc {
	return ingestHandler{deps}.Handle
}

type ingestHandler struct {
	deps HandlerDeps
}

func (h ingestHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" || msg.From.IsBot {
		return
	}

	ev := EventFromMessage(msg)
	log := h.deps.Logger.With("handler", "ingest", "message_id", ev.MessageID, "user_id", ev.UserID, "chat_id", msg.Chat.ID)

	res, err := h.deps.Pipeline.Ingest(ctx, ev)
	if err != nil {
		log.ErrorContext(ctx, "Message ingestion failed", "stage", res.Stage.String(), "error", err)
		return
	}
	log.DebugContext(ctx, "Message ingested", "stage", res.Stage.String())
}

// EventFromMessage maps a Telegram message to a pipeline event.
func EventFromMessage(msg *models.Message) profiler.Event {
	ev := profiler.Event{
		MessageID: strconv.Itoa(msg.ID),
		Text:      msg.Text,
	}
	if msg.From != nil {
		ev.UserID = strconv.FormatInt(msg.From.ID, 10)
		ev.FirstName = msg.From.FirstName
		if msg.From.Username != "" {
			username := msg.From.Username
			ev.Username = &username
		}
		if msg.From.LastName != "" {
			lastName := msg.From.LastName
			ev.LastName = &lastName
		}
	}
	return ev
}
