package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/psyprofile/internal/config"
	"github.com/edgard/psyprofile/internal/database"
	"github.com/edgard/psyprofile/internal/logger"
	"github.com/edgard/psyprofile/internal/profiler"
)

const adminID = 1000

// telegramAPI captures sendMessage calls made against a fake Bot API.
type telegramAPI struct {
	mu   sync.Mutex
	sent []string
}

func (a *telegramAPI) texts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.sent...)
}

func newTestBot(t *testing.T) (*bot.Bot, *telegramAPI) {
	t.Helper()
	api := &telegramAPI{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/sendMessage") {
			_ = r.ParseMultipartForm(1 << 20)
			api.mu.Lock()
			api.sent = append(api.sent, r.FormValue("text"))
			api.mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
	}))
	t.Cleanup(srv.Close)

	b, err := bot.New("123:test", bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	require.NoError(t, err)
	return b, api
}

func newDeps(t *testing.T, ingester Ingester) (HandlerDeps, database.Store) {
	t.Helper()
	db, err := database.NewDB(context.Background(), config.DatabaseConfig{
		Driver: database.DriverSQLite, DSN: filepath.Join(t.TempDir(), "h.db"), MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	store := database.NewStore(db, logger.Discard())

	cfg := &config.Config{
		Telegram: config.TelegramConfig{AdminUserID: adminID},
		Messages: config.DefaultMessages,
	}
	return HandlerDeps{Logger: logger.Discard(), Config: cfg, Store: store, Pipeline: ingester, BotUsername: "psybot"}, store
}

func textUpdate(fromID int64, text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   77,
			Chat: models.Chat{ID: 5},
			From: &models.User{ID: fromID, FirstName: "Alice", Username: "alice"},
			Text: text,
		},
	}
}

type recordingIngester struct {
	mu     sync.Mutex
	events []profiler.Event
	err    error
}

func (r *recordingIngester) Ingest(_ context.Context, ev profiler.Event) (profiler.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return profiler.Result{Stage: profiler.StageProfileUpdated}, r.err
}

func TestIngestHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("forwards text messages", func(t *testing.T) {
		t.Parallel()
		ing := &recordingIngester{}
		deps, _ := newDeps(t, ing)
		b, api := newTestBot(t)

		NewIngestHandler(deps)(ctx, b, textUpdate(42, "hello"))

		require.Len(t, ing.events, 1)
		ev := ing.events[0]
		assert.Equal(t, "77", ev.MessageID)
		assert.Equal(t, "42", ev.UserID)
		assert.Equal(t, "alice", *ev.Username)
		assert.Nil(t, ev.LastName)
		assert.Equal(t, "hello", ev.Text)
		assert.Empty(t, api.texts(), "ingestion never replies")
	})

	t.Run("ignores bots and non-text", func(t *testing.T) {
		t.Parallel()
		ing := &recordingIngester{}
		deps, _ := newDeps(t, ing)
		b, _ := newTestBot(t)
		h := NewIngestHandler(deps)

		botMsg := textUpdate(42, "beep")
		botMsg.Message.From.IsBot = true
		h(ctx, b, botMsg)
		h(ctx, b, textUpdate(42, ""))
		h(ctx, b, &models.Update{ID: 2})

		assert.Empty(t, ing.events)
	})

	t.Run("pipeline errors are swallowed", func(t *testing.T) {
		t.Parallel()
		ing := &recordingIngester{err: errors.New("storage down")}
		deps, _ := newDeps(t, ing)
		b, _ := newTestBot(t)

		assert.NotPanics(t, func() { NewIngestHandler(deps)(ctx, b, textUpdate(42, "hello")) })
	})
}

func TestEventFromMessage(t *testing.T) {
	t.Parallel()
	ev := EventFromMessage(&models.Message{
		ID:   3,
		From: &models.User{ID: 9, FirstName: "Bob", LastName: "Stone"},
		Text: "yo",
	})
	assert.Equal(t, "3", ev.MessageID)
	assert.Equal(t, "9", ev.UserID)
	assert.Nil(t, ev.Username)
	assert.Equal(t, "Stone", *ev.LastName)
	assert.Equal(t, "Bob Stone", profiler.DisplayName(ev.Username, ev.FirstName, ev.LastName))
}

func TestCommands(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("start and help", func(t *testing.T) {
		t.Parallel()
		deps, _ := newDeps(t, &recordingIngester{})
		deps.Config.Messages.Help = "ask @botname"
		b, api := newTestBot(t)

		NewStartHandler(deps)(ctx, b, textUpdate(42, "/start"))
		NewHelpHandler(deps)(ctx, b, textUpdate(42, "/help"))

		assert.Equal(t, []string{config.DefaultMessages.Welcome, "ask @psybot"}, api.texts())
	})

	t.Run("admin only", func(t *testing.T) {
		t.Parallel()
		deps, _ := newDeps(t, &recordingIngester{})
		b, api := newTestBot(t)
		called := false
		guarded := AdminOnly(deps)(func(context.Context, *bot.Bot, *models.Update) { called = true })

		guarded(ctx, b, textUpdate(42, "/profile 1"))
		assert.False(t, called)
		assert.Equal(t, []string{config.DefaultMessages.NotAuthorized}, api.texts())

		guarded(ctx, b, textUpdate(adminID, "/profile 1"))
		assert.True(t, called)
	})

	t.Run("profile and clear", func(t *testing.T) {
		t.Parallel()
		deps, store := newDeps(t, &recordingIngester{})
		b, api := newTestBot(t)

		_, _, err := store.FindOrCreate(ctx, "7", database.Identity{FirstName: "Gus"})
		require.NoError(t, err)
		profile := "🧠 Психоанализ: спокойный"
		require.NoError(t, store.UpdateProfile(ctx, "7", &profile))

		show := NewProfileHandler(deps)
		clearCmd := NewClearProfileHandler(deps)

		show(ctx, b, textUpdate(adminID, "/profile"))
		show(ctx, b, textUpdate(adminID, "/profile 404"))
		show(ctx, b, textUpdate(adminID, "/profile 7"))
		clearCmd(ctx, b, textUpdate(adminID, "/clear_profile 7"))
		show(ctx, b, textUpdate(adminID, "/profile 7"))
		clearCmd(ctx, b, textUpdate(adminID, "/clear_profile 404"))

		sent := api.texts()
		require.Len(t, sent, 6)
		assert.Equal(t, config.DefaultMessages.ProfileUsage, sent[0])
		assert.Equal(t, config.DefaultMessages.ProfileNotFound, sent[1])
		assert.Contains(t, sent[2], profile)
		assert.Equal(t, config.DefaultMessages.ProfileCleared, sent[3])
		assert.Contains(t, sent[4], config.DefaultMessages.NoProfile)
		assert.Equal(t, config.DefaultMessages.ProfileNotFound, sent[5])
	})
}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()
	deps, _ := newDeps(t, &recordingIngester{})
	cmds := RegisterAllCommands(deps)

	for _, name := range []string{"/start", "/help", "/profile", "/clear_profile"} {
		require.Contains(t, cmds, name)
		assert.NotNil(t, cmds[name].Handler)
	}
	assert.Len(t, cmds["/profile"].Middleware, 1)
	assert.Empty(t, cmds["/start"].Middleware)
}
