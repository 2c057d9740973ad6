// Package profiler turns inbound chat messages into stored messages, kept
// user identities and LLM-synthesized psychological profiles.
//
// Each message runs one linear pipeline: upsert the user, persist the
// message, build a context window, extract observations, synthesize a
// profile and store it. Only the first two steps can fail a run; everything
// after the message is stored is best effort.
package profiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/edgard/psyprofile/internal/database"
	"github.com/edgard/psyprofile/internal/llm"
)

// Stage is the last pipeline step a run completed.
type Stage int

const (
	StageNone Stage = iota
	StageUserUpserted
	StageMessagePersisted
	StageContextFetched
	StageExtractionDone
	StageSynthesisDone
	StageProfileUpdated
)

var stageNames = [...]string{
	StageNone:             "none",
	StageUserUpserted:     "user_upserted",
	StageMessagePersisted: "message_persisted",
	StageContextFetched:   "context_fetched",
	StageExtractionDone:   "extraction_done",
	StageSynthesisDone:    "synthesis_done",
	StageProfileUpdated:   "profile_updated",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// ErrInvalidEvent is returned for events missing required fields.
var ErrInvalidEvent = errors.New("invalid event")

// errEmptyCompletion marks a completion that carried only whitespace.
var errEmptyCompletion = errors.New("llm returned an empty completion")

// Event is one inbound chat message as seen by the transport.
type Event struct {
	MessageID string
	UserID    string
	Username  *string
	FirstName string
	LastName  *string
	Text      string
}

func (e Event) validate() error {
	switch {
	case e.MessageID == "":
		return fmt.Errorf("%w: missing message id", ErrInvalidEvent)
	case e.UserID == "":
		return fmt.Errorf("%w: missing user id", ErrInvalidEvent)
	case strings.TrimSpace(e.Text) == "":
		return fmt.Errorf("%w: empty text", ErrInvalidEvent)
	}
	return nil
}

// AvatarResolver looks up a user's current avatar URL. A nil URL means the
// user has none.
type AvatarResolver interface {
	AvatarURL(ctx context.Context, userID string) (*string, error)
}

// Result describes how far a run got.
type Result struct {
	Stage   Stage
	User    *database.TelegramUser
	Message *database.ChatMessage
	// Profile is the newly stored profile when Stage is StageProfileUpdated.
	Profile *string
	// ProfileErr is why the profile sub-flow stopped early, if it did.
	ProfileErr error
}

// Deps holds the collaborators of a Pipeline.
type Deps struct {
	Users    database.UserStore
	Messages database.MessageStore
	Window   ContextWindow
	LLM      llm.Client
	// Avatars is optional.
	Avatars AvatarResolver
	Logger  *slog.Logger
}

// Pipeline ingests chat messages. It is safe for concurrent use; runs for
// the same user serialize around the user upsert and the profile update.
type Pipeline struct {
	users    database.UserStore
	messages database.MessageStore
	window   ContextWindow
	llm      llm.Client
	avatars  AvatarResolver
	locks    *userLocks
	log      *slog.Logger
}

// NewPipeline validates deps and builds a Pipeline.
func NewPipeline(deps Deps) (*Pipeline, error) {
	if deps.Users == nil || deps.Messages == nil || deps.Window == nil || deps.LLM == nil {
		return nil, errors.New("profiler: users, messages, window and llm are required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		users:    deps.Users,
		messages: deps.Messages,
		window:   deps.Window,
		llm:      deps.LLM,
		avatars:  deps.Avatars,
		locks:    newUserLocks(),
		log:      log.With("component", "profiler"),
	}, nil
}

// Ingest runs the pipeline for ev. It returns an error only when ev is
// invalid or the user or message could not be stored; later failures are
// logged and reported in Result.ProfileErr.
func (p *Pipeline) Ingest(ctx context.Context, ev Event) (Result, error) {
	res := Result{Stage: StageNone}
	if err := ev.validate(); err != nil {
		return res, err
	}
	log := p.log.With("message_id", ev.MessageID, "user_id", ev.UserID)

	identity := database.Identity{
		Username:  ev.Username,
		FirstName: ev.FirstName,
		LastName:  ev.LastName,
		AvatarURL: p.resolveAvatar(ctx, log, ev.UserID),
	}

	user, err := p.upsertUser(ctx, ev.UserID, identity)
	if err != nil {
		log.ErrorContext(ctx, "Failed to upsert user", "error", err)
		return res, fmt.Errorf("upsert user %s: %w", ev.UserID, err)
	}
	res.Stage, res.User = StageUserUpserted, user

	displayName := DisplayName(ev.Username, ev.FirstName, ev.LastName)
	msg := &database.ChatMessage{
		MessageID:   ev.MessageID,
		UserID:      ev.UserID,
		DisplayName: displayName,
		AvatarURL:   identity.AvatarURL,
		Text:        ev.Text,
	}
	if err := p.messages.Append(ctx, msg); err != nil {
		log.ErrorContext(ctx, "Failed to persist message", "error", err)
		return res, fmt.Errorf("persist message %s: %w", ev.MessageID, err)
	}
	res.Stage, res.Message = StageMessagePersisted, msg
	log.DebugContext(ctx, "Message persisted", "display_name", displayName)

	if err := p.refreshProfile(ctx, log, &res, ev.UserID, displayName); err != nil {
		res.ProfileErr = err
		log.WarnContext(ctx, "Profile update aborted", "stage", res.Stage.String(), "error", err)
		return res, nil
	}

	log.InfoContext(ctx, "Profile updated", "profile_length", len(*res.Profile))
	return res, nil
}

func (p *Pipeline) resolveAvatar(ctx context.Context, log *slog.Logger, userID string) *string {
	if p.avatars == nil {
		return nil
	}
	url, err := p.avatars.AvatarURL(ctx, userID)
	if err != nil {
		log.DebugContext(ctx, "Avatar lookup failed, continuing without avatar", "error", err)
		return nil
	}
	return url
}

func (p *Pipeline) upsertUser(ctx context.Context, userID string, identity database.Identity) (*database.TelegramUser, error) {
	unlock, err := p.locks.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	user, created, err := p.users.FindOrCreate(ctx, userID, identity)
	if err != nil {
		return nil, err
	}
	if created {
		return user, nil
	}

	if err := p.users.UpdateIdentity(ctx, userID, identity); err != nil {
		return nil, err
	}
	user.Username = identity.Username
	user.FirstName = identity.FirstName
	user.LastName = identity.LastName
	user.AvatarURL = identity.AvatarURL
	return user, nil
}

// refreshProfile runs the context, extraction, synthesis and store steps,
// advancing res.Stage as each one completes.
func (p *Pipeline) refreshProfile(ctx context.Context, log *slog.Logger, res *Result, userID, displayName string) error {
	window, err := p.window.For(ctx, userID)
	if err != nil {
		return fmt.Errorf("build context window: %w", err)
	}
	res.Stage = StageContextFetched
	log.DebugContext(ctx, "Context window built", "messages", len(window))

	extraction, err := p.complete(ctx, ExtractionPrompt(window, displayName))
	if err != nil {
		return fmt.Errorf("extraction: %w", err)
	}
	res.Stage = StageExtractionDone

	unlock, err := p.locks.Lock(ctx, userID)
	if err != nil {
		return fmt.Errorf("wait for user lock: %w", err)
	}
	defer unlock()

	// Re-read so a clear or a synthesis that landed meanwhile is the base.
	current, err := p.users.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load current profile: %w", err)
	}

	profile, err := p.complete(ctx, SynthesisPrompt(extraction, current.PsychoAnalysis, displayName))
	if err != nil {
		return fmt.Errorf("synthesis: %w", err)
	}
	res.Stage = StageSynthesisDone

	if err := p.users.UpdateProfile(ctx, userID, &profile); err != nil {
		return fmt.Errorf("store profile: %w", err)
	}
	res.Stage, res.Profile = StageProfileUpdated, &profile
	if res.User != nil {
		res.User.PsychoAnalysis = &profile
	}
	return nil
}

func (p *Pipeline) complete(ctx context.Context, prompt string) (string, error) {
	text, err := p.llm.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}
