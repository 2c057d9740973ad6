package profiler

import (
	"context"
	"fmt"
	"slices"

	"github.com/edgard/psyprofile/internal/database"
)

// Context window policies as named in configuration.
const (
	PolicyShared  = "shared"
	PolicyPerUser = "per_user"
)

// ContextWindow picks the messages shown to the extraction prompt for a
// user. Implementations return them oldest first.
type ContextWindow interface {
	For(ctx context.Context, userID string) ([]database.ChatMessage, error)
}

// SharedRoomWindow returns the last Size messages of every participant, as
// if the whole chat were a single room.
type SharedRoomWindow struct {
	Messages database.MessageStore
	Size     int
}

func (w SharedRoomWindow) For(ctx context.Context, _ string) ([]database.ChatMessage, error) {
	recent, err := w.Messages.Recent(ctx, w.Size)
	if err != nil {
		return nil, fmt.Errorf("fetch shared context: %w", err)
	}
	slices.Reverse(recent)
	return recent, nil
}

// PerUserWindow returns only the acting user's last Size messages.
type PerUserWindow struct {
	Messages database.MessageStore
	Size     int
}

func (w PerUserWindow) For(ctx context.Context, userID string) ([]database.ChatMessage, error) {
	recent, err := w.Messages.ByUser(ctx, userID, w.Size)
	if err != nil {
		return nil, fmt.Errorf("fetch context for user %s: %w", userID, err)
	}
	slices.Reverse(recent)
	return recent, nil
}

// NewContextWindow builds the window for a configured policy.
//
//nolint:ireturn
func NewContextWindow(policy string, messages database.MessageStore, size int) (ContextWindow, error) {
	if size <= 0 {
		return nil, fmt.Errorf("context window size must be positive, got %d", size)
	}
	switch policy {
	case PolicyShared, "":
		return SharedRoomWindow{Messages: messages, Size: size}, nil
	case PolicyPerUser:
		return PerUserWindow{Messages: messages, Size: size}, nil
	default:
		return nil, fmt.Errorf("unknown context policy %q", policy)
	}
}
