package profiler

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/edgard/psyprofile/internal/database"
)

func TestDisplayName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		username *string
		first    string
		last     *string
		want     string
	}{
		{name: "username wins", username: ptr("alice"), first: "Alice", last: ptr("A"), want: "alice"},
		{name: "first and last", first: "Alice", last: ptr("Smith"), want: "Alice Smith"},
		{name: "first only", first: "Alice", want: "Alice"},
		{name: "blank username falls back", username: ptr(" "), first: "Bob", last: ptr(""), want: "Bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DisplayName(tt.username, tt.first, tt.last))
		})
	}
}

func TestExtractionPrompt(t *testing.T) {
	t.Parallel()
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	window := []database.ChatMessage{
		{DisplayName: "alice", Text: "hello", CreatedAt: base},
		{DisplayName: "bob", Text: "hi alice", CreatedAt: base.Add(time.Minute)},
	}

	prompt := ExtractionPrompt(window, "alice")
	assert.Contains(t, prompt, "[2024-03-01 09:30] alice: hello\n[2024-03-01 09:31] bob: hi alice")
	assert.Contains(t, prompt, "observations for alice")
	assert.Contains(t, prompt, "bulleted list in English")
	assert.Equal(t, prompt, ExtractionPrompt(window, "alice"), "deterministic")

	empty := ExtractionPrompt(nil, "alice")
	assert.NotEmpty(t, strings.TrimSpace(empty))
}

func TestSynthesisPrompt(t *testing.T) {
	t.Parallel()

	withPrior := SynthesisPrompt("- is curious\n", ptr("старый профиль"), "alice")
	assert.Contains(t, withPrior, "старый профиль")
	assert.NotContains(t, withPrior, NoProfilePlaceholder)
	assert.Contains(t, withPrior, "- is curious")
	assert.Contains(t, withPrior, "at most 120 words")
	assert.Contains(t, withPrior, "Пользователь alice демонстрирует")
	for _, heading := range []string{"🧠 Психоанализ:", "🔹 Основные черты:", "⚖ Вероятный психотип:", "📌 Вывод:"} {
		assert.Contains(t, withPrior, heading)
	}

	assert.Contains(t, SynthesisPrompt("- x", nil, "bob"), NoProfilePlaceholder)
	assert.Contains(t, SynthesisPrompt("- x", ptr("  "), "bob"), NoProfilePlaceholder)
}

func TestNewContextWindow(t *testing.T) {
	t.Parallel()
	w, err := NewContextWindow(PolicyShared, nil, 50)
	assert.NoError(t, err)
	assert.IsType(t, SharedRoomWindow{}, w)

	w, err = NewContextWindow(PolicyPerUser, nil, 10)
	assert.NoError(t, err)
	assert.IsType(t, PerUserWindow{}, w)

	_, err = NewContextWindow("global", nil, 10)
	assert.Error(t, err)
	_, err = NewContextWindow(PolicyShared, nil, 0)
	assert.Error(t, err)
}
