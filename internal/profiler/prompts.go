package profiler

import (
	"fmt"
	"strings"

	"github.com/edgard/psyprofile/internal/database"
)

// NoProfilePlaceholder stands in for the prior profile of a user who has none yet.
const NoProfilePlaceholder = "Профиль пока не составлен."

// MaxProfileWords caps the synthesized profile.
const MaxProfileWords = 120

const contextTimeLayout = "2006-01-02 15:04"

// DisplayName is the name a user is shown and addressed by: the username
// when present, otherwise first and last name.
func DisplayName(username *string, firstName string, lastName *string) string {
	if username != nil && strings.TrimSpace(*username) != "" {
		return strings.TrimSpace(*username)
	}
	last := ""
	if lastName != nil {
		last = *lastName
	}
	return strings.TrimSpace(firstName + " " + last)
}

// FormatContext renders a window one message per line, in the given order.
func FormatContext(window []database.ChatMessage) string {
	var sb strings.Builder
	for i, m := range window {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "[%s] %s: %s", m.CreatedAt.UTC().Format(contextTimeLayout), m.DisplayName, m.Text)
	}
	return sb.String()
}

// ExtractionPrompt asks for an English bulleted list of observable behavior
// of displayName, grounded in the recent conversation.
func ExtractionPrompt(window []database.ChatMessage, displayName string) string {
	var sb strings.Builder
	sb.WriteString(`# Behavioral Observation Extractor

## ROLE
You collect observable behavioral indicators of one chat participant, with short illustrative quotes. Your output is raw material for a later profiling step.

## TASKS
1. Communication style: how the participant writes (tone, length, slang, emojis, sarcasm). Quote briefly when it helps.
2. Emotional expressions: visible displays of emotion only, each with the cue that shows it.
3. Social interaction: who starts topics, how they answer, whether they share or ask.
4. Interests: topics the participant explicitly talks about.
5. Overall impression (optional): one short line if a consistent impression emerges.

## CONSTRAINTS
- Describe what the participant says and does, not why.
- No speculation and no psychological jargon.
- Keep every point short and concrete.
- Output strictly a bulleted list in English.
- Other participants' messages are context only; do not describe them.

---
### Recent messages (oldest first, timestamped):
`)
	sb.WriteString(FormatContext(window))
	fmt.Fprintf(&sb, `

---
List the key behavioral observations for %s as an English bulleted list, following the constraints above:
`, displayName)
	return sb.String()
}

// SynthesisPrompt asks for a replacement Russian profile of displayName that
// merges the new observations into priorProfile. A nil or blank priorProfile
// is rendered as NoProfilePlaceholder.
func SynthesisPrompt(extraction string, priorProfile *string, displayName string) string {
	current := NoProfilePlaceholder
	if priorProfile != nil && strings.TrimSpace(*priorProfile) != "" {
		current = strings.TrimSpace(*priorProfile)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `You are a psychological profiling assistant. Write a short, well-grounded portrait of %[1]s from the extracted observations.

### Rules
1. Merge the new observations with the current profile into one profile. Do not append the new text after the old one; rewrite the whole profile.
2. If the new observations change nothing important, keep the profile consistent with the current one.
3. Describe communication style, emotional patterns and interests. No speculative conclusions.
4. Language: Russian only.
5. Length: at most %[2]d words.
6. Follow exactly this structure:

---
🧠 Психоанализ:
Пользователь %[1]s демонстрирует ...

🔹 Основные черты:
[Черта 1] – краткое описание с примером.
[Черта 2] – краткое описание с примером.
[Черта 3] – краткое описание с примером.

⚖ Вероятный психотип:
[Экстраверсия] – описание.
[Нейротизм] – описание.
[Доброжелательность] – описание.

📌 Вывод:
Одно-два предложения о личности пользователя.
---

### Current profile:
%[3]s

### Extracted observations:
%[4]s

Write the updated profile of %[1]s in Russian, in the structure above:
`, displayName, MaxProfileWords, current, strings.TrimSpace(extraction))
	return sb.String()
}
