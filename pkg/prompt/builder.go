package prompt

import (
	"strings"

	"therapist-bot-be/pkg/emotion"
	"therapist-bot-be/pkg/llm"
)

// MaxHistoryMessages bounds how much conversation is replayed to the model.
const MaxHistoryMessages = 20

// ConversationBuilder assembles the message list for one chat turn.
type ConversationBuilder struct {
	basePrompt string
	state      emotion.FusedState
	history    []llm.Message
	taggedText string
}

// NewConversationBuilder creates a builder over the session history. The last
// history entry is expected to be the user's current turn.
func NewConversationBuilder(basePrompt string, state emotion.FusedState, history []llm.Message) *ConversationBuilder {
	return &ConversationBuilder{
		basePrompt: basePrompt,
		state:      state,
		history:    history,
	}
}

// WithTaggedText attaches word-level emotion tags for the current user turn.
func (b *ConversationBuilder) WithTaggedText(tagged string) *ConversationBuilder {
	b.taggedText = tagged
	return b
}

// SystemPrompt returns the base prompt followed by the emotion directive.
func (b *ConversationBuilder) SystemPrompt() string {
	return b.basePrompt + FormatEmotionContext(b.state)
}

// Build returns the system message plus the trimmed history.
func (b *ConversationBuilder) Build() []llm.Message {
	history := b.history
	if len(history) > MaxHistoryMessages {
		history = history[len(history)-MaxHistoryMessages:]
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: b.SystemPrompt()})
	messages = append(messages, history...)

	if b.taggedText != "" && len(history) > 0 {
		last := &messages[len(messages)-1]
		if last.Role == llm.RoleUser {
			last.Content = b.writeTagged(last.Content)
		}
	}
	return messages
}

func (b *ConversationBuilder) writeTagged(content string) string {
	var sb strings.Builder
	sb.WriteString(content)
	sb.WriteString("\n\n<speech_emotion_tags>\n")
	sb.WriteString(b.taggedText)
	sb.WriteString("\n</speech_emotion_tags>")
	return sb.String()
}
