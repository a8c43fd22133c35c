// Package chat owns the conversation flow: assembling the message context for
// the model and orchestrating one user turn from validation through streaming
// to persistence.
package chat

import (
	"fmt"
	"strings"

	"ollachat/pkg/chattypes"
)

// historyDirective is appended to a user-supplied system prompt so the model
// keeps the replayed conversation history in view.
const historyDirective = "\n\nYou are having a conversation with the user. " +
	"You have access to the full conversation history and should reference " +
	"previous parts of the conversation when relevant. Always maintain " +
	"context awareness throughout the conversation."

// BuildContext produces the exact ordered message sequence submitted to the
// model. A non-blank system prompt is prepended as a single system message,
// extended with the history directive. The full history follows in original
// order with no truncation or windowing; conversation length is bounded only
// by the model's own context window. Images are carried over only when
// present and non-empty. BuildContext is pure: it never mutates its inputs.
func BuildContext(messages []chattypes.Message, systemPrompt string) []chattypes.Message {
	out := make([]chattypes.Message, 0, len(messages)+1)

	if strings.TrimSpace(systemPrompt) != "" {
		out = append(out, chattypes.Message{
			Role:    chattypes.RoleSystem,
			Content: systemPrompt + historyDirective,
		})
	}

	for _, msg := range messages {
		entry := chattypes.Message{Role: msg.Role, Content: msg.Content}
		if len(msg.Images) > 0 {
			entry.Images = msg.Images
		}
		out = append(out, entry)
	}

	return out
}

// ContextSummary describes the conversation in one line for status displays.
func ContextSummary(messages []chattypes.Message) string {
	if len(messages) == 0 {
		return "No conversation history"
	}

	var users, assistants int
	for _, msg := range messages {
		switch msg.Role {
		case chattypes.RoleUser:
			users++
		case chattypes.RoleAssistant:
			assistants++
		}
	}

	return fmt.Sprintf("Messages: %d | User: %d | Assistant: %d", len(messages), users, assistants)
}
