// ABOUTME: Deterministic context assembly for model invocations
// ABOUTME: Pure function from (instructions, history, new input) to an ordered context array

package chat

import (
	"strings"

	"github.com/UTXO-Global/utxo-global-tgbot/internal/model"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/store"
)

// BuildContext assembles the ordered context array for a model invocation:
// one system entry (instruction contents joined by newlines, in creation
// order), the full message history, then the new input as a user entry.
//
// The system entry is emitted even when the agent has no instructions; its
// content is then the empty string. Identical inputs always produce an
// identical array, which makes model behavior reproducible from stored state.
func BuildContext(instructions []store.Instruction, history []store.Message, newMsg string) []model.ChatMessage {
	contents := make([]string, 0, len(instructions))
	for _, in := range instructions {
		contents = append(contents, in.Content)
	}

	messages := make([]model.ChatMessage, 0, len(history)+2)
	messages = append(messages, model.ChatMessage{
		Role:    "system",
		Content: strings.Join(contents, "\n"),
	})

	for _, m := range history {
		messages = append(messages, model.ChatMessage{
			Role:    m.Role.String(),
			Content: m.Content,
		})
	}

	messages = append(messages, model.ChatMessage{
		Role:    "user",
		Content: newMsg,
	})

	return messages
}
