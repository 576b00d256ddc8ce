// ABOUTME: Model invocation interface and context message type
// ABOUTME: The language model is an opaque external collaborator behind Invoker

package model

import "context"

// ChatMessage is one entry of the ordered context array handed to the model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Invoker turns an assembled context array into a single reply.
// Failures are surfaced to the caller; no retry happens at this layer.
type Invoker interface {
	Invoke(ctx context.Context, messages []ChatMessage) (string, error)
}
