// ABOUTME: Ollama implementation of the Invoker interface using the official SDK
// ABOUTME: Sends the assembled context array as a non-streaming chat request

package model

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaInvoker calls a local or remote Ollama server.
type OllamaInvoker struct {
	client *api.Client
	model  string
}

// NewOllamaInvoker creates an invoker for the given Ollama host and model name.
func NewOllamaInvoker(host, modelName string) (*OllamaInvoker, error) {
	if host == "" {
		host = "http://localhost:11434"
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	parsedURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parsing model host %q: %w", host, err)
	}

	httpClient := &http.Client{
		Timeout: 5 * time.Minute, // local inference can be slow
	}

	return &OllamaInvoker{
		client: api.NewClient(parsedURL, httpClient),
		model:  modelName,
	}, nil
}

// Invoke sends the context array and returns the assistant reply text.
func (o *OllamaInvoker) Invoke(ctx context.Context, messages []ChatMessage) (string, error) {
	chatMessages := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, api.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: chatMessages,
		Stream:   &stream,
	}

	var reply strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("model invocation failed: %w", err)
	}

	return reply.String(), nil
}
