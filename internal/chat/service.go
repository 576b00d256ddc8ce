// ABOUTME: Chat service is the central layer for conversation turns
// ABOUTME: Assembles the model context, invokes the model, and persists the turn

package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/UTXO-Global/utxo-global-tgbot/internal/model"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/store"
)

// ConversationStore defines what the service needs from storage.
type ConversationStore interface {
	ListInstructions(ctx context.Context, tokenAddress string) ([]store.Instruction, error)
	ListMessages(ctx context.Context, tokenAddress, userAddress string) ([]store.Message, error)
	AppendTurn(ctx context.Context, tokenAddress, userAddress, userMsg, assistantMsg string) error
}

// Service runs conversation turns: context assembly, one model invocation,
// one atomic history write.
type Service struct {
	store   ConversationStore
	invoker model.Invoker
	logger  *slog.Logger
}

// New creates a new chat Service.
func New(st ConversationStore, invoker model.Invoker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   st,
		invoker: invoker,
		logger:  logger.With("component", "chat"),
	}
}

// Respond runs one turn for the given (agent, user) pair: it assembles the
// context from instructions and history, invokes the model with the new
// message, persists the user/assistant pair atomically, and returns the reply.
//
// Nothing is written when the invocation fails, and an invocation is never
// retried here.
func (s *Service) Respond(ctx context.Context, tokenAddress, userAddress, msg string) (string, error) {
	instructions, err := s.store.ListInstructions(ctx, tokenAddress)
	if err != nil {
		return "", fmt.Errorf("loading instructions: %w", err)
	}

	history, err := s.store.ListMessages(ctx, tokenAddress, userAddress)
	if err != nil {
		return "", fmt.Errorf("loading history: %w", err)
	}

	contextArray := BuildContext(instructions, history, msg)

	reply, err := s.invoker.Invoke(ctx, contextArray)
	if err != nil {
		return "", fmt.Errorf("invoking model: %w", err)
	}

	if err := s.store.AppendTurn(ctx, tokenAddress, userAddress, msg, reply); err != nil {
		return "", fmt.Errorf("persisting turn: %w", err)
	}

	s.logger.Debug("turn completed",
		"token_address", store.CanonicalAddress(tokenAddress),
		"user_address", store.CanonicalAddress(userAddress),
		"context_len", len(contextArray))

	return reply, nil
}

// History returns the (agent, user) message history with role labels.
func (s *Service) History(ctx context.Context, tokenAddress, userAddress string) ([]model.ChatMessage, error) {
	messages, err := s.store.ListMessages(ctx, tokenAddress, userAddress)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	result := make([]model.ChatMessage, 0, len(messages))
	for _, m := range messages {
		result = append(result, model.ChatMessage{
			Role:    m.Role.String(),
			Content: m.Content,
		})
	}
	return result, nil
}
