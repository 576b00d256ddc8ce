// ABOUTME: Store interface and data types for agent backend persistence
// ABOUTME: Defines Agent, Instruction, Message, Member records and the Store interface

package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Role identifies who authored a message. It is stored as a smallint
// (0=user, 1=assistant) at the persistence edge only; everywhere else the
// typed constants are used.
type Role int16

const (
	RoleUser      Role = 0
	RoleAssistant Role = 1
)

// String returns the role label used in model context arrays and API responses.
func (r Role) String() string {
	switch r {
	case RoleAssistant:
		return "assistant"
	default:
		return "user"
	}
}

// Agent represents a configured conversational persona keyed by token address.
// Created lazily on the first instruction write and never deleted.
type Agent struct {
	TokenAddress string
	OwnerAddress string
	CreatedAt    time.Time
}

// Instruction is one operator-authored fragment of an agent's system prompt.
// Creation order is significant: instructions concatenate in ascending id
// order to form the system message.
type Instruction struct {
	ID           int64
	TokenAddress string
	Content      string
	CreatedAt    time.Time
}

// Message is one entry in a per-(agent, user) conversation history.
type Message struct {
	ID           int64
	TokenAddress string
	UserAddress  string
	Role         Role
	Content      string
	CreatedAt    time.Time
}

// Member is a Telegram group member tracked for KYC onboarding.
type Member struct {
	TGID       int64
	TGName     string
	CKBAddress string
	Balance    int64
	DOB        string
	CreatedAt  time.Time
}

// CanonicalAddress normalizes a token or user address to its canonical
// lowercase form. Every store operation applies this before lookup or write.
func CanonicalAddress(addr string) string {
	return strings.ToLower(addr)
}

// Store defines the persistence operations for agents, instructions,
// conversation history, and members.
type Store interface {
	// EnsureAgent idempotently creates an agent row. It no-ops if a row
	// already exists for the token address; the stored owner is never
	// overwritten.
	EnsureAgent(ctx context.Context, tokenAddress, ownerAddress string) error
	GetAgent(ctx context.Context, tokenAddress string) (*Agent, error)

	// Instructions
	AddInstruction(ctx context.Context, tokenAddress, ownerAddress, content string) (int64, error)
	ListInstructions(ctx context.Context, tokenAddress string) ([]Instruction, error)
	UpdateInstruction(ctx context.Context, id int64, content string) error
	DeleteInstruction(ctx context.Context, id int64) error

	// Conversation history. AppendTurn inserts the user message and the
	// assistant message as one atomic unit: concurrent readers see both
	// rows or neither.
	AppendTurn(ctx context.Context, tokenAddress, userAddress, userMsg, assistantMsg string) error
	ListMessages(ctx context.Context, tokenAddress, userAddress string) ([]Message, error)

	// Members (Telegram KYC onboarding)
	UpsertMember(ctx context.Context, tgid int64, tgname string) error
	VerifyMember(ctx context.Context, tgname, ckbAddress string, balance int64, dob string) (int64, error)

	// Close releases any resources held by the store
	Close() error
}
