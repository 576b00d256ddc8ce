// ABOUTME: In-memory Store implementation for testing
// ABOUTME: Allows tests to run without Postgres

package store

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-memory Store implementation for testing.
// It applies the same canonicalization and atomicity rules as PostgresStore.
type MemStore struct {
	mu           sync.RWMutex
	agents       map[string]*Agent        // keyed by token address
	instructions []*Instruction           // ordered by creation
	messages     map[string][]*Message    // keyed by "token:user"
	members      map[int64]*Member        // keyed by tgid
	nextInstrID  int64
	nextMsgID    int64

	// TurnFailure, when set, makes the next AppendTurn fail without
	// mutating state, simulating a mid-turn storage failure.
	TurnFailure error
}

// NewMemStore creates a new MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		agents:      make(map[string]*Agent),
		messages:    make(map[string][]*Message),
		members:     make(map[int64]*Member),
		nextInstrID: 1,
		nextMsgID:   1,
	}
}

func (m *MemStore) Close() error { return nil }

// EnsureAgent idempotently creates an agent, keeping the first owner.
func (m *MemStore) EnsureAgent(ctx context.Context, tokenAddress, ownerAddress string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := CanonicalAddress(tokenAddress)
	if _, ok := m.agents[token]; ok {
		return nil
	}
	m.agents[token] = &Agent{
		TokenAddress: token,
		OwnerAddress: CanonicalAddress(ownerAddress),
		CreatedAt:    time.Now(),
	}
	return nil
}

// GetAgent retrieves an agent by token address.
func (m *MemStore) GetAgent(ctx context.Context, tokenAddress string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.agents[CanonicalAddress(tokenAddress)]
	if !ok {
		return nil, ErrNotFound
	}
	result := *a
	return &result, nil
}

// AddInstruction ensures the agent and appends an instruction.
func (m *MemStore) AddInstruction(ctx context.Context, tokenAddress, ownerAddress, content string) (int64, error) {
	if err := m.EnsureAgent(ctx, tokenAddress, ownerAddress); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	in := &Instruction{
		ID:           m.nextInstrID,
		TokenAddress: CanonicalAddress(tokenAddress),
		Content:      content,
		CreatedAt:    time.Now(),
	}
	m.nextInstrID++
	m.instructions = append(m.instructions, in)
	return in.ID, nil
}

// ListInstructions returns the agent's instructions in creation order.
func (m *MemStore) ListInstructions(ctx context.Context, tokenAddress string) ([]Instruction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	token := CanonicalAddress(tokenAddress)
	result := []Instruction{}
	for _, in := range m.instructions {
		if in.TokenAddress == token {
			result = append(result, *in)
		}
	}
	return result, nil
}

// UpdateInstruction replaces the content of an instruction by id.
func (m *MemStore) UpdateInstruction(ctx context.Context, id int64, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, in := range m.instructions {
		if in.ID == id {
			in.Content = content
			return nil
		}
	}
	return ErrNotFound
}

// DeleteInstruction removes an instruction by id.
func (m *MemStore) DeleteInstruction(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, in := range m.instructions {
		if in.ID == id {
			m.instructions = append(m.instructions[:i], m.instructions[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// AppendTurn appends a user/assistant message pair atomically.
func (m *MemStore) AppendTurn(ctx context.Context, tokenAddress, userAddress, userMsg, assistantMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.TurnFailure != nil {
		err := m.TurnFailure
		m.TurnFailure = nil
		return err
	}

	token := CanonicalAddress(tokenAddress)
	user := CanonicalAddress(userAddress)
	key := token + ":" + user
	now := time.Now()

	pair := []*Message{
		{ID: m.nextMsgID, TokenAddress: token, UserAddress: user, Role: RoleUser, Content: userMsg, CreatedAt: now},
		{ID: m.nextMsgID + 1, TokenAddress: token, UserAddress: user, Role: RoleAssistant, Content: assistantMsg, CreatedAt: now},
	}
	m.nextMsgID += 2
	m.messages[key] = append(m.messages[key], pair...)
	return nil
}

// ListMessages returns the (agent, user) history in insertion order.
func (m *MemStore) ListMessages(ctx context.Context, tokenAddress, userAddress string) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := CanonicalAddress(tokenAddress) + ":" + CanonicalAddress(userAddress)
	result := []Message{}
	for _, msg := range m.messages[key] {
		result = append(result, *msg)
	}
	return result, nil
}

// UpsertMember records a member, no-oping on a known tgid.
func (m *MemStore) UpsertMember(ctx context.Context, tgid int64, tgname string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.members[tgid]; ok {
		return nil
	}
	m.members[tgid] = &Member{TGID: tgid, TGName: tgname, CreatedAt: time.Now()}
	return nil
}

// VerifyMember records KYC details by Telegram handle and returns the tgid.
func (m *MemStore) VerifyMember(ctx context.Context, tgname, ckbAddress string, balance int64, dob string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mem := range m.members {
		if mem.TGName == tgname {
			mem.CKBAddress = CanonicalAddress(ckbAddress)
			mem.Balance = balance
			mem.DOB = dob
			return mem.TGID, nil
		}
	}
	return 0, ErrNotFound
}
