// ABOUTME: Postgres implementation of the Store interface using pgxpool
// ABOUTME: Provides agent/instruction/message persistence with automatic schema creation

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface on a pgx connection pool.
// Connections are acquired per operation and released on every exit path,
// so concurrent requests never contend on a single shared handle.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects to the database at the given URL and ensures
// the schema exists.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	logger := slog.Default().With("component", "store")

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("opening database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &PostgresStore{
		pool:   pool,
		logger: logger,
	}

	if err := s.createSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("postgres store initialized")
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *PostgresStore) createSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS agents (
			token_address VARCHAR PRIMARY KEY,
			owner_address VARCHAR NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS agent_instructions (
			id SERIAL PRIMARY KEY,
			token_address VARCHAR NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS agent_instructions_token_address
			ON agent_instructions (token_address);

		CREATE TABLE IF NOT EXISTS agent_messages (
			id SERIAL PRIMARY KEY,
			user_address VARCHAR NOT NULL,
			token_address VARCHAR NOT NULL,
			role SMALLINT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS agent_messages_agent_id
			ON agent_messages (token_address);

		CREATE TABLE IF NOT EXISTS members (
			tgid BIGINT PRIMARY KEY,
			tgname VARCHAR NOT NULL,
			ckb_address VARCHAR,
			balance BIGINT DEFAULT 0,
			dob VARCHAR,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return err
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// EnsureAgent idempotently creates an agent row. The owner stored on first
// creation is never overwritten by later calls.
func (s *PostgresStore) EnsureAgent(ctx context.Context, tokenAddress, ownerAddress string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agents (token_address, owner_address) VALUES ($1, $2)
		 ON CONFLICT (token_address) DO NOTHING`,
		CanonicalAddress(tokenAddress), CanonicalAddress(ownerAddress))
	if err != nil {
		return fmt.Errorf("ensuring agent: %w", err)
	}
	return nil
}

// GetAgent retrieves an agent by token address.
func (s *PostgresStore) GetAgent(ctx context.Context, tokenAddress string) (*Agent, error) {
	var a Agent
	err := s.pool.QueryRow(ctx,
		`SELECT token_address, owner_address, created_at FROM agents WHERE token_address = $1`,
		CanonicalAddress(tokenAddress)).Scan(&a.TokenAddress, &a.OwnerAddress, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting agent: %w", err)
	}
	return &a, nil
}

// AddInstruction ensures the agent exists, then appends an instruction row
// and returns its id.
func (s *PostgresStore) AddInstruction(ctx context.Context, tokenAddress, ownerAddress, content string) (int64, error) {
	if err := s.EnsureAgent(ctx, tokenAddress, ownerAddress); err != nil {
		return 0, err
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO agent_instructions (token_address, content) VALUES ($1, $2) RETURNING id`,
		CanonicalAddress(tokenAddress), content).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("adding instruction: %w", err)
	}

	s.logger.Debug("instruction added", "token_address", CanonicalAddress(tokenAddress), "instruction_id", id)
	return id, nil
}

// ListInstructions returns the agent's instructions in creation order.
// An agent with no instructions (or no agent at all) yields an empty slice.
func (s *PostgresStore) ListInstructions(ctx context.Context, tokenAddress string) ([]Instruction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, token_address, content, created_at FROM agent_instructions
		 WHERE token_address = $1 ORDER BY id ASC`,
		CanonicalAddress(tokenAddress))
	if err != nil {
		return nil, fmt.Errorf("listing instructions: %w", err)
	}
	defer rows.Close()

	instructions := []Instruction{}
	for rows.Next() {
		var in Instruction
		if err := rows.Scan(&in.ID, &in.TokenAddress, &in.Content, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning instruction: %w", err)
		}
		instructions = append(instructions, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating instructions: %w", err)
	}
	return instructions, nil
}

// UpdateInstruction replaces the content of an existing instruction.
// Returns ErrNotFound if no row has that id.
func (s *PostgresStore) UpdateInstruction(ctx context.Context, id int64, content string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agent_instructions SET content = $1 WHERE id = $2`, content, id)
	if err != nil {
		return fmt.Errorf("updating instruction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteInstruction removes an instruction by id.
// Returns ErrNotFound if no row has that id.
func (s *PostgresStore) DeleteInstruction(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM agent_instructions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting instruction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendTurn inserts the user message and the assistant message in a single
// transaction. Readers never observe one row without the other.
func (s *PostgresStore) AppendTurn(ctx context.Context, tokenAddress, userAddress, userMsg, assistantMsg string) error {
	token := CanonicalAddress(tokenAddress)
	user := CanonicalAddress(userAddress)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning turn transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const insert = `INSERT INTO agent_messages (token_address, user_address, role, content) VALUES ($1, $2, $3, $4)`

	if _, err := tx.Exec(ctx, insert, token, user, int16(RoleUser), userMsg); err != nil {
		return fmt.Errorf("inserting user message: %w", err)
	}
	if _, err := tx.Exec(ctx, insert, token, user, int16(RoleAssistant), assistantMsg); err != nil {
		return fmt.Errorf("inserting assistant message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing turn: %w", err)
	}

	s.logger.Debug("turn appended", "token_address", token, "user_address", user)
	return nil
}

// ListMessages returns the (agent, user) history in insertion order.
func (s *PostgresStore) ListMessages(ctx context.Context, tokenAddress, userAddress string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, token_address, user_address, role, content, created_at FROM agent_messages
		 WHERE token_address = $1 AND user_address = $2 ORDER BY id ASC`,
		CanonicalAddress(tokenAddress), CanonicalAddress(userAddress))
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		var role int16
		if err := rows.Scan(&m.ID, &m.TokenAddress, &m.UserAddress, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = Role(role)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}

// UpsertMember records a Telegram member, no-oping if the tgid is already known.
func (s *PostgresStore) UpsertMember(ctx context.Context, tgid int64, tgname string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO members (tgid, tgname) VALUES ($1, $2) ON CONFLICT (tgid) DO NOTHING`,
		tgid, tgname)
	if err != nil {
		return fmt.Errorf("upserting member: %w", err)
	}
	return nil
}

// VerifyMember records KYC details for a member looked up by Telegram handle
// and returns the member's tgid for notification delivery.
func (s *PostgresStore) VerifyMember(ctx context.Context, tgname, ckbAddress string, balance int64, dob string) (int64, error) {
	var tgid int64
	err := s.pool.QueryRow(ctx,
		`UPDATE members SET ckb_address = $2, balance = $3, dob = $4 WHERE tgname = $1 RETURNING tgid`,
		tgname, CanonicalAddress(ckbAddress), balance, dob).Scan(&tgid)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("verifying member: %w", err)
	}
	return tgid, nil
}
