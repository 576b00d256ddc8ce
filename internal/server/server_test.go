// ABOUTME: End-to-end HTTP tests for the v1 and v2 API surfaces
// ABOUTME: Runs the full handler stack against the in-memory store and a fake invoker

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UTXO-Global/utxo-global-tgbot/internal/chat"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/model"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/store"
)

const testAppKey = "test-app-key"

// echoInvoker replies with a fixed prefix plus the last user message.
type echoInvoker struct {
	err error
}

func (e *echoInvoker) Invoke(ctx context.Context, messages []model.ChatMessage) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return "echo: " + messages[len(messages)-1].Content, nil
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	chatIDs []int64
	texts   []string
}

func (n *recordingNotifier) Send(chatID int64, text string) {
	n.chatIDs = append(n.chatIDs, chatID)
	n.texts = append(n.texts, text)
}

type testEnv struct {
	store    *store.MemStore
	invoker  *echoInvoker
	notifier *recordingNotifier
	handler  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemStore()
	invoker := &echoInvoker{}
	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	chatSvc := chat.New(st, invoker, logger)
	srv := New(":0", st, chatSvc, notifier, testAppKey, logger)
	return &testEnv{
		store:    st,
		invoker:  invoker,
		notifier: notifier,
		handler:  srv.Handler(),
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func withKey() map[string]string {
	return map[string]string{"x-app-key": testAppKey}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestV2Chat_MissingAppKey(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v2/chat?token_address=t1&user_address=u1", ChatRequest{Msg: "hi"}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `{"error":"Missing x-app-key"}`, rec.Body.String())

	// The gate fired before any store access.
	messages, err := env.store.ListMessages(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestV2Chat_InvalidAppKey(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v2/chat?token_address=t1&user_address=u1",
		ChatRequest{Msg: "hi"}, map[string]string{"x-app-key": "wrong"})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, `{"error":"Invalid x-app-key"}`, rec.Body.String())
}

func TestV2Instructions_CRUD(t *testing.T) {
	env := newTestEnv(t)

	// Create
	rec := env.do(t, http.MethodPost, "/v2/instructions", AddInstructionRequest{
		TokenAddress: "abc",
		Instruction:  "Be polite",
		OwnerAddress: "owner1",
	}, withKey())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[successResponse](t, rec).Success)

	// Case-varied read confirms canonicalization.
	rec = env.do(t, http.MethodGet, "/v2/instructions?token_address=ABC", nil, withKey())
	require.Equal(t, http.StatusOK, rec.Code)
	instructions := decodeBody[[]InstructionResponse](t, rec)
	require.Len(t, instructions, 1)
	assert.Equal(t, "Be polite", instructions[0].Content)
	id := instructions[0].ID

	// Update
	rec = env.do(t, http.MethodPatch, "/v2/instructions", UpdateInstructionRequest{
		InstructionID: id,
		Instruction:   "Be extremely polite",
	}, withKey())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v2/instructions?token_address=abc", nil, withKey())
	instructions = decodeBody[[]InstructionResponse](t, rec)
	require.Len(t, instructions, 1)
	assert.Equal(t, "Be extremely polite", instructions[0].Content)

	// Delete
	rec = env.do(t, http.MethodDelete, "/v2/instructions", DeleteInstructionRequest{InstructionID: id}, withKey())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v2/instructions?token_address=abc", nil, withKey())
	assert.Empty(t, decodeBody[[]InstructionResponse](t, rec))
}

func TestV2Instructions_UnknownIDIs404(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPatch, "/v2/instructions", UpdateInstructionRequest{
		InstructionID: 999,
		Instruction:   "anything",
	}, withKey())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decodeBody[errorResponse](t, rec).Error)

	rec = env.do(t, http.MethodDelete, "/v2/instructions", DeleteInstructionRequest{InstructionID: 999}, withKey())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestV2Instructions_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		target string
		body   any
	}{
		{"list without token", http.MethodGet, "/v2/instructions", nil},
		{"add without token", http.MethodPost, "/v2/instructions", AddInstructionRequest{Instruction: "x", OwnerAddress: "o"}},
		{"add without instruction", http.MethodPost, "/v2/instructions", AddInstructionRequest{TokenAddress: "t", OwnerAddress: "o"}},
		{"add without owner", http.MethodPost, "/v2/instructions", AddInstructionRequest{TokenAddress: "t", Instruction: "x"}},
		{"update without id", http.MethodPatch, "/v2/instructions", UpdateInstructionRequest{Instruction: "x"}},
		{"delete without id", http.MethodDelete, "/v2/instructions", DeleteInstructionRequest{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.target, tt.body, withKey())
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Validation error", decodeBody[errorResponse](t, rec).Error)
		})
	}
}

func TestV2Chat_TwoTurns(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v2/chat?token_address=t1&user_address=u1", ChatRequest{Msg: "hi"}, withKey())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "echo: hi", decodeBody[ChatResponse](t, rec).Response)

	rec = env.do(t, http.MethodPost, "/v2/chat?token_address=t1&user_address=u1", ChatRequest{Msg: "bye"}, withKey())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v2/chat?token_address=t1&user_address=u1", nil, withKey())
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[HistoryResponse](t, rec)
	require.Len(t, history.Messages, 4)
	assert.Equal(t, model.ChatMessage{Role: "user", Content: "hi"}, history.Messages[0])
	assert.Equal(t, model.ChatMessage{Role: "assistant", Content: "echo: hi"}, history.Messages[1])
	assert.Equal(t, model.ChatMessage{Role: "user", Content: "bye"}, history.Messages[2])
	assert.Equal(t, model.ChatMessage{Role: "assistant", Content: "echo: bye"}, history.Messages[3])
}

func TestV2Chat_UserIsolation(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/v2/chat?token_address=t1&user_address=u1", ChatRequest{Msg: "from u1"}, withKey())
	env.do(t, http.MethodPost, "/v2/chat?token_address=t1&user_address=u2", ChatRequest{Msg: "from u2"}, withKey())

	rec := env.do(t, http.MethodGet, "/v2/chat?token_address=t1&user_address=u1", nil, withKey())
	history := decodeBody[HistoryResponse](t, rec)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "from u1", history.Messages[0].Content)
}

func TestV2Chat_InvocationFailure(t *testing.T) {
	env := newTestEnv(t)
	env.invoker.err = errors.New("model unavailable")

	rec := env.do(t, http.MethodPost, "/v2/chat?token_address=t1&user_address=u1", ChatRequest{Msg: "hi"}, withKey())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "Internal server error", body.Error)
	assert.Equal(t, "Something wrong!", body.Message)

	// Nothing was committed for the failed turn.
	messages, err := env.store.ListMessages(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestV2Agents_Reserved(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v2/agents", nil, withKey())

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	body := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "Not Implemented", body.Error)
	assert.Equal(t, "This feature is not implemented yet.", body.Message)
}

func TestV1NewAgentAndChat_SharedThread(t *testing.T) {
	env := newTestEnv(t)

	// v1 routes need no app key.
	rec := env.do(t, http.MethodPost, "/new-agent", NewAgentRequest{Topic: "CKB trivia"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	agentID := decodeBody[NewAgentResponse](t, rec).AgentID
	require.NotEmpty(t, agentID)

	// The topic became the agent's single instruction.
	instructions, err := env.store.ListInstructions(context.Background(), agentID)
	require.NoError(t, err)
	require.Len(t, instructions, 1)
	assert.Equal(t, "CKB trivia", instructions[0].Content)

	rec = env.do(t, http.MethodPost, "/chat?agent_id="+agentID, ChatRequest{Msg: "hello"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "echo: hello", decodeBody[ChatResponse](t, rec).Response)

	rec = env.do(t, http.MethodGet, "/chat?agent_id="+agentID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[HistoryResponse](t, rec)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "hello", history.Messages[0].Content)
}

func TestV1Chat_MissingAgentID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/chat", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestV1Chat_UnknownAgentID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/chat?agent_id=does-not-exist", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestV1NewAgent_MissingTopic(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/new-agent", NewAgentRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestV1Verify(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.UpsertMember(context.Background(), 42, "alice"))

	rec := env.do(t, http.MethodPost, "/v1/verify", VerifyRequest{
		Telegram:   "alice",
		CKBAddress: "ckb1QYQ",
		Signature:  "0xsigned",
		DOB:        "1990/01/01",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[successResponse](t, rec).Success)

	require.Len(t, env.notifier.chatIDs, 1)
	assert.Equal(t, int64(42), env.notifier.chatIDs[0])
	assert.Contains(t, env.notifier.texts[0], "passed KYC")
}

func TestV1Verify_UnknownMember(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/verify", VerifyRequest{
		Telegram:   "nobody",
		CKBAddress: "ckb1xyz",
		Signature:  "0xsigned",
		DOB:        "1990/01/01",
	}, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, env.notifier.chatIDs)
}

func TestV1Verify_Validation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/verify", VerifyRequest{Telegram: "alice"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(decodeBody[errorResponse](t, rec).Message, "ckb_address"))
}

func TestInvalidJSONBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v2/instructions", strings.NewReader("{not json"))
	req.Header.Set("x-app-key", testAppKey)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
