// ABOUTME: Tests for the chat turn service
// ABOUTME: Covers the assemble-invoke-persist flow and failure behavior

package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UTXO-Global/utxo-global-tgbot/internal/model"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/store"
)

// fakeInvoker records the context it was handed and returns a canned reply.
type fakeInvoker struct {
	received []model.ChatMessage
	reply    string
	err      error
}

func (f *fakeInvoker) Invoke(ctx context.Context, messages []model.ChatMessage) (string, error) {
	f.received = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestService_Respond(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()

	_, err := st.AddInstruction(ctx, "t1", "owner", "Be brief")
	require.NoError(t, err)
	require.NoError(t, st.AppendTurn(ctx, "t1", "u1", "hi", "hello!"))

	invoker := &fakeInvoker{reply: "fine, thanks"}
	svc := New(st, invoker, nil)

	reply, err := svc.Respond(ctx, "t1", "u1", "how are you?")
	require.NoError(t, err)
	assert.Equal(t, "fine, thanks", reply)

	// The invoker saw system + 2 history entries + new input.
	require.Len(t, invoker.received, 4)
	assert.Equal(t, "system", invoker.received[0].Role)
	assert.Equal(t, "Be brief", invoker.received[0].Content)
	assert.Equal(t, model.ChatMessage{Role: "user", Content: "how are you?"}, invoker.received[3])

	// The turn was persisted after the reply.
	messages, err := st.ListMessages(ctx, "t1", "u1")
	require.NoError(t, err)
	require.Len(t, messages, 4)
	assert.Equal(t, "how are you?", messages[2].Content)
	assert.Equal(t, store.RoleUser, messages[2].Role)
	assert.Equal(t, "fine, thanks", messages[3].Content)
	assert.Equal(t, store.RoleAssistant, messages[3].Role)
}

func TestService_Respond_InvocationFailureWritesNothing(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()

	invoker := &fakeInvoker{err: errors.New("model timeout")}
	svc := New(st, invoker, nil)

	_, err := svc.Respond(ctx, "t1", "u1", "hi")
	require.Error(t, err)

	messages, err := st.ListMessages(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Empty(t, messages, "failed invocation must not leave history behind")
}

func TestService_Respond_PersistFailureSurfaces(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()
	st.TurnFailure = errors.New("db gone")

	svc := New(st, &fakeInvoker{reply: "ok"}, nil)

	_, err := svc.Respond(ctx, "t1", "u1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persisting turn")
}

func TestService_History_RoleLabels(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()
	require.NoError(t, st.AppendTurn(ctx, "t1", "u1", "hi", "hello!"))

	svc := New(st, &fakeInvoker{}, nil)

	history, err := svc.History(ctx, "t1", "u1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.ChatMessage{Role: "user", Content: "hi"}, history[0])
	assert.Equal(t, model.ChatMessage{Role: "assistant", Content: "hello!"}, history[1])
}

func TestService_History_Empty(t *testing.T) {
	svc := New(store.NewMemStore(), &fakeInvoker{}, nil)

	history, err := svc.History(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Empty(t, history)
}
