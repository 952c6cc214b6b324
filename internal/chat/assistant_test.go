package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leonvanzyl/autocoder-chat/internal/conversations"
	"github.com/leonvanzyl/autocoder-chat/internal/shared/types"
	"github.com/leonvanzyl/autocoder-chat/tests/helpers/testutil"
)

func TestSwitchConversationResumes(t *testing.T) {
	h := newHarness(t)
	store := testutil.NewMockConversationStore(t)
	store.On("Get", mock.Anything, "demo", "12").Return(&conversations.Detail{
		Conversation: conversations.Conversation{ID: "12", ProjectName: "demo"},
		Messages: []conversations.Message{
			{ID: 1, Role: "user", Content: "add login", Timestamp: "2025-01-01T10:00:00Z"},
			{ID: 2, Role: "assistant", Content: "Added.", Timestamp: "2025-01-01T10:00:05Z"},
		},
	}, nil).Once()
	h.opts.Store = store

	a := newTestAssistant(t, h)

	errCh := make(chan error, 1)
	go func() { errCh <- a.SwitchConversation(context.Background(), "12") }()

	c := h.dialer.conn(t)
	assert.Equal(t, map[string]any{"type": "resume", "conversation_id": float64(12)}, c.next(t))
	require.NoError(t, <-errCh)

	st := a.State()
	assert.Equal(t, "12", st.ConversationID)
	require.Len(t, st.Messages, 2)
	assert.Equal(t, "add login", st.Messages[0].Content)
	assert.Equal(t, types.RoleAssistant, st.Messages[1].Role)
	store.AssertExpectations(t)
}

func TestSwitchConversationEmptyHistoryStarts(t *testing.T) {
	h := newHarness(t)
	store := testutil.NewMockConversationStore(t)
	store.On("Get", mock.Anything, "demo", "3").Return(&conversations.Detail{
		Conversation: conversations.Conversation{ID: "3"},
	}, nil).Once()
	h.opts.Store = store

	a := newTestAssistant(t, h)
	c, _ := h.start(t, a.Session, "")
	c.push(`{"type":"text","content":"old"}`)
	eventually(t, func() bool { return len(a.Messages()) == 1 }, "frame not processed")

	errCh := make(chan error, 1)
	go func() { errCh <- a.SwitchConversation(context.Background(), "3") }()

	next := h.dialer.conn(t)
	assert.Equal(t, map[string]any{"type": "start", "conversation_id": float64(3)}, next.next(t))
	require.NoError(t, <-errCh)
	assert.Empty(t, a.Messages())
}

func TestSwitchConversationLoadFailure(t *testing.T) {
	h := newHarness(t)
	store := testutil.NewMockConversationStore(t)
	store.On("Get", mock.Anything, "demo", "99").Return(nil, conversations.ErrNotFound).Once()
	h.opts.Store = store

	a := newTestAssistant(t, h)
	h.start(t, a.Session, "")

	err := a.SwitchConversation(context.Background(), "99")
	assert.ErrorIs(t, err, conversations.ErrNotFound)
	assert.Equal(t, types.StatusDisconnected, a.Status())

	eventually(t, func() bool {
		errs := h.rec.errors()
		return len(errs) > 0 && errors.Is(errs[len(errs)-1], conversations.ErrNotFound)
	}, "load failure not reported")
}

func TestSwitchConversationWithoutStore(t *testing.T) {
	h := newHarness(t)
	a := newTestAssistant(t, h)

	assert.ErrorIs(t, a.SwitchConversation(context.Background(), "1"), ErrNoStore)
	_, err := a.ListConversations(context.Background())
	assert.ErrorIs(t, err, ErrNoStore)
	assert.ErrorIs(t, a.DeleteConversation(context.Background(), "1"), ErrNoStore)
}

func TestListConversations(t *testing.T) {
	h := newHarness(t)
	store := testutil.NewMockConversationStore(t)
	h.opts.Store = store

	a := newTestAssistant(t, h)
	convs, err := a.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, convs)
	store.AssertCalled(t, "List", mock.Anything, "demo")
}

func TestDeleteConversation(t *testing.T) {
	h := newHarness(t)
	store := testutil.NewMockConversationStore(t)
	store.On("Delete", mock.Anything, "demo", "4").Return(nil).Once()
	store.On("Delete", mock.Anything, "demo", "5").Return(errors.New("locked")).Once()
	h.opts.Store = store

	a := newTestAssistant(t, h)
	c, _ := h.start(t, a.Session, "")
	c.push(`{"type":"conversation_created","conversation_id":4}`)
	eventually(t, func() bool { return a.ConversationID() == "4" }, "conversation not created")

	assert.Error(t, a.DeleteConversation(context.Background(), "5"))
	assert.Equal(t, "4", a.ConversationID())

	errCh := make(chan error, 1)
	go func() { errCh <- a.DeleteConversation(context.Background(), "4") }()
	assert.Equal(t, map[string]any{"type": "start"}, h.dialer.conn(t).next(t))
	require.NoError(t, <-errCh)
	assert.Empty(t, a.ConversationID())

	store.AssertExpectations(t)
}
