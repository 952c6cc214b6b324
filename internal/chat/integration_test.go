package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/leonvanzyl/autocoder-chat/internal/infrastructure/resilience"
	"github.com/leonvanzyl/autocoder-chat/internal/shared/types"
	"github.com/leonvanzyl/autocoder-chat/internal/ws"
	"github.com/leonvanzyl/autocoder-chat/tests/helpers/testutil"
)

func liveOptions(t *testing.T, srv *testutil.ChatServer) Options {
	return Options{
		BaseURL: srv.URL(),
		Scope:   "my project",
		Dialer:  ws.NewDialer(time.Second, 1<<20),
		Logger:  zaptest.NewLogger(t),
		Reconnect: resilience.Settings{
			BaseDelay:   10 * time.Millisecond,
			MaxDelay:    40 * time.Millisecond,
			MaxAttempts: 3,
		},
		ConnectTimeout:    2 * time.Second,
		KeepaliveInterval: time.Hour,
	}
}

func TestLiveAssistantConversation(t *testing.T) {
	srv := testutil.NewChatServer(t)
	srv.OnFrame = func(s *testutil.ChatServer, f testutil.Frame) {
		switch f.Type() {
		case "start":
			_ = s.Send(map[string]any{"type": "conversation_created", "conversation_id": 8})
		case "message":
			content, _ := f["content"].(string)
			for _, word := range strings.Fields("you said " + content) {
				_ = s.Send(map[string]any{"type": "text", "content": word + " "})
			}
			_ = s.Send(map[string]any{"type": "response_done"})
		}
	}

	a, err := NewAssistant(liveOptions(t, srv))
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Start(context.Background(), ""))
	eventually(t, func() bool { return a.ConversationID() == "8" }, "conversation not created")
	assert.Equal(t, []string{"/api/assistant/ws/my%20project"}, srv.Paths())

	require.NoError(t, a.SendMessage("hello"))
	eventually(t, func() bool { return !a.IsLoading() }, "response never finished")

	msgs := a.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, types.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "you said hello ", msgs[1].Content)
	assert.False(t, msgs[1].IsStreaming)
}

func TestLiveReconnectResumes(t *testing.T) {
	srv := testutil.NewChatServer(t)
	srv.OnFrame = func(s *testutil.ChatServer, f testutil.Frame) {
		if f.Type() == "start" {
			_ = s.Send(map[string]any{"type": "conversation_created", "conversation_id": 21})
		}
	}

	a, err := NewAssistant(liveOptions(t, srv))
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Start(context.Background(), ""))
	srv.WaitForConnection(t, time.Second)
	srv.WaitForFrame(t, "start", time.Second)
	eventually(t, func() bool { return a.ConversationID() == "21" }, "conversation not created")

	srv.DropConnections()

	srv.WaitForConnection(t, 2*time.Second)
	resume := srv.WaitForFrame(t, "resume", 2*time.Second)
	assert.Equal(t, float64(21), resume["conversation_id"])
	eventually(t, func() bool { return a.Status() == types.StatusConnected }, "never reconnected")
	assert.Zero(t, a.State().ReconnectAttempts)
}

func TestLiveReconnectExhausted(t *testing.T) {
	srv := testutil.NewChatServer(t)

	rec := &recorder{}
	opts := liveOptions(t, srv)
	opts.OnError = rec.onError

	a, err := NewAssistant(opts)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Start(context.Background(), ""))
	srv.WaitForConnection(t, time.Second)

	srv.RejectUpgrades(true)
	srv.DropConnections()

	eventually(t, func() bool { return a.Status() == types.StatusError }, "never gave up")
	errs := rec.errors()
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[len(errs)-1], ErrReconnectExhausted)
}

func TestLiveStartRejected(t *testing.T) {
	srv := testutil.NewChatServer(t)
	srv.RejectUpgrades(true)

	opts := liveOptions(t, srv)
	opts.ConnectTimeout = 150 * time.Millisecond
	opts.Reconnect.MaxAttempts = 0

	e, err := NewExpand(opts)
	require.NoError(t, err)
	defer e.Close()

	err = e.Start(context.Background(), "")
	require.Error(t, err)
	assert.NotEqual(t, types.StatusConnected, e.Status())
}
