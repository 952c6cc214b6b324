//go:build integration
// +build integration

package integration

import (
	"context"
	"net"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/leonvanzyl/autocoder-chat/internal/chat"
	"github.com/leonvanzyl/autocoder-chat/internal/conversations"
	"github.com/leonvanzyl/autocoder-chat/internal/infrastructure/config"
	"github.com/leonvanzyl/autocoder-chat/internal/shared/types"
)

// liveConfig returns configuration for a running autocoder server.
// Tests are skipped when the server is not reachable or no project is set.
func liveConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping end-to-end test in short mode")
	}

	project := os.Getenv("CHAT_E2E_PROJECT")
	if project == "" {
		t.Skip("CHAT_E2E_PROJECT not set")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	u, err := url.Parse(cfg.Server.BaseURL)
	require.NoError(t, err)
	conn, err := net.DialTimeout("tcp", u.Host, time.Second)
	if err != nil {
		t.Skipf("chat server not reachable at %s: %v", cfg.Server.BaseURL, err)
	}
	conn.Close()

	return cfg, project
}

// TestAssistantEndToEnd covers the full flow:
// connect -> conversation_created -> message -> streamed reply -> REST lookup
func TestAssistantEndToEnd(t *testing.T) {
	cfg, project := liveConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store := conversations.NewClient(conversations.Options{
		BaseURL:      cfg.Server.BaseURL,
		Timeout:      cfg.REST.Timeout,
		RetryMax:     cfg.REST.RetryMax,
		RetryWaitMin: cfg.REST.RetryWaitMin,
		RetryWaitMax: cfg.REST.RetryWaitMax,
		Logger:       zaptest.NewLogger(t),
	})

	opts := chat.OptionsFromConfig(cfg, project)
	opts.Logger = zaptest.NewLogger(t)
	opts.Store = store

	a, err := chat.NewAssistant(opts)
	require.NoError(t, err)
	defer a.Close()

	t.Run("Connect", func(t *testing.T) {
		require.NoError(t, a.Start(ctx, ""))
		assert.Equal(t, types.StatusConnected, a.Status())
	})

	t.Run("Streamed reply", func(t *testing.T) {
		require.NoError(t, a.SendMessage("Reply with the single word: pong"))
		require.Eventually(t, func() bool { return !a.IsLoading() }, 90*time.Second, 100*time.Millisecond)

		msgs := a.Messages()
		require.NotEmpty(t, msgs)
		last := msgs[len(msgs)-1]
		assert.False(t, last.IsStreaming)
		assert.NotEmpty(t, last.Content)
	})

	t.Run("Conversation persisted", func(t *testing.T) {
		require.Eventually(t, func() bool { return a.ConversationID() != "" }, 10*time.Second, 100*time.Millisecond)

		detail, err := store.Get(ctx, project, a.ConversationID())
		require.NoError(t, err)
		assert.NotEmpty(t, detail.Messages)
	})

	t.Run("Switch back", func(t *testing.T) {
		id := a.ConversationID()
		require.NoError(t, a.SwitchConversation(ctx, id))
		assert.Equal(t, id, a.ConversationID())
		assert.NotEmpty(t, a.Messages())
	})
}

// TestFeaturesEndToEnd checks the chat-to-features handshake against a live server
func TestFeaturesEndToEnd(t *testing.T) {
	cfg, project := liveConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	opts := chat.OptionsFromConfig(cfg, project)
	opts.Logger = zaptest.NewLogger(t)

	f, err := chat.NewFeatures(opts)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.Start(ctx, ""))
	assert.Empty(t, f.PendingSuggestions())

	f.Disconnect()
	assert.Equal(t, types.StatusDisconnected, f.Status())
}
