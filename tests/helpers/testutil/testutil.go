// Package testutil provides testing utilities and helpers for chat client tests.
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leonvanzyl/autocoder-chat/internal/conversations"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Frame is a decoded client frame as the server received it
type Frame map[string]any

// Type returns the frame's type discriminator
func (f Frame) Type() string {
	s, _ := f["type"].(string)
	return s
}

// ChatServer is an in-process chat server speaking the session protocol
type ChatServer struct {
	Server *httptest.Server

	// OnFrame, when set, is called for every non-ping frame received
	OnFrame func(s *ChatServer, f Frame)

	mu       sync.Mutex
	conns    []*serverConn
	received []Frame
	paths    []string
	reject   bool
	frameCh  chan Frame
	openCh   chan struct{}
}

type serverConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *serverConn) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// NewChatServer starts a chat server closed at test cleanup
func NewChatServer(t *testing.T) *ChatServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &ChatServer{
		frameCh: make(chan Frame, 256),
		openCh:  make(chan struct{}, 64),
	}

	router := gin.New()
	router.GET("/api/:feature/ws/:scope", s.handleConnection)
	s.Server = httptest.NewServer(router)
	t.Cleanup(s.Close)

	return s
}

// URL returns the server's http base URL
func (s *ChatServer) URL() string {
	return s.Server.URL
}

func (s *ChatServer) handleConnection(c *gin.Context) {
	s.mu.Lock()
	reject := s.reject
	s.mu.Unlock()
	if reject {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	sc := &serverConn{conn: conn}

	s.mu.Lock()
	s.conns = append(s.conns, sc)
	s.paths = append(s.paths, c.Request.URL.EscapedPath())
	s.mu.Unlock()
	s.openCh <- struct{}{}

	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}

		if f.Type() == "ping" {
			_ = sc.write(map[string]any{"type": "pong"})
			continue
		}

		s.mu.Lock()
		s.received = append(s.received, f)
		hook := s.OnFrame
		s.mu.Unlock()

		select {
		case s.frameCh <- f:
		default:
		}

		if hook != nil {
			hook(s, f)
		}
	}
}

// Send writes a frame to the most recent connection
func (s *ChatServer) Send(frame any) error {
	s.mu.Lock()
	if len(s.conns) == 0 {
		s.mu.Unlock()
		return websocket.ErrCloseSent
	}
	sc := s.conns[len(s.conns)-1]
	s.mu.Unlock()

	return sc.write(frame)
}

// SendRaw writes raw bytes to the most recent connection
func (s *ChatServer) SendRaw(data []byte) error {
	s.mu.Lock()
	if len(s.conns) == 0 {
		s.mu.Unlock()
		return websocket.ErrCloseSent
	}
	sc := s.conns[len(s.conns)-1]
	s.mu.Unlock()

	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return sc.conn.WriteMessage(websocket.TextMessage, data)
}

// DropConnections closes every connection without a close handshake
func (s *ChatServer) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for _, sc := range conns {
		_ = sc.conn.NetConn().Close()
	}
}

// RejectUpgrades makes new connection attempts fail with 503
func (s *ChatServer) RejectUpgrades(reject bool) {
	s.mu.Lock()
	s.reject = reject
	s.mu.Unlock()
}

// Frames returns every non-ping frame received so far
func (s *ChatServer) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.received...)
}

// Paths returns the escaped request path of every accepted connection
func (s *ChatServer) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// WaitForConnection blocks until a new connection is accepted
func (s *ChatServer) WaitForConnection(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-s.openCh:
	case <-time.After(timeout):
		t.Fatalf("no connection within %s", timeout)
	}
}

// WaitForFrame blocks until a frame of the given type arrives
func (s *ChatServer) WaitForFrame(t *testing.T, frameType string, timeout time.Duration) Frame {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case f := <-s.frameCh:
			if f.Type() == frameType {
				return f
			}
		case <-deadline:
			t.Fatalf("no %q frame within %s", frameType, timeout)
			return nil
		}
	}
}

// Close shuts the server down
func (s *ChatServer) Close() {
	s.DropConnections()
	s.Server.Close()
}

// MockConversationStore is a mock implementation of the conversation REST client.
type MockConversationStore struct {
	mock.Mock
}

// List mocks the List method.
func (m *MockConversationStore) List(ctx context.Context, project string) ([]conversations.Conversation, error) {
	args := m.Called(ctx, project)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]conversations.Conversation), args.Error(1)
}

// Get mocks the Get method.
func (m *MockConversationStore) Get(ctx context.Context, project, id string) (*conversations.Detail, error) {
	args := m.Called(ctx, project, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*conversations.Detail), args.Error(1)
}

// Delete mocks the Delete method.
func (m *MockConversationStore) Delete(ctx context.Context, project, id string) error {
	args := m.Called(ctx, project, id)
	return args.Error(0)
}

// NewMockConversationStore creates a mock store with no conversations.
func NewMockConversationStore(t *testing.T) *MockConversationStore {
	t.Helper()
	m := new(MockConversationStore)

	m.On("List", mock.Anything, mock.Anything).
		Return([]conversations.Conversation{}, nil).
		Maybe()

	return m
}

// RequireEventually wraps require.Eventually with the intervals chat tests use.
func RequireEventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 10*time.Millisecond, msg)
}
