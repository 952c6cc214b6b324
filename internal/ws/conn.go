package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the server.
	writeWait = 10 * time.Second

	// Time allowed for the close handshake frame.
	closeWait = time.Second
)

var ErrNotConnected = errors.New("not connected")

// Conn is one open streaming connection
type Conn interface {
	// ReadMessage blocks until the next frame or a transport error
	ReadMessage() ([]byte, error)
	// WriteMessage sends one frame; safe for concurrent use
	WriteMessage(data []byte) error
	// Close tears the connection down; safe to call more than once
	Close() error
}

// Dialer opens connections
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket
type WebsocketDialer struct {
	dialer         *websocket.Dialer
	maxMessageSize int64
}

// NewDialer creates a websocket dialer. maxMessageSize <= 0 leaves reads unbounded.
func NewDialer(handshakeTimeout time.Duration, maxMessageSize int64) *WebsocketDialer {
	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			Proxy:             websocket.DefaultDialer.Proxy,
			HandshakeTimeout:  handshakeTimeout,
			EnableCompression: true,
		},
		maxMessageSize: maxMessageSize,
	}
}

// Dial opens a websocket connection to url
func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("ws dial failed: %w", err)
	}

	if d.maxMessageSize > 0 {
		conn.SetReadLimit(d.maxMessageSize)
	}

	return &wsConn{conn: conn}, nil
}

// wsConn adapts *websocket.Conn to Conn
type wsConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex // gorilla allows one concurrent writer
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		// Best effort: the peer may already be gone
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWait),
		)
		c.writeMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// IsNormalClose reports whether err is a clean close initiated by the server
func IsNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
