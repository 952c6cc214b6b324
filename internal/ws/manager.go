package ws

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/leonvanzyl/autocoder-chat/internal/infrastructure/logging"
	"github.com/leonvanzyl/autocoder-chat/internal/protocol"
	"github.com/leonvanzyl/autocoder-chat/internal/shared/types"
)

// Handlers receive connection events. Each carries the generation of the
// connection it belongs to; callers compare it with Current to drop events
// from a connection they have since closed or replaced.
// Handlers are never called with the manager lock held.
type Handlers struct {
	OnOpen    func(gen uint64)
	OnMessage func(gen uint64, data []byte)
	OnClose   func(gen uint64, err error)
}

// Manager owns at most one connection at a time
type Manager struct {
	dialer   Dialer
	handlers Handlers
	logger   *zap.Logger

	mu         sync.Mutex
	status     types.ConnectionStatus
	conn       Conn
	gen        uint64
	cancelDial context.CancelFunc

	wg sync.WaitGroup
}

// NewManager creates a connection manager
func NewManager(dialer Dialer, handlers Handlers, logger *zap.Logger) *Manager {
	return &Manager{
		dialer:   dialer,
		handlers: handlers,
		logger:   logging.OrNop(logger),
		status:   types.StatusDisconnected,
	}
}

// Open starts connecting to url. It is a no-op returning false while a
// connection is open or being opened.
func (m *Manager) Open(url string) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == types.StatusConnecting || m.status == types.StatusConnected {
		return m.gen, false
	}

	m.gen++
	gen := m.gen
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel
	m.status = types.StatusConnecting

	m.wg.Add(1)
	go m.run(ctx, cancel, gen, url)

	return gen, true
}

// run dials, then reads until the connection ends
func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, gen uint64, url string) {
	defer m.wg.Done()

	conn, err := m.dialer.Dial(ctx, url)
	cancel()

	m.mu.Lock()
	if gen != m.gen {
		// Closed or replaced while dialing
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	m.cancelDial = nil

	if err != nil {
		m.status = types.StatusDisconnected
		m.mu.Unlock()

		m.logger.Debug("dial failed", zap.String("url", url), zap.Error(err))
		m.notifyClose(gen, err)
		return
	}

	m.conn = conn
	m.status = types.StatusConnected
	m.mu.Unlock()

	m.logger.Debug("connection open", zap.String("url", url), zap.Uint64("gen", gen))
	if m.handlers.OnOpen != nil {
		m.handlers.OnOpen(gen)
	}

	m.readLoop(gen, conn)
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			if gen != m.gen {
				m.mu.Unlock()
				return
			}
			m.conn = nil
			m.status = types.StatusDisconnected
			m.mu.Unlock()

			_ = conn.Close()
			m.logger.Debug("connection closed", zap.Uint64("gen", gen), zap.Error(err))
			m.notifyClose(gen, err)
			return
		}

		if !m.Current(gen) {
			return
		}
		if m.handlers.OnMessage != nil {
			m.handlers.OnMessage(gen, data)
		}
	}
}

func (m *Manager) notifyClose(gen uint64, err error) {
	if m.handlers.OnClose != nil {
		m.handlers.OnClose(gen, err)
	}
}

// Close tears down the current connection or dial. No OnClose is delivered
// for it: the caller initiated the close.
func (m *Manager) Close() {
	m.mu.Lock()
	m.gen++
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	conn := m.conn
	m.conn = nil
	m.status = types.StatusDisconnected
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			m.logger.Debug("close failed", zap.Error(err))
		}
	}
}

// Send encodes and writes a frame. It returns ErrNotConnected without
// touching the wire when no connection is open.
func (m *Manager) Send(f protocol.Frame) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.status == types.StatusConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	data, err := protocol.Encode(f)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(data); err != nil {
		return fmt.Errorf("send %s: %w", f.FrameType(), err)
	}
	return nil
}

// Status returns the connection status
func (m *Manager) Status() types.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Current reports whether gen is the live connection generation
func (m *Manager) Current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

// Wait blocks until every dial and read goroutine has exited.
// Call it after Close, never from a handler.
func (m *Manager) Wait() {
	m.wg.Wait()
}
