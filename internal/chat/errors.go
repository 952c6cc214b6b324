package chat

import (
	"errors"
	"fmt"

	"github.com/leonvanzyl/autocoder-chat/internal/ws"
)

var (
	// ErrNotConnected is returned by actions that need an open connection
	ErrNotConnected = ws.ErrNotConnected

	ErrConnectionTimeout  = errors.New("connection timeout")
	ErrReconnectExhausted = errors.New("reconnection attempts exhausted")
	ErrDisconnected       = errors.New("session disconnected")
	ErrClosed             = errors.New("session closed")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrUnknownSuggestion  = errors.New("no pending suggestion with that index")
	ErrNoStore            = errors.New("no conversation store configured")
	ErrSessionComplete    = errors.New("session is complete")
)

// TransportError is a socket-level open or send failure
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is an inbound frame that could not be decoded
type ProtocolError struct {
	Frame string
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %v: %q", e.Err, e.Frame)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ServerError is an error reported by the server in an error frame
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server: " + e.Message
}

// protocolError truncates the offending frame for logs
func protocolError(data []byte, err error) *ProtocolError {
	const maxFrame = 256
	frame := string(data)
	if len(frame) > maxFrame {
		frame = frame[:maxFrame] + "..."
	}
	return &ProtocolError{Frame: frame, Err: err}
}
