// Package ws provides the streaming transport for chat sessions.
//
// This package owns the client side of the websocket: dialing, reading,
// serialised writes, explicit teardown and keepalive pings. It knows
// nothing about chat semantics; frames arrive as bytes and leave as
// protocol.Frame values.
//
// Components:
//   - Dialer / Conn: transport abstraction, gorilla/websocket implementation
//   - Manager: at most one live connection, status tracking, generation checks
//   - Keepalive: periodic ping while connected
//
// Example Usage:
//
//	mgr := ws.NewManager(ws.NewDialer(10*time.Second, 4<<20), ws.Handlers{
//	    OnOpen:    func(gen uint64) { ... },
//	    OnMessage: func(gen uint64, data []byte) { ... },
//	    OnClose:   func(gen uint64, err error) { ... },
//	}, logger)
//	mgr.Open("ws://localhost:8888/api/assistant/ws/demo")
//	defer mgr.Close()
package ws
