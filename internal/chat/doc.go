// Package chat implements the chat session protocol client.
//
// A Session owns one streaming connection to the chat server and folds
// the frames it receives into a display message list. It reconnects with
// bounded exponential backoff after unexpected closes, keeps the
// connection alive with periodic pings and resumes persisted
// conversations.
//
// Variants:
//   - Assistant: project assistant with conversation switching
//   - Expand: project expansion, ends with expansion_complete
//   - Features: chat-to-features with accept/reject of suggestions
//
// Every transition runs under the session lock through handleEvent or an
// action; OnChange and OnError observers run after the lock is released
// and must not call Close.
//
// Example Usage:
//
//	a, err := chat.NewAssistant(chat.Options{
//	    BaseURL:  "http://localhost:8888",
//	    Scope:    "my-project",
//	    OnChange: render,
//	})
//	if err := a.Start(ctx, ""); err != nil { ... }
//	a.SendMessage("add a login page")
//	defer a.Close()
package chat
