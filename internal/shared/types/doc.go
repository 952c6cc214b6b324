// Package types provides shared data structures for the chat session client.
//
// This package defines the display-side model that session controllers own
// and hand to their callers as snapshots.
//
// Core Types:
//   - ChatMessage: One entry in a session's message list
//   - ImageAttachment: Base64 image descriptor attached to a user message
//   - ConnectionStatus: Transport status surfaced to the UI
//   - PendingSuggestion: Feature suggestion awaiting accept/reject
//   - CreatedFeature: Feature reported by an expansion session
//
// Example Usage:
//
//	msg := types.ChatMessage{
//	    ID:        string(id.NewMessageID()),
//	    Role:      types.RoleUser,
//	    Content:   "add login",
//	    Timestamp: time.Now(),
//	}
package types
