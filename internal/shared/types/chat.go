package types

import "time"

// Role identifies who authored a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// ConnectionStatus represents the transport status shown to the user
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

// ChatMessage is a single display message.
// Content only grows while IsStreaming is true and is fixed afterwards.
type ChatMessage struct {
	ID          string            `json:"id"`
	Role        Role              `json:"role"`
	Content     string            `json:"content"`
	Attachments []ImageAttachment `json:"attachments,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	IsStreaming bool              `json:"is_streaming"`
}

// Clone returns a deep copy safe to hand to callers
func (m ChatMessage) Clone() ChatMessage {
	if len(m.Attachments) > 0 {
		m.Attachments = append([]ImageAttachment(nil), m.Attachments...)
	}
	return m
}

// SuggestedFeature is a feature proposed by the chat-to-features agent
type SuggestedFeature struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Steps       []string `json:"steps,omitempty"`
}

// PendingSuggestion is a suggestion waiting for the user to accept or reject it
type PendingSuggestion struct {
	Index   int              `json:"index"`
	Feature SuggestedFeature `json:"feature"`
}

// CreatedFeature is a feature the expansion agent persisted
type CreatedFeature struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}
