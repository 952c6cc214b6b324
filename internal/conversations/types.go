package conversations

import (
	"errors"
	"fmt"

	"github.com/leonvanzyl/autocoder-chat/internal/protocol"
)

var (
	ErrNotFound     = errors.New("conversation not found")
	ErrInvalidScope = errors.New("project name is required")
	ErrInvalidID    = errors.New("conversation id is required")
)

// Conversation is a persisted conversation summary
type Conversation struct {
	ID           protocol.ConversationID `json:"id"`
	ProjectName  string                  `json:"project_name"`
	Title        *string                 `json:"title"`
	CreatedAt    string                  `json:"created_at"`
	UpdatedAt    string                  `json:"updated_at"`
	MessageCount int                     `json:"message_count"`
}

// DisplayTitle returns the title or a placeholder for untitled conversations
func (c Conversation) DisplayTitle() string {
	if c.Title == nil || *c.Title == "" {
		return "Untitled conversation"
	}
	return *c.Title
}

// Message is one persisted message
type Message struct {
	ID        int    `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Detail is a conversation with its full message history
type Detail struct {
	Conversation
	Messages []Message `json:"messages"`
}

// deleteResponse is the body returned by DELETE
type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// apiErrorBody is the error shape returned by the server
type apiErrorBody struct {
	Detail string `json:"detail"`
}

// APIError is a non-2xx response
type APIError struct {
	Operation  string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Operation, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Operation, e.StatusCode)
}
