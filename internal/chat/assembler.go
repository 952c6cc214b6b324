package chat

import (
	"time"

	"github.com/leonvanzyl/autocoder-chat/internal/protocol"
	"github.com/leonvanzyl/autocoder-chat/internal/shared/types"
)

// Assembler folds inbound frames into the display message list.
// At most one message is streaming at a time. It is not safe for
// concurrent use; the owning session serialises access.
type Assembler struct {
	messages []types.ChatMessage
	tools    *ToolDescriber
	newID    func() string
	now      func() time.Time
}

// NewAssembler creates an empty assembler
func NewAssembler(tools *ToolDescriber, newID func() string, now func() time.Time) *Assembler {
	if tools == nil {
		tools = DefaultToolDescriber()
	}
	if now == nil {
		now = time.Now
	}
	return &Assembler{
		tools: tools,
		newID: newID,
		now:   now,
	}
}

// Messages returns a copy of the message list
func (a *Assembler) Messages() []types.ChatMessage {
	out := make([]types.ChatMessage, len(a.messages))
	for i, m := range a.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of messages
func (a *Assembler) Len() int {
	return len(a.messages)
}

// streaming returns the index of the streaming assistant message, or -1.
// Tool call notes may follow it, so the whole list is scanned from the end.
func (a *Assembler) streaming() int {
	for i := len(a.messages) - 1; i >= 0; i-- {
		if a.messages[i].IsStreaming && a.messages[i].Role == types.RoleAssistant {
			return i
		}
	}
	return -1
}

// Text appends a fragment to the streaming message, starting one if needed
func (a *Assembler) Text(fragment string) {
	if i := a.streaming(); i >= 0 {
		a.messages[i].Content += fragment
		return
	}

	a.messages = append(a.messages, types.ChatMessage{
		ID:          a.newID(),
		Role:        types.RoleAssistant,
		Content:     fragment,
		Timestamp:   a.now(),
		IsStreaming: true,
	})
}

// ToolCall records a tool invocation as a system note.
// The streaming message, if any, keeps streaming.
func (a *Assembler) ToolCall(name string, input any) {
	a.AddSystem(a.tools.Describe(name, input))
}

// Finalize ends the streaming message. It reports whether one was streaming.
func (a *Assembler) Finalize() bool {
	i := a.streaming()
	if i < 0 {
		return false
	}
	a.messages[i].IsStreaming = false
	return true
}

// AddUser appends a user message
func (a *Assembler) AddUser(content string, attachments []types.ImageAttachment) types.ChatMessage {
	msg := types.ChatMessage{
		ID:          a.newID(),
		Role:        types.RoleUser,
		Content:     content,
		Attachments: append([]types.ImageAttachment(nil), attachments...),
		Timestamp:   a.now(),
	}
	if len(msg.Attachments) == 0 {
		msg.Attachments = nil
	}
	a.messages = append(a.messages, msg)
	return msg.Clone()
}

// AddSystem appends a system note
func (a *Assembler) AddSystem(content string) types.ChatMessage {
	msg := types.ChatMessage{
		ID:        a.newID(),
		Role:      types.RoleSystem,
		Content:   content,
		Timestamp: a.now(),
	}
	a.messages = append(a.messages, msg)
	return msg
}

// Error finalizes any streaming message and appends the error as a system note
func (a *Assembler) Error(text string) {
	a.Finalize()
	a.AddSystem("Error: " + text)
}

// ReplaceHistory swaps the whole list for persisted messages.
// Unparseable timestamps fall back to the receive time.
func (a *Assembler) ReplaceHistory(history []protocol.HistoryMessage) {
	received := a.now()
	messages := make([]types.ChatMessage, 0, len(history))
	for _, h := range history {
		role := types.Role(h.Role)
		if !role.Valid() {
			role = types.RoleSystem
		}
		messages = append(messages, types.ChatMessage{
			ID:        a.newID(),
			Role:      role,
			Content:   h.Content,
			Timestamp: protocol.ParseTimestamp(h.Timestamp, received),
		})
	}
	a.messages = messages
}

// Reset drops every message
func (a *Assembler) Reset() {
	a.messages = nil
}
