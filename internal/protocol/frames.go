package protocol

import (
	"bytes"
	"strconv"

	"github.com/bytedance/sonic"

	"github.com/leonvanzyl/autocoder-chat/internal/shared/types"
)

// Client frame types
const (
	TypeStart         = "start"
	TypeResume        = "resume"
	TypeMessage       = "message"
	TypePing          = "ping"
	TypeAcceptFeature = "accept_feature"
	TypeRejectFeature = "reject_feature"
	TypeDone          = "done"
)

// Server frame types
const (
	TypeText                = "text"
	TypeToolCall            = "tool_call"
	TypeResponseDone        = "response_done"
	TypeError               = "error"
	TypeConversationCreated = "conversation_created"
	TypePong                = "pong"
	TypeHistory             = "history"
	TypeFeatureSuggestion   = "feature_suggestion"
	TypeFeatureCreated      = "feature_created"
	TypeFeatureRejected     = "feature_rejected"
	TypeFeaturesCreated     = "features_created"
	TypeExpansionComplete   = "expansion_complete"
)

// ConversationID is an opaque server conversation identifier.
// Servers that key conversations by integer send it as a JSON number;
// numeric IDs are written back as numbers.
type ConversationID string

// MarshalJSON writes numeric IDs as numbers and everything else as strings
func (c ConversationID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(c), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(c) {
		return []byte(c), nil
	}
	return sonic.ConfigStd.Marshal(string(c))
}

// UnmarshalJSON accepts a JSON string, number or null
func (c *ConversationID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := sonic.UnmarshalString(string(data), &s); err != nil {
			return err
		}
		*c = ConversationID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return err
	}
	*c = ConversationID(data)
	return nil
}

// Frame is any client frame
type Frame interface {
	FrameType() string
}

// StartFrame begins a session
type StartFrame struct {
	Type           string         `json:"type"`
	ConversationID ConversationID `json:"conversation_id,omitempty"`
}

// ResumeFrame reattaches to an existing conversation
type ResumeFrame struct {
	Type           string         `json:"type"`
	ConversationID ConversationID `json:"conversation_id"`
}

// MessageFrame carries a user message
type MessageFrame struct {
	Type        string           `json:"type"`
	Content     string           `json:"content"`
	Attachments []WireAttachment `json:"attachments,omitempty"`
}

// WireAttachment is the attachment shape the server expects
type WireAttachment struct {
	Filename   string `json:"filename"`
	MimeType   string `json:"mimeType"`
	Base64Data string `json:"base64Data"`
}

// FeatureActionFrame accepts or rejects a suggestion
type FeatureActionFrame struct {
	Type         string `json:"type"`
	FeatureIndex int    `json:"feature_index"`
}

// ControlFrame is a frame with no payload (ping, done)
type ControlFrame struct {
	Type string `json:"type"`
}

func (f StartFrame) FrameType() string         { return f.Type }
func (f ResumeFrame) FrameType() string        { return f.Type }
func (f MessageFrame) FrameType() string       { return f.Type }
func (f FeatureActionFrame) FrameType() string { return f.Type }
func (f ControlFrame) FrameType() string       { return f.Type }

// Start builds a start frame; conversationID may be empty
func Start(conversationID string) StartFrame {
	return StartFrame{Type: TypeStart, ConversationID: ConversationID(conversationID)}
}

// Resume builds a resume frame
func Resume(conversationID string) ResumeFrame {
	return ResumeFrame{Type: TypeResume, ConversationID: ConversationID(conversationID)}
}

// Message builds a message frame
func Message(content string, attachments []types.ImageAttachment) MessageFrame {
	f := MessageFrame{Type: TypeMessage, Content: content}
	for _, a := range attachments {
		f.Attachments = append(f.Attachments, WireAttachment{
			Filename:   a.Filename,
			MimeType:   a.MimeType,
			Base64Data: a.Base64Data,
		})
	}
	return f
}

// Ping builds a keepalive frame
func Ping() ControlFrame {
	return ControlFrame{Type: TypePing}
}

// Done builds the frame that ends an expansion session
func Done() ControlFrame {
	return ControlFrame{Type: TypeDone}
}

// AcceptFeature builds an accept_feature frame
func AcceptFeature(index int) FeatureActionFrame {
	return FeatureActionFrame{Type: TypeAcceptFeature, FeatureIndex: index}
}

// RejectFeature builds a reject_feature frame
func RejectFeature(index int) FeatureActionFrame {
	return FeatureActionFrame{Type: TypeRejectFeature, FeatureIndex: index}
}

// ServerFrame is a decoded server frame. Only the fields of its Type are set.
type ServerFrame struct {
	Type string `json:"type"`

	// text, error
	Content string `json:"content,omitempty"`
	// error (legacy servers)
	Message string `json:"message,omitempty"`

	// tool_call
	Tool  string `json:"tool,omitempty"`
	Input any    `json:"input,omitempty"`

	// conversation_created
	ConversationID ConversationID `json:"conversation_id,omitempty"`

	// history
	Data *HistoryData `json:"data,omitempty"`

	// feature_suggestion, feature_created, feature_rejected
	Index     *int                    `json:"index,omitempty"`
	Feature   *types.SuggestedFeature `json:"feature,omitempty"`
	FeatureID *int                    `json:"feature_id,omitempty"`

	// features_created, expansion_complete
	Count      int                    `json:"count,omitempty"`
	Features   []types.CreatedFeature `json:"features,omitempty"`
	TotalAdded int                    `json:"total_added,omitempty"`
}

// ErrorText returns the error message of an error frame
func (f *ServerFrame) ErrorText() string {
	if f.Content != "" {
		return f.Content
	}
	if f.Message != "" {
		return f.Message
	}
	return "Unknown error"
}

// HistoryData is the payload of a history frame
type HistoryData struct {
	Messages           []HistoryMessage          `json:"messages"`
	PendingSuggestions []types.PendingSuggestion `json:"pending_suggestions"`
}

// HistoryMessage is a persisted message replayed by the server
type HistoryMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}
