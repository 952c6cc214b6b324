package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonvanzyl/autocoder-chat/internal/shared/types"
)

func TestEncodeClientFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  string
	}{
		{"start without conversation", Start(""), `{"type":"start"}`},
		{"start with numeric conversation", Start("42"), `{"type":"start","conversation_id":42}`},
		{"start with opaque conversation", Start("conv-a"), `{"type":"start","conversation_id":"conv-a"}`},
		{"leading zero stays a string", Resume("007"), `{"type":"resume","conversation_id":"007"}`},
		{"resume", Resume("7"), `{"type":"resume","conversation_id":7}`},
		{"ping", Ping(), `{"type":"ping"}`},
		{"done", Done(), `{"type":"done"}`},
		{"accept", AcceptFeature(2), `{"type":"accept_feature","feature_index":2}`},
		{"reject", RejectFeature(0), `{"type":"reject_feature","feature_index":0}`},
		{"message", Message("add login", nil), `{"type":"message","content":"add login"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.frame)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestEncodeMessageWithAttachments(t *testing.T) {
	frame := Message("see image", []types.ImageAttachment{{
		ID:         "att_1",
		Filename:   "shot.png",
		MimeType:   "image/png",
		Base64Data: "aGVsbG8=",
		Size:       5,
	}})

	data, err := Encode(frame)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"type": "message",
		"content": "see image",
		"attachments": [{"filename": "shot.png", "mimeType": "image/png", "base64Data": "aGVsbG8="}]
	}`, string(data))
}

func TestDecodeServerFrames(t *testing.T) {
	f, err := Decode([]byte(`{"type":"text","content":"Hello"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeText, f.Type)
	assert.Equal(t, "Hello", f.Content)

	f, err = Decode([]byte(`{"type":"tool_call","tool":"Read","input":{"file_path":"main.go"}}`))
	require.NoError(t, err)
	assert.Equal(t, "Read", f.Tool)
	assert.Equal(t, map[string]any{"file_path": "main.go"}, f.Input)

	f, err = Decode([]byte(`{"type":"conversation_created","conversation_id":12}`))
	require.NoError(t, err)
	assert.Equal(t, ConversationID("12"), f.ConversationID)

	f, err = Decode([]byte(`{"type":"conversation_created","conversation_id":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, ConversationID("abc"), f.ConversationID)

	f, err = Decode([]byte(`{"type":"feature_created","index":1,"feature_id":99}`))
	require.NoError(t, err)
	require.NotNil(t, f.Index)
	require.NotNil(t, f.FeatureID)
	assert.Equal(t, 1, *f.Index)
	assert.Equal(t, 99, *f.FeatureID)

	f, err = Decode([]byte(`{"type":"features_created","count":2,"features":[{"id":1,"name":"Login","category":"auth"},{"id":2,"name":"Logout","category":"auth"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, f.Count)
	assert.Equal(t, []types.CreatedFeature{{ID: 1, Name: "Login", Category: "auth"}, {ID: 2, Name: "Logout", Category: "auth"}}, f.Features)
}

func TestDecodeHistory(t *testing.T) {
	raw := `{
		"type": "history",
		"data": {
			"messages": [
				{"role": "user", "content": "hi", "timestamp": "2025-01-02T03:04:05Z"},
				{"role": "assistant", "content": "hello", "timestamp": "2025-01-02T03:04:06.5"}
			],
			"pending_suggestions": [
				{"index": 3, "feature": {"name": "Search", "category": "ui", "description": "Add search", "steps": ["a", "b"]}}
			]
		}
	}`

	f, err := Decode([]byte(raw))
	require.NoError(t, err)
	require.NotNil(t, f.Data)
	require.Len(t, f.Data.Messages, 2)
	assert.Equal(t, "hello", f.Data.Messages[1].Content)
	require.Len(t, f.Data.PendingSuggestions, 1)
	assert.Equal(t, 3, f.Data.PendingSuggestions[0].Index)
	assert.Equal(t, []string{"a", "b"}, f.Data.PendingSuggestions[0].Feature.Steps)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, raw := range []string{``, `not json`, `{"content":"no type"}`, `[1,2]`} {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedFrame, raw)
	}
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "boom", (&ServerFrame{Type: TypeError, Content: "boom"}).ErrorText())
	assert.Equal(t, "legacy", (&ServerFrame{Type: TypeError, Message: "legacy"}).ErrorText())
	assert.Equal(t, "Unknown error", (&ServerFrame{Type: TypeError}).ErrorText())
}

func TestConversationIDRoundTripsThroughStdlib(t *testing.T) {
	var f ServerFrame
	require.NoError(t, json.Unmarshal([]byte(`{"type":"conversation_created","conversation_id":null}`), &f))
	assert.Equal(t, ConversationID(""), f.ConversationID)
}

func TestConversationIDJSONEscapes(t *testing.T) {
	tests := []struct {
		raw  string
		want ConversationID
	}{
		{`"conv\/1"`, "conv/1"},
		{`"caf\u00e9"`, "café"},
		{`"tab\there"`, "tab\there"},
		{` "spaced" `, "spaced"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var id ConversationID
			require.NoError(t, id.UnmarshalJSON([]byte(tt.raw)))
			assert.Equal(t, tt.want, id)
		})
	}

	f, err := Decode([]byte(`{"type":"conversation_created","conversation_id":"team\/42"}`))
	require.NoError(t, err)
	assert.Equal(t, ConversationID("team/42"), f.ConversationID)

	var id ConversationID
	assert.Error(t, id.UnmarshalJSON([]byte(`"unterminated`)))
	assert.Error(t, id.UnmarshalJSON([]byte(`true`)))
}

func TestConversationIDMarshalEscapes(t *testing.T) {
	data, err := ConversationID("a\"b/c").MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"a\"b/c"`, string(data))

	var back string
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "a\"b/c", back)
}

func TestParseTimestamp(t *testing.T) {
	fallback := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-01-02T03:04:05Z", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2025-01-02T03:04:05.250000", time.Date(2025, 1, 2, 3, 4, 5, 250000000, time.UTC)},
		{"2025-01-02 03:04:05", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"", fallback},
		{"yesterday", fallback},
	}

	for _, tt := range tests {
		assert.True(t, tt.want.Equal(ParseTimestamp(tt.in, fallback)), tt.in)
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		prefix  string
		scope   string
		want    string
		wantErr bool
	}{
		{"plain http", "http://localhost:8888", AssistantPath, "demo", "ws://localhost:8888/api/assistant/ws/demo", false},
		{"secure https", "https://app.example.com/", ExpandPath, "demo", "wss://app.example.com/api/expand/ws/demo", false},
		{"base path kept", "https://app.example.com/ui", FeaturesPath, "demo", "wss://app.example.com/ui/api/chat-features/ws/demo", false},
		{"scope escaped", "http://localhost", AssistantPath, "my project", "ws://localhost/api/assistant/ws/my%20project", false},
		{"slash in scope escaped", "http://localhost", AssistantPath, "a/b", "ws://localhost/api/assistant/ws/a%2Fb", false},
		{"bad scheme", "ftp://localhost", AssistantPath, "demo", "", true},
		{"no host", "http://", AssistantPath, "demo", "", true},
		{"empty scope", "http://localhost", AssistantPath, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildURL(tt.base, tt.prefix, tt.scope)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
