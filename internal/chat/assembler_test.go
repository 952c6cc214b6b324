package chat

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonvanzyl/autocoder-chat/internal/protocol"
	"github.com/leonvanzyl/autocoder-chat/internal/shared/types"
)

var testNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestAssembler() *Assembler {
	n := 0
	return NewAssembler(nil, func() string {
		n++
		return fmt.Sprintf("msg_%03d", n)
	}, func() time.Time { return testNow })
}

func streamingCount(msgs []types.ChatMessage) int {
	count := 0
	for _, m := range msgs {
		if m.IsStreaming {
			count++
		}
	}
	return count
}

func TestAssemblerHelloWorld(t *testing.T) {
	a := newTestAssembler()

	a.Text("Hello")
	a.Text(" world")
	require.True(t, a.Finalize())

	want := []types.ChatMessage{{
		ID:        "msg_001",
		Role:      types.RoleAssistant,
		Content:   "Hello world",
		Timestamp: testNow,
	}}
	if diff := cmp.Diff(want, a.Messages()); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestAssemblerToolCallKeepsStreaming(t *testing.T) {
	a := newTestAssembler()

	a.Text("Let me check")
	a.ToolCall("mcp__features__feature_get_stats", map[string]any{})
	a.Text(" the stats.")

	msgs := a.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, types.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "Let me check the stats.", msgs[0].Content)
	assert.True(t, msgs[0].IsStreaming)
	assert.Equal(t, types.RoleSystem, msgs[1].Role)
	assert.Equal(t, "Checking project progress", msgs[1].Content)

	require.True(t, a.Finalize())
	assert.Zero(t, streamingCount(a.Messages()))
}

func TestAssemblerFinalizeWithoutStreaming(t *testing.T) {
	a := newTestAssembler()
	assert.False(t, a.Finalize())

	a.AddUser("hi", nil)
	assert.False(t, a.Finalize())
}

func TestAssemblerTextAfterFinalizeStartsNewMessage(t *testing.T) {
	a := newTestAssembler()

	a.Text("first")
	a.Finalize()
	a.Text("second")

	msgs := a.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.False(t, msgs[0].IsStreaming)
	assert.Equal(t, "second", msgs[1].Content)
	assert.True(t, msgs[1].IsStreaming)
}

func TestAssemblerError(t *testing.T) {
	a := newTestAssembler()

	a.Text("partial")
	a.Error("rate limited")

	msgs := a.Messages()
	require.Len(t, msgs, 2)
	assert.False(t, msgs[0].IsStreaming)
	assert.Equal(t, "Error: rate limited", msgs[1].Content)
	assert.Equal(t, types.RoleSystem, msgs[1].Role)
}

func TestAssemblerReplaceHistory(t *testing.T) {
	a := newTestAssembler()
	a.AddUser("stale", nil)
	a.Text("stale reply")

	a.ReplaceHistory([]protocol.HistoryMessage{
		{Role: "user", Content: "add login", Timestamp: "2025-01-01T10:00:00Z"},
		{Role: "assistant", Content: "Done.", Timestamp: "2025-01-01T10:00:05.5"},
		{Role: "bogus", Content: "note", Timestamp: "yesterday"},
	})

	want := []types.ChatMessage{
		{Role: types.RoleUser, Content: "add login", Timestamp: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)},
		{Role: types.RoleAssistant, Content: "Done.", Timestamp: time.Date(2025, 1, 1, 10, 0, 5, 500_000_000, time.UTC)},
		{Role: types.RoleSystem, Content: "note", Timestamp: testNow},
	}
	got := a.Messages()
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(types.ChatMessage{}, "ID")); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, streamingCount(got))
}

func TestAssemblerMessagesAreCopies(t *testing.T) {
	a := newTestAssembler()
	a.AddUser("hi", []types.ImageAttachment{{Filename: "a.png"}})

	msgs := a.Messages()
	msgs[0].Content = "changed"
	msgs[0].Attachments[0].Filename = "b.png"

	again := a.Messages()
	assert.Equal(t, "hi", again[0].Content)
	assert.Equal(t, "a.png", again[0].Attachments[0].Filename)
}

func TestAssemblerFragmentConcatenationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("fragments between turns form one assistant message", prop.ForAll(
		func(fragments []string, toolAfter []bool) bool {
			a := newTestAssembler()
			a.AddUser("question", nil)

			for i, f := range fragments {
				a.Text(f)
				if i < len(toolAfter) && toolAfter[i] {
					a.ToolCall("Read", map[string]any{"file_path": "main.go"})
				}
			}
			a.Finalize()

			var assistant []types.ChatMessage
			for _, m := range a.Messages() {
				if m.Role == types.RoleAssistant {
					assistant = append(assistant, m)
				}
			}
			return len(assistant) == 1 &&
				assistant[0].Content == strings.Join(fragments, "") &&
				!assistant[0].IsStreaming
		},
		gen.SliceOf(gen.AlphaString()).SuchThat(func(v []string) bool { return len(v) > 0 }),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestAssemblerSingleStreamingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("at most one streaming message, none after finalize", prop.ForAll(
		func(ops []int) bool {
			a := newTestAssembler()
			for _, op := range ops {
				switch op {
				case 0:
					a.Text("x")
				case 1:
					a.ToolCall("Grep", map[string]any{"pattern": "TODO"})
				case 2:
					a.Finalize()
					if streamingCount(a.Messages()) != 0 {
						return false
					}
				case 3:
					a.Error("boom")
				case 4:
					a.AddUser("more", nil)
				}
				if streamingCount(a.Messages()) > 1 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 4)),
	))

	properties.TestingRun(t)
}
