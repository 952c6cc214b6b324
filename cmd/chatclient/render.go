package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/leonvanzyl/autocoder-chat/internal/chat"
	"github.com/leonvanzyl/autocoder-chat/internal/shared/types"
)

// renderer turns session snapshots into incremental terminal output
type renderer struct {
	mu      sync.Mutex
	out     io.Writer
	printed map[string]int
	done    map[string]bool
	shown   map[int]bool
	status  types.ConnectionStatus
	open    string
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{
		out:     out,
		printed: make(map[string]int),
		done:    make(map[string]bool),
		shown:   make(map[int]bool),
	}
}

func (r *renderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakLine()
	fmt.Fprintf(r.out, format, args...)
}

// breakLine ends a partially streamed line
func (r *renderer) breakLine() {
	if r.open != "" {
		fmt.Fprintln(r.out)
		r.open = ""
	}
}

// Write lets command output share the terminal with streamed text
func (r *renderer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakLine()
	return r.out.Write(p)
}

func (r *renderer) render(st chat.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st.Status != r.status {
		r.breakLine()
		fmt.Fprintf(r.out, "[%s]\n", st.Status)
		r.status = st.Status
	}

	for _, m := range st.Messages {
		if r.done[m.ID] {
			continue
		}

		n, seen := r.printed[m.ID]
		if !seen || r.open != m.ID {
			r.breakLine()
			fmt.Fprintf(r.out, "%s: ", label(m.Role))
		}
		if len(m.Content) > n {
			fmt.Fprint(r.out, m.Content[n:])
		}
		r.printed[m.ID] = len(m.Content)
		r.open = m.ID

		if !m.IsStreaming {
			r.done[m.ID] = true
			r.breakLine()
		}
	}

	for _, s := range st.PendingSuggestions {
		if r.shown[s.Index] {
			continue
		}
		r.shown[s.Index] = true
		r.breakLine()
		fmt.Fprintf(r.out, "  [%d] %s (%s): %s\n", s.Index, s.Feature.Name, s.Feature.Category, s.Feature.Description)
		for _, step := range s.Feature.Steps {
			fmt.Fprintf(r.out, "      - %s\n", step)
		}
	}
}

func label(role types.Role) string {
	switch role {
	case types.RoleUser:
		return "you"
	case types.RoleAssistant:
		return "assistant"
	default:
		return "system"
	}
}
