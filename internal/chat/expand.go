package chat

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/leonvanzyl/autocoder-chat/internal/protocol"
	"github.com/leonvanzyl/autocoder-chat/internal/shared/types"
)

// Expand is the project expansion chat. The agent creates features in
// batches and ends the session with expansion_complete, after which the
// session never reconnects.
type Expand struct {
	*Session
}

// NewExpand creates an expansion session for opts.Scope
func NewExpand(opts Options) (*Expand, error) {
	s, err := newSession(FeatureExpand, protocol.ExpandPath, opts)
	if err != nil {
		return nil, err
	}
	e := &Expand{Session: s}
	s.frameHandlers[protocol.TypeFeaturesCreated] = e.onFeaturesCreated
	s.frameHandlers[protocol.TypeExpansionComplete] = e.onExpansionComplete
	return e, nil
}

// Finish asks the agent to wrap up the expansion
func (e *Expand) Finish() error {
	return e.sendAction(protocol.Done(), nil)
}

// CreatedFeatures returns every feature created so far
func (e *Expand) CreatedFeatures() []types.CreatedFeature {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.CreatedFeature(nil), e.created...)
}

// Complete reports whether the expansion has finished
func (e *Expand) Complete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.complete
}

func (e *Expand) onFeaturesCreated(f *protocol.ServerFrame) {
	e.created = append(e.created, f.Features...)

	count := f.Count
	if count == 0 {
		count = len(f.Features)
	}
	if count == 0 {
		e.touch()
		return
	}

	names := make([]string, 0, len(f.Features))
	for _, feature := range f.Features {
		names = append(names, feature.Name)
	}

	summary := fmt.Sprintf("Created %d features", count)
	if len(names) > 0 {
		summary += ": " + strings.Join(names, ", ")
	}
	e.asm.AddSystem(summary)
	e.touch()
}

func (e *Expand) onExpansionComplete(f *protocol.ServerFrame) {
	e.complete = true
	e.loading = false
	e.asm.Finalize()
	e.cancelRetry()
	e.policy.Cancel()

	e.logger.Info("expansion complete", zap.Int("total_added", f.TotalAdded))
	e.asm.AddSystem(fmt.Sprintf("Expansion complete: %d features added", f.TotalAdded))
	e.touch()
}
