package chat

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/leonvanzyl/autocoder-chat/internal/protocol"
	"github.com/leonvanzyl/autocoder-chat/internal/shared/types"
)

// Features is the chat-to-features session. The agent proposes features
// that stay pending until the user accepts or rejects them.
type Features struct {
	*Session
}

// NewFeatures creates a chat-to-features session for opts.Scope
func NewFeatures(opts Options) (*Features, error) {
	s, err := newSession(FeatureFeatures, protocol.FeaturesPath, opts)
	if err != nil {
		return nil, err
	}
	c := &Features{Session: s}
	s.frameHandlers[protocol.TypeFeatureSuggestion] = c.onSuggestion
	s.frameHandlers[protocol.TypeFeatureCreated] = c.onCreated
	s.frameHandlers[protocol.TypeFeatureRejected] = c.onRejected
	return c, nil
}

// PendingSuggestions returns the suggestions awaiting a decision
func (c *Features) PendingSuggestions() []types.PendingSuggestion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.PendingSuggestion(nil), c.suggestions...)
}

// AcceptFeature asks the server to create suggestion index
func (c *Features) AcceptFeature(index int) error {
	return c.decide(index, protocol.AcceptFeature(index))
}

// RejectFeature dismisses suggestion index
func (c *Features) RejectFeature(index int) error {
	return c.decide(index, protocol.RejectFeature(index))
}

// decide sends the decision and drops the suggestion once it is on the wire
func (c *Features) decide(index int, frame protocol.Frame) error {
	c.mu.Lock()
	_, ok := c.find(index)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSuggestion, index)
	}

	return c.sendAction(frame, func() {
		c.remove(index)
	})
}

func (c *Features) find(index int) (int, bool) {
	for i, s := range c.suggestions {
		if s.Index == index {
			return i, true
		}
	}
	return -1, false
}

func (c *Features) remove(index int) (types.PendingSuggestion, bool) {
	i, ok := c.find(index)
	if !ok {
		return types.PendingSuggestion{}, false
	}
	removed := c.suggestions[i]
	c.suggestions = append(c.suggestions[:i], c.suggestions[i+1:]...)
	c.touch()
	return removed, true
}

func (c *Features) onSuggestion(f *protocol.ServerFrame) {
	if f.Index == nil || f.Feature == nil {
		c.metrics.RecordProtocolError(string(c.feature))
		c.logger.Warn("feature_suggestion without index or feature")
		return
	}

	p := types.PendingSuggestion{Index: *f.Index, Feature: *f.Feature}
	if i, ok := c.find(p.Index); ok {
		c.suggestions[i] = p
	} else {
		c.suggestions = append(c.suggestions, p)
	}
	c.touch()
}

func (c *Features) onCreated(f *protocol.ServerFrame) {
	if f.Index == nil {
		c.logger.Warn("feature_created without index")
		return
	}

	removed, _ := c.remove(*f.Index)
	name := removed.Feature.Name
	if name == "" {
		name = fmt.Sprintf("suggestion %d", *f.Index)
	}

	msg := "Feature created: " + name
	if f.FeatureID != nil {
		msg = fmt.Sprintf("Feature #%d created: %s", *f.FeatureID, name)
	}
	c.logger.Info("feature created", zap.Int("index", *f.Index), zap.String("name", name))
	c.asm.AddSystem(msg)
	c.touch()
}

func (c *Features) onRejected(f *protocol.ServerFrame) {
	if f.Index == nil {
		c.logger.Warn("feature_rejected without index")
		return
	}
	c.remove(*f.Index)
}
