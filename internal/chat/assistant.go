package chat

import (
	"context"

	"github.com/leonvanzyl/autocoder-chat/internal/conversations"
	"github.com/leonvanzyl/autocoder-chat/internal/protocol"
)

// Assistant is the project assistant chat. It adds conversation
// management on top of the session core.
type Assistant struct {
	*Session
}

// NewAssistant creates an assistant session for opts.Scope
func NewAssistant(opts Options) (*Assistant, error) {
	s, err := newSession(FeatureAssistant, protocol.AssistantPath, opts)
	if err != nil {
		return nil, err
	}
	return &Assistant{Session: s}, nil
}

// ListConversations returns the project's persisted conversations
func (a *Assistant) ListConversations(ctx context.Context) ([]conversations.Conversation, error) {
	if a.store == nil {
		return nil, ErrNoStore
	}
	return a.store.List(ctx, a.scope)
}

// DeleteConversation removes a persisted conversation. Deleting the
// active conversation starts a new one.
func (a *Assistant) DeleteConversation(ctx context.Context, conversationID string) error {
	if a.store == nil {
		return ErrNoStore
	}
	if err := a.store.Delete(ctx, a.scope, conversationID); err != nil {
		return err
	}
	if a.ConversationID() == conversationID {
		return a.NewConversation(ctx)
	}
	return nil
}
