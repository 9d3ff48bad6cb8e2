package binder

import (
	"context"
	"sync"

	"github.com/aretw0/pageflow/pkg/conversation"
	"github.com/aretw0/pageflow/pkg/metadata"
	"github.com/aretw0/pageflow/pkg/session"
)

type scopeKey struct{}

// Scope is what the pre-dispatch phase publishes for the handler and for the
// post-dispatch phase of the same request.
type Scope struct {
	Conversation *conversation.Conversation
	Handler      any
	Metadata     *metadata.Metadata
	SessionID    string
	Action       string
	// Started is true when this request created the conversation.
	Started bool

	registry *conversation.Registry
	release  session.ReleaseFunc

	mu     sync.Mutex
	closed bool
}

// close marks the scope as finished and reports whether it was still open.
func (s *Scope) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

func withScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope published by Binder.Pre, if any.
func ScopeFrom(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok
}

// ConversationFrom returns the bound conversation or nil when the request is
// not conversational.
func ConversationFrom(ctx context.Context) *conversation.Conversation {
	if s, ok := ScopeFrom(ctx); ok {
		return s.Conversation
	}
	return nil
}
