package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/aretw0/pageflow/pkg/ports"
)

// GraphSource resolves flow graphs by id (implemented by catalog.Catalog).
type GraphSource interface {
	Graph(flowID string) (*domain.Graph, error)
}

// Registry is the collection of conversations of one session.
// It holds no state of its own: every call goes to the session store.
type Registry struct {
	sessionID string
	store     ports.ConversationStore
	graphs    GraphSource
}

// NewRegistry returns the registry of sessionID.
func NewRegistry(sessionID string, store ports.ConversationStore, graphs GraphSource) *Registry {
	return &Registry{
		sessionID: sessionID,
		store:     store,
		graphs:    graphs,
	}
}

// SessionID returns the owning session.
func (r *Registry) SessionID() string { return r.sessionID }

// FindByID loads a conversation.
// Returns domain.ErrConversationNotFound when the id is not resident.
func (r *Registry) FindByID(ctx context.Context, id string) (*Conversation, error) {
	rec, err := r.store.Load(ctx, r.sessionID, id)
	if err != nil {
		return nil, err
	}

	graph, err := r.graphs.Graph(rec.FlowID)
	if err != nil {
		return nil, fmt.Errorf("conversation %s: %w", id, err)
	}

	conv, err := FromRecord(rec, graph)
	if err != nil {
		return nil, fmt.Errorf("conversation %s: %w", id, err)
	}
	return conv, nil
}

// Add registers a new conversation. An id that is already resident is
// refused so that ids are never reused while a conversation holds them.
func (r *Registry) Add(ctx context.Context, c *Conversation) error {
	_, err := r.store.Load(ctx, r.sessionID, c.ID())
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", domain.ErrConversationExists, c.ID())
	case !errors.Is(err, domain.ErrConversationNotFound):
		return fmt.Errorf("failed to check conversation %s: %w", c.ID(), err)
	}
	return r.Save(ctx, c)
}

// Save writes the conversation back to the store.
func (r *Registry) Save(ctx context.Context, c *Conversation) error {
	if err := r.store.Save(ctx, r.sessionID, c.Record()); err != nil {
		return fmt.Errorf("failed to save conversation %s: %w", c.ID(), err)
	}
	return nil
}

// Remove drops the conversation from the session.
func (r *Registry) Remove(ctx context.Context, c *Conversation) error {
	if err := r.store.Delete(ctx, r.sessionID, c.ID()); err != nil {
		return fmt.Errorf("failed to remove conversation %s: %w", c.ID(), err)
	}
	return nil
}

// List returns the ids of the resident conversations.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	return r.store.List(ctx, r.sessionID)
}
