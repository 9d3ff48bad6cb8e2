package ports

import (
	"context"

	"github.com/aretw0/pageflow/pkg/domain"
)

// ConversationStore is the session-scoped key-value storage backing a
// conversation registry. Records of distinct sessions are never visible to
// each other.
type ConversationStore interface {
	// Save persists the record under (sessionID, record.ID), overwriting any prior value.
	Save(ctx context.Context, sessionID string, record domain.Record) error

	// Load retrieves a record.
	// Returns domain.ErrConversationNotFound if it does not exist.
	Load(ctx context.Context, sessionID, conversationID string) (domain.Record, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, sessionID, conversationID string) error

	// List returns the conversation ids resident in the session.
	List(ctx context.Context, sessionID string) ([]string, error)
}
