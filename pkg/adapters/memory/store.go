package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/pageflow/pkg/domain"
)

// Store implements ports.ConversationStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]map[string]domain.Record
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]map[string]domain.Record),
	}
}

// Save persists the record in memory.
func (s *Store) Save(ctx context.Context, sessionID string, record domain.Record) error {
	// Copy to ensure isolation, similar to serialization
	copied := record.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	bag, ok := s.data[sessionID]
	if !ok {
		bag = make(map[string]domain.Record)
		s.data[sessionID] = bag
	}
	bag[record.ID] = copied
	return nil
}

// Load retrieves the record from memory.
func (s *Store) Load(ctx context.Context, sessionID, conversationID string) (domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[sessionID][conversationID]
	if !ok {
		return domain.Record{}, domain.ErrConversationNotFound
	}

	// Copy on read so the caller can't mutate store state through the attribute map
	return rec.Clone(), nil
}

// Delete removes the record. Empty sessions are dropped.
func (s *Store) Delete(ctx context.Context, sessionID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bag, ok := s.data[sessionID]
	if !ok {
		return nil
	}
	delete(bag, conversationID)
	if len(bag) == 0 {
		delete(s.data, sessionID)
	}
	return nil
}

// List returns the conversation ids of a session, sorted.
func (s *Store) List(ctx context.Context, sessionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data[sessionID]))
	for id := range s.data[sessionID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Sessions returns the ids of sessions holding at least one conversation.
func (s *Store) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
