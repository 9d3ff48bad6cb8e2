package ports_test

import (
	"context"
	"maps"
	"sync"
	"testing"

	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/aretw0/pageflow/pkg/ports"
)

// MockStore is an in-memory implementation of ConversationStore for testing purposes.
type MockStore struct {
	mu   sync.Mutex
	data map[string]map[string]domain.Record
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]map[string]domain.Record),
	}
}

func (m *MockStore) Save(ctx context.Context, sessionID string, rec domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[sessionID] == nil {
		m.data[sessionID] = make(map[string]domain.Record)
	}
	m.data[sessionID][rec.ID] = rec.Clone()
	return nil
}

func (m *MockStore) Load(ctx context.Context, sessionID, id string) (domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.data[sessionID][id]
	if !ok {
		return domain.Record{}, domain.ErrConversationNotFound
	}
	return rec.Clone(), nil
}

func (m *MockStore) Delete(ctx context.Context, sessionID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[sessionID], id)
	return nil
}

func (m *MockStore) List(ctx context.Context, sessionID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.data[sessionID]))
	for id := range maps.Keys(m.data[sessionID]) {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestConversationStore_Contract(t *testing.T) {
	// This test verifies that the MockStore complies with the contract.
	// It serves as a reference for future implementations (Adapters).
	ports.RunConversationStoreContract(t, NewMockStore())
}
