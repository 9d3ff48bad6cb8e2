package metadata

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/aretw0/pageflow/pkg/domain"
)

// Catalog maps concrete handler types to their metadata.
type Catalog struct {
	mu      sync.RWMutex
	entries map[reflect.Type]*Metadata
}

// NewCatalog creates a catalog holding the given metadata.
func NewCatalog(ms ...*Metadata) (*Catalog, error) {
	c := &Catalog{
		entries: make(map[reflect.Type]*Metadata),
	}
	for _, m := range ms {
		if err := c.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds metadata. A handler type can only be described once.
func (c *Catalog) Register(m *Metadata) error {
	if m == nil {
		return fmt.Errorf("nil handler metadata")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[m.handlerType]; exists {
		return fmt.Errorf("handler metadata for %s is already registered", m.handlerType)
	}
	c.entries[m.handlerType] = m
	return nil
}

// Lookup finds the metadata of the handler's concrete type.
// Returns a *domain.MetadataNotFoundError when none is registered.
func (c *Catalog) Lookup(handler any) (*Metadata, error) {
	if handler == nil {
		return nil, &domain.MetadataNotFoundError{Handler: "<nil>"}
	}
	t := reflect.TypeOf(handler)

	c.mu.RLock()
	m, ok := c.entries[t]
	c.mu.RUnlock()

	if !ok {
		return nil, &domain.MetadataNotFoundError{Handler: t.String()}
	}
	return m, nil
}

// Len returns the number of described handler types.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
