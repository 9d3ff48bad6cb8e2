// Package catalog maps flow identifiers to their immutable graphs and engine
// templates. It is populated at startup and read concurrently afterwards.
package catalog

import (
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/aretw0/pageflow/pkg/flow"
)

// Catalog manages the available flows.
type Catalog struct {
	mu        sync.RWMutex
	templates map[string]*flow.Engine
}

// New creates a catalog holding the given graphs.
func New(graphs ...*domain.Graph) (*Catalog, error) {
	c := &Catalog{
		templates: make(map[string]*flow.Engine),
	}
	for _, g := range graphs {
		if err := c.Register(g); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds a flow. Registering the same id twice is an error.
func (c *Catalog) Register(g *domain.Graph) error {
	if g == nil {
		return fmt.Errorf("%w: nil graph", domain.ErrInvalidGraph)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.templates[g.ID()]; exists {
		return fmt.Errorf("flow %q is already registered", g.ID())
	}
	c.templates[g.ID()] = flow.New(g)
	return nil
}

// Lookup returns the graph of a flow, if registered.
func (c *Catalog) Lookup(flowID string) (*domain.Graph, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tpl, ok := c.templates[flowID]
	if !ok {
		return nil, false
	}
	return tpl.Graph(), true
}

// Graph returns the graph of a flow or domain.ErrUnknownFlow.
func (c *Catalog) Graph(flowID string) (*domain.Graph, error) {
	g, ok := c.Lookup(flowID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownFlow, flowID)
	}
	return g, nil
}

// Engine returns an unstarted clone of the flow's template engine.
// Every call yields an independent cursor.
func (c *Catalog) Engine(flowID string) (*flow.Engine, error) {
	c.mu.RLock()
	tpl, ok := c.templates[flowID]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownFlow, flowID)
	}
	return tpl.Clone(), nil
}

// IDs returns the registered flow ids, sorted.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.templates))
	for id := range c.templates {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
