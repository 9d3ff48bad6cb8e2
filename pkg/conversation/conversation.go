// Package conversation holds running flow instances and the session-scoped
// registry that stores them.
package conversation

import (
	"maps"
	"slices"
	"time"

	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/aretw0/pageflow/pkg/flow"
)

// Conversation is one running instance of a flow. It exclusively owns its
// engine and carries the stateful attributes accumulated across requests.
type Conversation struct {
	id         string
	engine     *flow.Engine
	attributes map[string]any
}

// New binds an id to an engine. The engine must not be shared with any other
// conversation; pass a clone of the catalog template.
func New(id string, engine *flow.Engine) *Conversation {
	return &Conversation{
		id:         id,
		engine:     engine,
		attributes: make(map[string]any),
	}
}

// FromRecord rebuilds a conversation from its persisted record on a fresh
// engine bound to graph.
func FromRecord(rec domain.Record, graph *domain.Graph) (*Conversation, error) {
	engine := flow.New(graph)
	if err := engine.Restore(rec.Current, rec.Previous, rec.History); err != nil {
		return nil, err
	}
	c := New(rec.ID, engine)
	maps.Copy(c.attributes, rec.Attributes)
	return c, nil
}

// ID returns the opaque conversation identifier.
func (c *Conversation) ID() string { return c.id }

// FlowID returns the identifier of the flow this conversation runs.
func (c *Conversation) FlowID() string { return c.engine.Graph().ID() }

// Engine exposes the owned engine (read access to the graph and history).
func (c *Conversation) Engine() *flow.Engine { return c.engine }

// Start moves the conversation to the flow's initial state.
func (c *Conversation) Start() error { return c.engine.Start() }

// TransitionTo fires the named event.
func (c *Conversation) TransitionTo(event string) error { return c.engine.Trigger(event) }

// End forces the conversation into the reserved final state.
func (c *Conversation) End() error { return c.engine.Trigger(domain.StateFinal) }

// Current returns the current state id.
func (c *Conversation) Current() string { return c.engine.Current() }

// Previous returns the previous state id.
func (c *Conversation) Previous() string { return c.engine.Previous() }

// IsEndState reports whether the conversation reached a final state.
func (c *Conversation) IsEndState() bool { return c.engine.IsEndState() }

// Has reports whether an attribute is set.
func (c *Conversation) Has(name string) bool {
	_, ok := c.attributes[name]
	return ok
}

// Get returns the attribute value or nil.
func (c *Conversation) Get(name string) any { return c.attributes[name] }

// Lookup returns the attribute value and whether it was set.
func (c *Conversation) Lookup(name string) (any, bool) {
	v, ok := c.attributes[name]
	return v, ok
}

// Set stores an attribute, overwriting any prior value.
func (c *Conversation) Set(name string, value any) { c.attributes[name] = value }

// Remove deletes an attribute.
func (c *Conversation) Remove(name string) { delete(c.attributes, name) }

// Keys returns the attribute names, sorted.
func (c *Conversation) Keys() []string {
	return slices.Sorted(maps.Keys(c.attributes))
}

// Record snapshots the conversation for storage.
func (c *Conversation) Record() domain.Record {
	return domain.Record{
		ID:         c.id,
		FlowID:     c.FlowID(),
		Current:    c.engine.Current(),
		Previous:   c.engine.Previous(),
		History:    c.engine.History(),
		Attributes: maps.Clone(c.attributes),
		UpdatedAt:  time.Now().UTC(),
	}
}
