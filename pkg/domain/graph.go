package domain

import (
	"fmt"
	"slices"
)

// StateFinal is the reserved terminal marker every graph implicitly contains.
// It is also the event name that forces a conversation into it from any state.
const StateFinal = "FINAL"

// Transition defines a rule to move from one state to another.
type Transition struct {
	From  string `json:"from" yaml:"from"`
	Event string `json:"event" yaml:"event"`
	To    string `json:"to" yaml:"to"`
}

// GraphSpec is the raw input used to construct a Graph.
type GraphSpec struct {
	ID          string
	Description string
	Initial     string
	States      []string
	Final       []string
	Transitions []Transition
}

type edge struct {
	from  string
	event string
}

// Graph is an immutable description of one workflow type.
// It is shared (read-only) across all conversations of the same flow.
type Graph struct {
	id          string
	description string
	initial     string
	states      []string
	known       map[string]struct{}
	final       map[string]struct{}
	edges       map[edge]string
	transitions []Transition
}

// NewGraph validates a GraphSpec and builds an immutable Graph.
// States referenced only by transitions are added to the state set.
func NewGraph(spec GraphSpec) (*Graph, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("%w: flow id is required", ErrInvalidGraph)
	}
	if spec.Initial == "" {
		return nil, fmt.Errorf("%w: flow %q has no initial state", ErrInvalidGraph, spec.ID)
	}

	g := &Graph{
		id:          spec.ID,
		description: spec.Description,
		initial:     spec.Initial,
		known:       make(map[string]struct{}),
		final:       map[string]struct{}{StateFinal: {}},
		edges:       make(map[edge]string),
	}

	addState := func(id string) {
		if id == "" {
			return
		}
		if _, ok := g.known[id]; !ok {
			g.known[id] = struct{}{}
			g.states = append(g.states, id)
		}
	}

	addState(spec.Initial)
	for _, s := range spec.States {
		addState(s)
	}

	for _, t := range spec.Transitions {
		if t.From == "" || t.To == "" || t.Event == "" {
			return nil, fmt.Errorf("%w: flow %q has an incomplete transition %+v", ErrInvalidGraph, spec.ID, t)
		}
		if t.Event == StateFinal {
			return nil, fmt.Errorf("%w: flow %q uses the reserved event %q", ErrInvalidGraph, spec.ID, StateFinal)
		}
		key := edge{from: t.From, event: t.Event}
		if existing, dup := g.edges[key]; dup {
			return nil, fmt.Errorf("%w: flow %q declares event %q from %q twice (to %q and %q)",
				ErrInvalidGraph, spec.ID, t.Event, t.From, existing, t.To)
		}
		addState(t.From)
		if t.To != StateFinal {
			addState(t.To)
		}
		g.edges[key] = t.To
		g.transitions = append(g.transitions, t)
	}

	for _, f := range spec.Final {
		if _, ok := g.known[f]; !ok && f != StateFinal {
			return nil, fmt.Errorf("%w: flow %q marks unknown state %q as final", ErrInvalidGraph, spec.ID, f)
		}
		g.final[f] = struct{}{}
	}

	return g, nil
}

// ID returns the flow identifier.
func (g *Graph) ID() string { return g.id }

// Description returns the optional human readable summary of the flow.
func (g *Graph) Description() string { return g.description }

// Initial returns the designated initial state.
func (g *Graph) Initial() string { return g.initial }

// States returns the declared states in declaration order (StateFinal excluded).
func (g *Graph) States() []string { return slices.Clone(g.states) }

// Final returns the final states, sorted, without the reserved marker.
func (g *Graph) Final() []string {
	out := make([]string, 0, len(g.final))
	for s := range g.final {
		if s != StateFinal {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}

// Transitions returns the declared transitions in declaration order.
func (g *Graph) Transitions() []Transition { return slices.Clone(g.transitions) }

// HasState reports whether id is a valid state of the graph.
func (g *Graph) HasState(id string) bool {
	if id == StateFinal {
		return true
	}
	_, ok := g.known[id]
	return ok
}

// IsFinal reports whether id is a final state.
func (g *Graph) IsFinal(id string) bool {
	_, ok := g.final[id]
	return ok
}

// Target looks up the state reached by firing event from state from.
func (g *Graph) Target(from, event string) (string, bool) {
	to, ok := g.edges[edge{from: from, event: event}]
	return to, ok
}

// Outgoing returns the transitions leaving the given state.
func (g *Graph) Outgoing(from string) []Transition {
	var out []Transition
	for _, t := range g.transitions {
		if t.From == from {
			out = append(out, t)
		}
	}
	return out
}
