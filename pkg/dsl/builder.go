package dsl

import (
	"fmt"

	"github.com/aretw0/pageflow/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	id          string
	description string
	initial     string
	order       []string
	states      map[string]*StateBuilder
}

// New creates a new graph builder for the flow id.
func New(id string) *Builder {
	return &Builder{
		id:     id,
		states: make(map[string]*StateBuilder),
	}
}

// Describe sets a human readable description of the flow.
func (b *Builder) Describe(text string) *Builder {
	b.description = text
	return b
}

// Add creates a new state in the graph.
// If the state already exists, it returns the existing builder.
// The first state added is the initial state unless another one calls Initial.
func (b *Builder) Add(id string) *StateBuilder {
	if sb, ok := b.states[id]; ok {
		return sb
	}
	sb := &StateBuilder{id: id, builder: b}
	b.states[id] = sb
	b.order = append(b.order, id)
	if b.initial == "" {
		b.initial = id
	}
	return sb
}

// Build compiles the graph. Every transition target must have been added,
// except domain.StateFinal.
func (b *Builder) Build() (*domain.Graph, error) {
	spec := domain.GraphSpec{
		ID:          b.id,
		Description: b.description,
		Initial:     b.initial,
		States:      make([]string, 0, len(b.order)),
	}
	for _, id := range b.order {
		sb := b.states[id]
		spec.States = append(spec.States, id)
		if sb.final {
			spec.Final = append(spec.Final, id)
		}
		for _, t := range sb.transitions {
			if _, ok := b.states[t.To]; !ok && t.To != domain.StateFinal {
				return nil, fmt.Errorf("%w: state %q of flow %q targets undeclared state %q",
					domain.ErrInvalidGraph, id, b.id, t.To)
			}
		}
		spec.Transitions = append(spec.Transitions, sb.transitions...)
	}

	g, err := domain.NewGraph(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to build flow %q: %w", b.id, err)
	}
	return g, nil
}

// MustBuild is like Build but panics on error. Use it for static flow definitions.
func (b *Builder) MustBuild() *domain.Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}
