package dsl

import "github.com/aretw0/pageflow/pkg/domain"

// StateBuilder provides a fluent API for configuring a state.
type StateBuilder struct {
	id          string
	final       bool
	transitions []domain.Transition
	builder     *Builder
}

// On adds a transition to target fired by event.
func (s *StateBuilder) On(event, target string) *StateBuilder {
	s.transitions = append(s.transitions, domain.Transition{
		From:  s.id,
		Event: event,
		To:    target,
	})
	return s
}

// Go adds a transition to target whose event is the target id itself.
func (s *StateBuilder) Go(target string) *StateBuilder {
	return s.On(target, target)
}

// Initial makes this state the initial state of the flow.
func (s *StateBuilder) Initial() *StateBuilder {
	s.builder.initial = s.id
	return s
}

// Terminal marks the state as final. Reaching it ends the conversation.
func (s *StateBuilder) Terminal() *StateBuilder {
	s.final = true
	return s
}

// Add switches to another state of the same builder.
func (s *StateBuilder) Add(id string) *StateBuilder {
	return s.builder.Add(id)
}
