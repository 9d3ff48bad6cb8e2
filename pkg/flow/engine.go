// Package flow turns an immutable domain.Graph into a runnable finite-state
// machine with a current/previous cursor.
package flow

import (
	"slices"

	"github.com/aretw0/pageflow/pkg/domain"
)

// Engine is a cursor over a Graph. An Engine is owned by exactly one
// conversation and is not safe for concurrent use; callers serialise access
// through the conversation lock.
type Engine struct {
	graph    *domain.Graph
	current  string
	previous string
	history  []string
}

// New creates an engine bound to the graph. It must be started before use.
func New(graph *domain.Graph) *Engine {
	return &Engine{graph: graph}
}

// Graph returns the bound (shared, read-only) graph.
func (e *Engine) Graph() *domain.Graph { return e.graph }

// Start moves the cursor to the graph's initial state. It is valid only once.
func (e *Engine) Start() error {
	if e.current != "" {
		return &domain.AlreadyStartedError{Flow: e.graph.ID(), State: e.current}
	}
	e.current = e.graph.Initial()
	e.history = append(e.history, e.current)
	return nil
}

// Started reports whether Start has been called.
func (e *Engine) Started() bool { return e.current != "" }

// Trigger fires the named event from the current state.
//
// The reserved domain.StateFinal event always moves to the final marker.
// An undefined event on a final state is ignored; anywhere else it fails
// with a NoSuchTransitionError and the cursor is left untouched.
func (e *Engine) Trigger(event string) error {
	if e.current == "" {
		return domain.ErrNotStarted
	}

	if event == domain.StateFinal {
		e.move(domain.StateFinal)
		return nil
	}

	to, ok := e.graph.Target(e.current, event)
	if !ok {
		if e.graph.IsFinal(e.current) {
			return nil
		}
		return &domain.NoSuchTransitionError{Flow: e.graph.ID(), From: e.current, Event: event}
	}

	e.move(to)
	return nil
}

func (e *Engine) move(to string) {
	e.previous = e.current
	e.current = to
	e.history = append(e.history, to)
}

// Current returns the current state id (empty before Start).
func (e *Engine) Current() string { return e.current }

// Previous returns the state the last transition left (empty before the first transition).
func (e *Engine) Previous() string { return e.previous }

// History returns a copy of the visited states, oldest first.
func (e *Engine) History() []string { return slices.Clone(e.history) }

// IsEndState reports whether the current state is final.
func (e *Engine) IsEndState() bool {
	return e.current != "" && e.graph.IsFinal(e.current)
}

// Clone returns an independent engine with the same graph and cursor.
func (e *Engine) Clone() *Engine {
	return &Engine{
		graph:    e.graph,
		current:  e.current,
		previous: e.previous,
		history:  slices.Clone(e.history),
	}
}

// Restore places the cursor on a previously persisted position.
// Both ids must belong to the graph; previous may be empty.
func (e *Engine) Restore(current, previous string, history []string) error {
	if !e.graph.HasState(current) {
		return &domain.UnknownStateError{Flow: e.graph.ID(), State: current}
	}
	if previous != "" && !e.graph.HasState(previous) {
		return &domain.UnknownStateError{Flow: e.graph.ID(), State: previous}
	}
	e.current = current
	e.previous = previous
	e.history = slices.Clone(history)
	if len(e.history) == 0 {
		e.history = []string{current}
	}
	return nil
}
