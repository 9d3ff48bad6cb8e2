// Package metadata describes conversational handlers: which states each
// action may run from, which fields survive between steps, and which
// routines initialise a handler when a conversation begins.
//
// Metadata is declared once at startup through the typed Builder and is
// immutable afterwards.
package metadata

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
)

// ErrNotInvocable is returned by Init.Invoke when the routine cannot run on the handler.
var ErrNotInvocable = errors.New("init routine is not invocable")

// Init is a named routine run once on the handler when a conversation starts.
type Init struct {
	name string
	fn   func(handler any) error
}

// Name returns the routine name used in diagnostics.
func (i Init) Name() string { return i.name }

// Invoke runs the routine.
func (i Init) Invoke(handler any) error {
	if i.fn == nil {
		return ErrNotInvocable
	}
	return i.fn(handler)
}

// Metadata is the immutable description of one handler type.
type Metadata struct {
	handlerType reflect.Type
	guards      map[string][]string
	fields      []Field
	inits       []Init
}

// HandlerType returns the concrete handler type described.
func (m *Metadata) HandlerType() reflect.Type { return m.handlerType }

// HandlerName returns the printable handler type name.
func (m *Metadata) HandlerName() string { return m.handlerType.String() }

// AcceptableStates returns the states from which action may be invoked.
// An action without a guard entry has no acceptable state.
func (m *Metadata) AcceptableStates(action string) []string {
	return slices.Clone(m.guards[action])
}

// Allows reports whether action may run while the conversation is in state.
func (m *Metadata) Allows(action, state string) bool {
	return slices.Contains(m.guards[action], state)
}

// Actions returns the guarded action names, sorted.
func (m *Metadata) Actions() []string {
	actions := make([]string, 0, len(m.guards))
	for a := range m.guards {
		actions = append(actions, a)
	}
	sort.Strings(actions)
	return actions
}

// Fields returns the stateful field descriptors in declaration order.
func (m *Metadata) Fields() []Field { return slices.Clone(m.fields) }

// Inits returns the init routines in declaration order.
func (m *Metadata) Inits() []Init { return slices.Clone(m.inits) }

// Builder declares the metadata of handler type H.
type Builder[H any] struct {
	m   *Metadata
	err error
}

// For starts a declaration for handler type H (usually a pointer type).
func For[H any]() *Builder[H] {
	return &Builder[H]{
		m: &Metadata{
			handlerType: typeOf[H](),
			guards:      make(map[string][]string),
		},
	}
}

// Accept allows action to run from the given states. Repeated calls for the
// same action extend its state set.
func (b *Builder[H]) Accept(action string, states ...string) *Builder[H] {
	if action == "" {
		b.fail(errors.New("empty action name"))
		return b
	}
	for _, s := range states {
		if !slices.Contains(b.m.guards[action], s) {
			b.m.guards[action] = append(b.m.guards[action], s)
		}
	}
	if _, ok := b.m.guards[action]; !ok {
		b.m.guards[action] = nil
	}
	return b
}

// Stateful appends field descriptors. Names must be unique.
func (b *Builder[H]) Stateful(fields ...Field) *Builder[H] {
	for _, f := range fields {
		if f.name == "" {
			b.fail(errors.New("stateful field without a name"))
			continue
		}
		if slices.ContainsFunc(b.m.fields, func(existing Field) bool { return existing.name == f.name }) {
			b.fail(fmt.Errorf("stateful field %q declared twice", f.name))
			continue
		}
		b.m.fields = append(b.m.fields, f)
	}
	return b
}

// Init appends a routine run once when a conversation begins.
func (b *Builder[H]) Init(name string, fn func(H) error) *Builder[H] {
	var wrapped func(any) error
	if fn != nil {
		wrapped = func(handler any) error {
			h, ok := handler.(H)
			if !ok {
				return fmt.Errorf("%w: handler is %T, want %s", ErrNotInvocable, handler, b.m.handlerType)
			}
			return fn(h)
		}
	}
	b.m.inits = append(b.m.inits, Init{name: name, fn: wrapped})
	return b
}

// Build returns a snapshot of the declaration. Later builder calls do not
// reach metadata that was already built.
func (b *Builder[H]) Build() (*Metadata, error) {
	if b.err != nil {
		return nil, fmt.Errorf("metadata for %s: %w", b.m.handlerType, b.err)
	}
	guards := make(map[string][]string, len(b.m.guards))
	for action, states := range b.m.guards {
		guards[action] = slices.Clone(states)
	}
	return &Metadata{
		handlerType: b.m.handlerType,
		guards:      guards,
		fields:      slices.Clone(b.m.fields),
		inits:       slices.Clone(b.m.inits),
	}, nil
}

// MustBuild is like Build but panics on a declaration error.
// Intended for package-level registration at startup.
func (b *Builder[H]) MustBuild() *Metadata {
	m, err := b.Build()
	if err != nil {
		panic(err)
	}
	return m
}

func (b *Builder[H]) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func typeOf[H any]() reflect.Type {
	return reflect.TypeOf((*H)(nil)).Elem()
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
