package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConversationNotFound is returned when a conversation ID cannot be found in the store.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrConversationExists is returned when registering an ID that is already resident.
var ErrConversationExists = errors.New("conversation already registered")

// ErrNotStarted is returned when an event is triggered on an engine that was never started.
var ErrNotStarted = errors.New("flow engine not started")

// ErrUnknownFlow is returned when a flow identifier is not present in the catalog.
var ErrUnknownFlow = errors.New("unknown flow")

// ErrInvalidGraph is returned when a graph definition is inconsistent.
var ErrInvalidGraph = errors.New("invalid flow graph")

// AlreadyStartedError is returned when Start is called twice on one engine.
type AlreadyStartedError struct {
	Flow  string
	State string
}

func (e *AlreadyStartedError) Error() string {
	return fmt.Sprintf("flow %q is already started (current state %q)", e.Flow, e.State)
}

// NoSuchTransitionError is returned when no transition is defined for the
// event from the current state.
type NoSuchTransitionError struct {
	Flow  string
	From  string
	Event string
}

func (e *NoSuchTransitionError) Error() string {
	return fmt.Sprintf("flow %q: no transition for event %q from state %q", e.Flow, e.Event, e.From)
}

// UnknownStateError is returned when restoring a cursor onto a state the graph does not declare.
type UnknownStateError struct {
	Flow  string
	State string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("flow %q: unknown state %q", e.Flow, e.State)
}

// MetadataNotFoundError is a wiring defect: either no handler metadata is
// registered for a handler type, or one of its init routines cannot be invoked.
type MetadataNotFoundError struct {
	Handler string
	Flow    string
	Routine string // empty when the metadata itself is missing
	Err     error
}

func (e *MetadataNotFoundError) Error() string {
	if e.Routine != "" {
		msg := fmt.Sprintf("init routine %q for flow %q is not invocable", e.Handler+"::"+e.Routine, e.Flow)
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	}
	return fmt.Sprintf("handler metadata for %q is not found", e.Handler)
}

func (e *MetadataNotFoundError) Unwrap() error { return e.Err }

// AccessDeniedError is returned when an action is invoked from a state that is
// not in its acceptable-state set. It is a user-facing condition (e.g. a stale link).
type AccessDeniedError struct {
	Handler string
	Action  string
	Allowed []string
	Actual  string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("handler %q can be accessed when the current state is one of [ %s ], the actual state is %q",
		e.Handler+"::"+e.Action, strings.Join(e.Allowed, ", "), e.Actual)
}

// FieldError is returned when a stored attribute cannot be written onto a handler field.
type FieldError struct {
	Handler string
	Field   string
	Err     error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("stateful field %q on %q: %v", e.Field, e.Handler, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// IsAccessDenied reports whether err carries an AccessDeniedError.
func IsAccessDenied(err error) bool {
	var denied *AccessDeniedError
	return errors.As(err, &denied)
}
