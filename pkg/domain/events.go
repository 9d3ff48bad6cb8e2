package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventConversationStart  EventType = "conversation_start"
	EventConversationResume EventType = "conversation_resume"
	EventAccessDenied       EventType = "access_denied"
	EventCapture            EventType = "capture"
	EventConversationEnd    EventType = "conversation_end"
)

// ConversationEvent describes a binder lifecycle step.
type ConversationEvent struct {
	Timestamp      time.Time `json:"timestamp"`
	Type           EventType `json:"type"`
	SessionID      string    `json:"session_id"`
	ConversationID string    `json:"conversation_id"`
	FlowID         string    `json:"flow_id"`
	Action         string    `json:"action,omitempty"`
	State          string    `json:"state"`
	PreviousState  string    `json:"previous_state,omitempty"`
}

// LifecycleHooks defines callbacks for binder observability.
// Any hook may be nil.
type LifecycleHooks struct {
	OnStart   func(context.Context, *ConversationEvent)
	OnResume  func(context.Context, *ConversationEvent)
	OnDenied  func(context.Context, *ConversationEvent)
	OnCapture func(context.Context, *ConversationEvent)
	OnEnd     func(context.Context, *ConversationEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	chain := func(a, b func(context.Context, *ConversationEvent)) func(context.Context, *ConversationEvent) {
		switch {
		case a == nil:
			return b
		case b == nil:
			return a
		}
		return func(ctx context.Context, e *ConversationEvent) {
			a(ctx, e)
			b(ctx, e)
		}
	}
	return LifecycleHooks{
		OnStart:   chain(h.OnStart, other.OnStart),
		OnResume:  chain(h.OnResume, other.OnResume),
		OnDenied:  chain(h.OnDenied, other.OnDenied),
		OnCapture: chain(h.OnCapture, other.OnCapture),
		OnEnd:     chain(h.OnEnd, other.OnEnd),
	}
}
