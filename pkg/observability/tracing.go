package observability

import (
	"context"

	"github.com/aretw0/pageflow/pkg/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TraceHooks records every lifecycle event on the span active in the hook's
// context (the dispatch span started by the HTTP adapter). Without a recording
// span the hooks do nothing.
func TraceHooks() domain.LifecycleHooks {
	record := func(ctx context.Context, e *domain.ConversationEvent) {
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		attrs := []attribute.KeyValue{
			attribute.String("pageflow.flow_id", e.FlowID),
			attribute.String("pageflow.conversation_id", e.ConversationID),
			attribute.String("pageflow.state", e.State),
		}
		if e.Action != "" {
			attrs = append(attrs, attribute.String("pageflow.action", e.Action))
		}
		if e.PreviousState != "" {
			attrs = append(attrs, attribute.String("pageflow.previous_state", e.PreviousState))
		}
		span.AddEvent(string(e.Type), trace.WithTimestamp(e.Timestamp), trace.WithAttributes(attrs...))

		if e.Type == domain.EventAccessDenied {
			span.SetStatus(codes.Error, "access denied")
		}
	}
	return domain.LifecycleHooks{
		OnStart:   record,
		OnResume:  record,
		OnCapture: record,
		OnEnd:     record,
		OnDenied:  record,
	}
}
