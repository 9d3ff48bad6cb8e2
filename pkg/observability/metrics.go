package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "pageflow"

// Metrics holds the Prometheus collectors fed by the binder.
type Metrics struct {
	Started  *prometheus.CounterVec
	Resumed  *prometheus.CounterVec
	Captured *prometheus.CounterVec
	Ended    *prometheus.CounterVec
	Denied   *prometheus.CounterVec
	Active   *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "conversations_started_total",
			Help:      "Total number of conversations started",
		}, []string{"flow"}),
		Resumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "conversations_resumed_total",
			Help:      "Total number of requests resuming an existing conversation",
		}, []string{"flow"}),
		Captured: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "state_captures_total",
			Help:      "Total number of post-dispatch captures, by resulting state",
		}, []string{"flow", "state"}),
		Ended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "conversations_ended_total",
			Help:      "Total number of conversations that reached a final state",
		}, []string{"flow", "state"}),
		Denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "access_denied_total",
			Help:      "Total number of requests rejected by the state guard",
		}, []string{"flow", "action", "state"}),
		Active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "conversations_active",
			Help:      "Conversations started and not yet ended by this process",
		}, []string{"flow"}),
	}
	if reg != nil {
		reg.MustRegister(m.Started, m.Resumed, m.Captured, m.Ended, m.Denied, m.Active)
	}
	return m
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStart: func(_ context.Context, e *domain.ConversationEvent) {
			m.Started.WithLabelValues(e.FlowID).Inc()
			m.Active.WithLabelValues(e.FlowID).Inc()
		},
		OnResume: func(_ context.Context, e *domain.ConversationEvent) {
			m.Resumed.WithLabelValues(e.FlowID).Inc()
		},
		OnCapture: func(_ context.Context, e *domain.ConversationEvent) {
			m.Captured.WithLabelValues(e.FlowID, e.State).Inc()
		},
		OnEnd: func(_ context.Context, e *domain.ConversationEvent) {
			// State is the final marker once End ran; Previous is the state
			// the flow actually finished in.
			m.Ended.WithLabelValues(e.FlowID, e.PreviousState).Inc()
			m.Active.WithLabelValues(e.FlowID).Dec()
		},
		OnDenied: func(_ context.Context, e *domain.ConversationEvent) {
			m.Denied.WithLabelValues(e.FlowID, e.Action, e.State).Inc()
		},
	}
}

// LogHooks returns lifecycle hooks writing one structured record per event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	log := func(level slog.Level) func(context.Context, *domain.ConversationEvent) {
		return func(ctx context.Context, e *domain.ConversationEvent) {
			logger.Log(ctx, level, string(e.Type),
				"session_id", e.SessionID,
				"conversation_id", e.ConversationID,
				"flow_id", e.FlowID,
				"action", e.Action,
				"state", e.State,
				"previous_state", e.PreviousState,
			)
		}
	}
	return domain.LifecycleHooks{
		OnStart:   log(slog.LevelInfo),
		OnResume:  log(slog.LevelDebug),
		OnCapture: log(slog.LevelDebug),
		OnEnd:     log(slog.LevelInfo),
		OnDenied:  log(slog.LevelWarn),
	}
}
