// Package http hosts conversational handlers on a chi router.
//
// Every request routed through Handle runs the binder's pre-dispatch phase,
// the handler, and the post-dispatch phase, in that order. The handler output
// is buffered so that a failing post-dispatch phase still yields a clean 500.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/pageflow/internal/logging"
	"github.com/aretw0/pageflow/pkg/binder"
	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultCookieName is the cookie carrying the session id.
const DefaultCookieName = "pageflow_session"

const tracerName = "github.com/aretw0/pageflow/pkg/adapters/http"

type sessionKey struct{}

// Binder is the conversation core as seen by the HTTP host.
type Binder interface {
	Pre(ctx context.Context, req binder.Request, target binder.Target) (context.Context, error)
	Post(ctx context.Context) error
	Release(ctx context.Context)
}

// Factory creates the handler instance serving one request.
type Factory func() http.Handler

// Server routes requests to conversational handlers.
type Server struct {
	router  chi.Router
	binder  Binder
	logger  *slog.Logger
	cookie  string
	secure  bool
	session func() string
	tracer  trace.Tracer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger used for failed requests.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCookieName changes the session cookie name.
func WithCookieName(name string) Option {
	return func(s *Server) {
		s.cookie = name
	}
}

// WithSecureCookie marks the session cookie as Secure.
func WithSecureCookie(secure bool) Option {
	return func(s *Server) {
		s.secure = secure
	}
}

// WithSessionIDs replaces the session id generator (uuid v4 by default).
func WithSessionIDs(next func() string) Option {
	return func(s *Server) {
		s.session = next
	}
}

// WithTracer sets the tracer for dispatch spans (the global provider by default).
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// NewServer creates a server dispatching through b.
func NewServer(b Binder, opts ...Option) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		binder:  b,
		logger:  logging.NewNop(),
		cookie:  DefaultCookieName,
		session: uuid.NewString,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.sessions)
	s.router.Get("/health", s.health)
	return s
}

// Router exposes the underlying router for non-conversational routes.
func (s *Server) Router() chi.Router { return s.router }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handle registers a conversational handler. route is the routing metadata
// handed to the binder, e.g. "signup:review".
func (s *Server) Handle(method, pattern, route string, factory Factory) {
	s.router.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.dispatch(w, r, route, factory())
	}))
}

// SessionID returns the session id attached by the server.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, route string, h http.Handler) {
	ctx, span := s.tracer.Start(r.Context(), "pageflow "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("pageflow.route", route),
			attribute.String("http.method", r.Method),
		),
	)
	defer span.End()
	r = r.WithContext(ctx)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		s.logger.Warn("Invalid form body", "route", route, "err", err)
		span.SetStatus(codes.Error, "invalid form body")
		return
	}

	req := binder.Request{
		SessionID: SessionID(ctx),
		Body:      binder.URLValues(r.PostForm),
		Query:     binder.URLValues(r.URL.Query()),
	}

	ctx, err := s.binder.Pre(ctx, req, binder.Target{Route: route, Handler: h})
	if err != nil {
		s.fail(w, r, route, err)
		return
	}
	// Post is the normal exit; Release only matters when the handler panics.
	defer s.binder.Release(ctx)

	if conv := binder.ConversationFrom(ctx); conv != nil {
		span.SetAttributes(
			attribute.String("pageflow.conversation_id", conv.ID()),
			attribute.String("pageflow.flow_id", conv.FlowID()),
		)
	}

	buf := newBufferedWriter()
	h.ServeHTTP(buf, r.WithContext(ctx))

	if err := s.binder.Post(ctx); err != nil {
		s.fail(w, r, route, err)
		return
	}
	span.SetAttributes(attribute.Int("http.status_code", buf.statusCode()))
	buf.flushTo(w)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, route string, err error) {
	span := trace.SpanFromContext(r.Context())
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var denied *domain.AccessDeniedError
	if errors.As(err, &denied) {
		s.logger.Warn("Access denied",
			"route", route,
			"request_id", middleware.GetReqID(r.Context()),
			"action", denied.Action,
			"allowed", denied.Allowed,
			"actual", denied.Actual,
		)
		http.Error(w, denied.Error(), http.StatusForbidden)
		return
	}

	s.logger.Error("Conversation dispatch failed",
		"route", route,
		"request_id", middleware.GetReqID(r.Context()),
		"err", err,
	)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// sessions attaches the session id from the cookie, issuing one when absent.
func (s *Server) sessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(s.cookie); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = s.session()
			http.SetCookie(w, &http.Cookie{
				Name:     s.cookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// bufferedWriter holds the handler output until the post-dispatch phase succeeded.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: make(http.Header)}
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedWriter) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

func (b *bufferedWriter) flushTo(w http.ResponseWriter) {
	for k, vs := range b.header {
		w.Header()[k] = vs
	}
	w.WriteHeader(b.statusCode())
	w.Write(b.body.Bytes())
}
