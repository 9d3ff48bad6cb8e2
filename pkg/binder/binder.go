// Package binder attaches inbound requests to conversations.
//
// A host dispatch pipeline calls Pre before the target handler runs and Post
// after the handler produced its output. Pre resolves or creates the
// conversation, enforces the state guard and restores stateful fields onto
// the handler; Post captures the fields back, or discards the conversation
// once its flow reached a final state.
package binder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/pageflow/internal/idgen"
	"github.com/aretw0/pageflow/internal/logging"
	"github.com/aretw0/pageflow/pkg/conversation"
	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/aretw0/pageflow/pkg/flow"
	"github.com/aretw0/pageflow/pkg/metadata"
	"github.com/aretw0/pageflow/pkg/ports"
	"github.com/aretw0/pageflow/pkg/session"
)

// FlowSource provides graphs and fresh engines by flow id (catalog.Catalog).
type FlowSource interface {
	Lookup(flowID string) (*domain.Graph, bool)
	Graph(flowID string) (*domain.Graph, error)
	Engine(flowID string) (*flow.Engine, error)
}

// HandlerSource provides handler metadata by concrete type (metadata.Catalog).
type HandlerSource interface {
	Lookup(handler any) (*metadata.Metadata, error)
}

// Binder is the conversation orchestration core. It is safe for concurrent
// use; per-conversation serialisation is delegated to a session.Manager.
type Binder struct {
	flows    FlowSource
	handlers HandlerSource
	store    ports.ConversationStore
	resolver ports.RouteResolver
	ids      *idgen.Generator
	locks    *session.Manager
	param    string
	strict   bool
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
}

// Option configures the Binder.
type Option func(*Binder)

// WithParameterName changes the request parameter carrying the conversation id.
func WithParameterName(name string) Option {
	return func(b *Binder) {
		b.param = name
	}
}

// WithResolver replaces the default ColonResolver.
func WithResolver(r ports.RouteResolver) Option {
	return func(b *Binder) {
		b.resolver = r
	}
}

// WithRandomSource sets the secure byte source seeding conversation ids.
func WithRandomSource(src ports.RandomSource) Option {
	return func(b *Binder) {
		b.ids = idgen.New(src)
	}
}

// WithLockManager shares a lock manager (e.g. one backed by a distributed locker).
func WithLockManager(m *session.Manager) Option {
	return func(b *Binder) {
		b.locks = m
	}
}

// WithStrictLookup makes an unknown conversation id fail with
// domain.ErrConversationNotFound instead of starting a new conversation.
func WithStrictLookup(strict bool) Option {
	return func(b *Binder) {
		b.strict = strict
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Binder) {
		b.hooks = b.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Binder) {
		b.logger = logger
	}
}

// New creates a Binder.
func New(flows FlowSource, handlers HandlerSource, store ports.ConversationStore, opts ...Option) *Binder {
	b := &Binder{
		flows:    flows,
		handlers: handlers,
		store:    store,
		resolver: ColonResolver{},
		ids:      idgen.New(nil),
		locks:    session.NewManager(),
		param:    DefaultParameterName,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ParameterName returns the request parameter carrying the conversation id.
func (b *Binder) ParameterName() string { return b.param }

// Registry returns the conversation registry of a session.
func (b *Binder) Registry(sessionID string) *conversation.Registry {
	return conversation.NewRegistry(sessionID, b.store, b.flows)
}

// Pre runs before the handler. When the target is bound to a flow it returns
// a context carrying the Scope; otherwise ctx is returned unchanged.
//
// On success the conversation stays locked until Post (or Release) is called
// with the returned context. On error nothing is held.
func (b *Binder) Pre(ctx context.Context, req Request, target Target) (context.Context, error) {
	// 1. Resolve the flow from the routing metadata
	flowID, action, ok := b.resolver.Resolve(target.Route)
	if !ok {
		return ctx, nil
	}
	if _, known := b.flows.Lookup(flowID); !known {
		return ctx, nil
	}

	// 2. Session registry
	registry := b.Registry(req.SessionID)

	// 3-4. Existing conversation (a miss falls through to creation)
	conv, release, err := b.resume(ctx, registry, flowID, b.conversationID(req))
	if err != nil {
		return ctx, err
	}

	meta, err := b.handlers.Lookup(target.Handler)
	if err != nil {
		if release != nil {
			release()
		}
		return ctx, err
	}

	// 5. New conversation
	started := false
	if conv == nil {
		conv, release, err = b.start(ctx, registry, flowID, target.Handler, meta)
		if err != nil {
			return ctx, err
		}
		started = true
	}

	scope := &Scope{
		Conversation: conv,
		Handler:      target.Handler,
		Metadata:     meta,
		SessionID:    req.SessionID,
		Action:       action,
		Started:      started,
		registry:     registry,
		release:      release,
	}

	// 7. Guard
	if !meta.Allows(action, conv.Current()) {
		denied := &domain.AccessDeniedError{
			Handler: meta.HandlerName(),
			Action:  action,
			Allowed: meta.AcceptableStates(action),
			Actual:  conv.Current(),
		}
		b.emit(ctx, b.hooks.OnDenied, domain.EventAccessDenied, scope)
		// The client never saw the id of a conversation started here.
		if started {
			if err := registry.Remove(ctx, conv); err != nil {
				b.logger.Warn("Failed to discard denied conversation", "conversation_id", conv.ID(), "err", err)
			}
		}
		release()
		return ctx, denied
	}

	// 8. Restore stateful fields
	for _, f := range meta.Fields() {
		v, ok := conv.Lookup(f.Name())
		if !ok {
			continue
		}
		if err := f.Set(target.Handler, v); err != nil {
			release()
			return ctx, err
		}
	}

	if !started {
		b.emit(ctx, b.hooks.OnResume, domain.EventConversationResume, scope)
	}

	// 9. Publish
	return withScope(ctx, scope), nil
}

// Post runs after the handler. It is a no-op for requests Pre did not bind,
// and for a scope that was already closed.
func (b *Binder) Post(ctx context.Context) error {
	scope, ok := ScopeFrom(ctx)
	if !ok || !scope.close() {
		return nil
	}
	defer scope.release()

	conv := scope.Conversation

	// 1. Finished: discard the conversation
	if conv.IsEndState() {
		if err := conv.End(); err != nil {
			return err
		}
		if err := scope.registry.Remove(ctx, conv); err != nil {
			return err
		}
		for _, f := range scope.Metadata.Fields() {
			conv.Remove(f.Name())
		}
		b.emit(ctx, b.hooks.OnEnd, domain.EventConversationEnd, scope)
		return nil
	}

	// 2. Capture stateful fields for the next request
	for _, f := range scope.Metadata.Fields() {
		v, err := f.Get(scope.Handler)
		if err != nil {
			return err
		}
		conv.Set(f.Name(), v)
	}
	if err := scope.registry.Save(ctx, conv); err != nil {
		return err
	}
	b.emit(ctx, b.hooks.OnCapture, domain.EventCapture, scope)
	return nil
}

// Release unlocks the conversation without capturing anything.
// Hosts use it when they abandon a request between Pre and Post.
func (b *Binder) Release(ctx context.Context) {
	if scope, ok := ScopeFrom(ctx); ok && scope.close() {
		scope.release()
	}
}

func (b *Binder) conversationID(req Request) string {
	for _, src := range []Params{req.Body, req.Query} {
		if src == nil {
			continue
		}
		if id, ok := src.Lookup(b.param); ok {
			return id
		}
	}
	return ""
}

// resume locks and loads an existing conversation of flowID.
// A nil conversation with a nil error means "start a new one".
func (b *Binder) resume(ctx context.Context, registry *conversation.Registry, flowID, id string) (*conversation.Conversation, session.ReleaseFunc, error) {
	if id == "" {
		return nil, nil, nil
	}

	release, err := b.locks.Acquire(ctx, session.Key(registry.SessionID(), id))
	if err != nil {
		return nil, nil, err
	}

	conv, err := registry.FindByID(ctx, id)
	var unknownState *domain.UnknownStateError
	switch {
	case err == nil && conv.FlowID() == flowID:
		return conv, release, nil
	case err == nil:
		b.logger.Debug("Conversation belongs to another flow",
			"conversation_id", id,
			"flow_id", conv.FlowID(),
			"requested_flow", flowID,
		)
	case errors.Is(err, domain.ErrConversationNotFound):
		b.logger.Debug("Conversation not found", "conversation_id", id, "session_id", registry.SessionID())
	case errors.Is(err, domain.ErrUnknownFlow), errors.As(err, &unknownState):
		b.logger.Warn("Discarding stale conversation", "conversation_id", id, "err", err)
	default:
		release()
		return nil, nil, err
	}

	release()
	if b.strict {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrConversationNotFound, id)
	}
	return nil, nil, nil
}

// start creates, initialises and registers a new conversation.
func (b *Binder) start(ctx context.Context, registry *conversation.Registry, flowID string, handler any, meta *metadata.Metadata) (*conversation.Conversation, session.ReleaseFunc, error) {
	engine, err := b.flows.Engine(flowID)
	if err != nil {
		return nil, nil, err
	}

	id, err := b.ids.Next()
	if err != nil {
		return nil, nil, err
	}

	conv := conversation.New(id, engine)
	if err := conv.Start(); err != nil {
		return nil, nil, err
	}

	for _, init := range meta.Inits() {
		if err := init.Invoke(handler); err != nil {
			if errors.Is(err, metadata.ErrNotInvocable) {
				return nil, nil, &domain.MetadataNotFoundError{
					Handler: meta.HandlerName(),
					Flow:    flowID,
					Routine: init.Name(),
					Err:     err,
				}
			}
			return nil, nil, fmt.Errorf("init routine %s: %w", init.Name(), err)
		}
	}

	release, err := b.locks.Acquire(ctx, session.Key(registry.SessionID(), id))
	if err != nil {
		return nil, nil, err
	}
	if err := registry.Add(ctx, conv); err != nil {
		release()
		return nil, nil, err
	}

	b.logger.Debug("Conversation started",
		"conversation_id", id,
		"flow_id", flowID,
		"session_id", registry.SessionID(),
	)
	b.emit(ctx, b.hooks.OnStart, domain.EventConversationStart, &Scope{
		Conversation: conv,
		SessionID:    registry.SessionID(),
	})
	return conv, release, nil
}

func (b *Binder) emit(ctx context.Context, hook func(context.Context, *domain.ConversationEvent), typ domain.EventType, scope *Scope) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.ConversationEvent{
		Timestamp:      time.Now(),
		Type:           typ,
		SessionID:      scope.SessionID,
		ConversationID: scope.Conversation.ID(),
		FlowID:         scope.Conversation.FlowID(),
		Action:         scope.Action,
		State:          scope.Conversation.Current(),
		PreviousState:  scope.Conversation.Previous(),
	})
}
