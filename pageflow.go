package pageflow

import (
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/aretw0/pageflow/internal/logging"
	"github.com/aretw0/pageflow/internal/validator"
	"github.com/aretw0/pageflow/pkg/adapters/memory"
	"github.com/aretw0/pageflow/pkg/binder"
	"github.com/aretw0/pageflow/pkg/catalog"
	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/aretw0/pageflow/pkg/loader"
	"github.com/aretw0/pageflow/pkg/metadata"
	"github.com/aretw0/pageflow/pkg/ports"
	"github.com/aretw0/pageflow/pkg/session"
)

// Version is the library version.
//
//go:embed VERSION
var Version string

// Engine is the high-level entry point for the pageflow library.
// It wires the flow catalog, the handler metadata catalog, a conversation
// store and the binder.
type Engine struct {
	flows      *catalog.Catalog
	handlers   *metadata.Catalog
	store      ports.ConversationStore
	locker     ports.DistributedLocker
	lockOpts   []session.Option
	binder     *binder.Binder
	binderOpts []binder.Option
	graphs     []*domain.Graph
	metas      []*metadata.Metadata
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	skipChecks bool
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the conversation store (in-memory by default).
func WithStore(store ports.ConversationStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker serialises requests on one conversation across processes.
func WithLocker(locker ports.DistributedLocker, opts ...session.Option) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockOpts = append(e.lockOpts, opts...)
	}
}

// WithFlows registers graphs built in code (see pkg/dsl).
func WithFlows(graphs ...*domain.Graph) Option {
	return func(e *Engine) {
		e.graphs = append(e.graphs, graphs...)
	}
}

// WithHandlers registers handler metadata.
func WithHandlers(ms ...*metadata.Metadata) Option {
	return func(e *Engine) {
		e.metas = append(e.metas, ms...)
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithBinderOptions forwards options to the binder (parameter name, strict
// lookup, route resolver...).
func WithBinderOptions(opts ...binder.Option) Option {
	return func(e *Engine) {
		e.binderOpts = append(e.binderOpts, opts...)
	}
}

// WithoutValidation registers flows that fail the reachability checks.
func WithoutValidation() Option {
	return func(e *Engine) {
		e.skipChecks = true
	}
}

// New initializes a new Engine.
// flowPath is a flow file or directory; it may be empty when every flow is
// provided through WithFlows.
func New(flowPath string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	// 1. Flows
	graphs := eng.graphs
	if flowPath != "" {
		loaded, err := loader.Load(flowPath)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, loaded...)
	}
	if len(graphs) == 0 {
		return nil, fmt.Errorf("no flows: provide a flow path or WithFlows")
	}
	if !eng.skipChecks {
		for _, g := range graphs {
			if err := validator.ValidateGraph(g); err != nil {
				return nil, err
			}
		}
	}

	var err error
	if eng.flows, err = catalog.New(graphs...); err != nil {
		return nil, err
	}

	// 2. Handlers
	if eng.handlers, err = metadata.NewCatalog(eng.metas...); err != nil {
		return nil, err
	}

	// 3. Binder
	lockOpts := append([]session.Option{session.WithLogger(eng.logger)}, eng.lockOpts...)
	if eng.locker != nil {
		lockOpts = append(lockOpts, session.WithLocker(eng.locker))
	}
	binderOpts := []binder.Option{
		binder.WithLogger(eng.logger),
		binder.WithLockManager(session.NewManager(lockOpts...)),
		binder.WithLifecycleHooks(eng.hooks),
	}
	eng.binder = binder.New(eng.flows, eng.handlers, eng.store, append(binderOpts, eng.binderOpts...)...)

	eng.logger.Debug("Engine ready", "flows", eng.flows.IDs(), "handlers", eng.handlers.Len())
	return eng, nil
}

// Binder returns the pre/post dispatch core.
func (e *Engine) Binder() *binder.Binder { return e.binder }

// Flows returns the flow catalog.
func (e *Engine) Flows() *catalog.Catalog { return e.flows }

// Handlers returns the handler metadata catalog.
func (e *Engine) Handlers() *metadata.Catalog { return e.handlers }

// Store returns the conversation store.
func (e *Engine) Store() ports.ConversationStore { return e.store }

// Inspect returns the graph of a flow.
func (e *Engine) Inspect(flowID string) (*domain.Graph, error) {
	return e.flows.Graph(flowID)
}
