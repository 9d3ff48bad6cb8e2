// Package cli assembles the pageflow server and flow tooling from a config.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/pageflow"
	"github.com/aretw0/pageflow/internal/config"
	"github.com/aretw0/pageflow/internal/demo"
	"github.com/aretw0/pageflow/pkg/adapters/file"
	pfhttp "github.com/aretw0/pageflow/pkg/adapters/http"
	"github.com/aretw0/pageflow/pkg/adapters/memory"
	"github.com/aretw0/pageflow/pkg/adapters/redis"
	"github.com/aretw0/pageflow/pkg/adapters/sqlite"
	"github.com/aretw0/pageflow/pkg/binder"
	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/aretw0/pageflow/pkg/loader"
	"github.com/aretw0/pageflow/pkg/observability"
	"github.com/aretw0/pageflow/pkg/persistence/middleware"
	"github.com/aretw0/pageflow/pkg/ports"
	"github.com/aretw0/pageflow/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App is an assembled server.
type App struct {
	Engine  *pageflow.Engine
	Handler http.Handler
	Demo    bool // built-in signup wizard served
	closers []func() error
}

// Close releases the store connection and flushes traces, in reverse order
// of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Build wires store, locks, hooks, tracing, engine and HTTP server from cfg.
// Metrics are registered on reg and served on /metrics when enabled.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, reg *prometheus.Registry) (*App, error) {
	app := &App{Demo: cfg.Flows == ""}
	if err := build(ctx, app, cfg, logger, reg); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func build(ctx context.Context, app *App, cfg config.Config, logger *slog.Logger, reg *prometheus.Registry) error {
	opts := []pageflow.Option{
		pageflow.WithLogger(logger),
		pageflow.WithBinderOptions(
			binder.WithParameterName(cfg.Session.Parameter),
			binder.WithStrictLookup(cfg.Session.Strict),
		),
	}

	// 1. Store & locks
	store, err := openStore(ctx, app, cfg, logger, &opts)
	if err != nil {
		return err
	}
	opts = append(opts, pageflow.WithStore(store))

	// 2. Hooks
	hooks := observability.LogHooks(logger)
	if cfg.Metrics && reg != nil {
		hooks = hooks.Merge(observability.NewMetrics(reg).Hooks())
	}

	// 3. Tracing
	var srvOpts []pfhttp.Option
	if cfg.Tracing.Enabled {
		tp, closeOutput, err := NewTracerProvider(ctx, cfg.Tracing.Output, strings.TrimSpace(pageflow.Version))
		if err != nil {
			return err
		}
		app.onClose(closeOutput)
		app.onClose(func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return tp.Shutdown(shutdownCtx)
		})
		hooks = hooks.Merge(observability.TraceHooks())
		srvOpts = append(srvOpts, pfhttp.WithTracer(tp.Tracer("github.com/aretw0/pageflow")))
		logger.Info("Tracing enabled", "output", traceOutputName(cfg.Tracing.Output))
	}
	opts = append(opts, pageflow.WithLifecycleHooks(hooks))

	// 4. Flows & handlers
	if app.Demo {
		g, err := demo.Flow()
		if err != nil {
			return err
		}
		opts = append(opts, pageflow.WithFlows(g), pageflow.WithHandlers(demo.Metadata()))
	}

	eng, err := pageflow.New(cfg.Flows, opts...)
	if err != nil {
		return err
	}
	app.Engine = eng

	// 5. HTTP
	srvOpts = append(srvOpts,
		pfhttp.WithLogger(logger),
		pfhttp.WithCookieName(cfg.Session.Cookie),
		pfhttp.WithSecureCookie(cfg.Session.Secure),
	)
	srv := pfhttp.NewServer(eng.Binder(), srvOpts...)
	if app.Demo {
		demo.Mount(srv, cfg.Session.Parameter)
		srv.Router().Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/signup", http.StatusFound)
		})
	}
	if cfg.Metrics && reg != nil {
		srv.Router().Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	app.Handler = srv

	return nil
}

// openStore builds the configured conversation store, wrapped in the
// encryption middleware when a key is set. Lock options are appended to opts.
func openStore(ctx context.Context, app *App, cfg config.Config, logger *slog.Logger, opts *[]pageflow.Option) (ports.ConversationStore, error) {
	var store ports.ConversationStore
	switch cfg.Store.Driver {
	case "redis":
		rc := cfg.Store.Redis
		rs := redis.New(rc.Addr, rc.Password, rc.DB, redis.WithPrefix(rc.Prefix), redis.WithTTL(rc.TTL))
		app.onClose(rs.Close)
		if err := rs.Client().Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", rc.Addr, err)
		}
		store = rs
		if rc.Lock {
			*opts = append(*opts, pageflow.WithLocker(
				redis.NewLocker(rs.Client(), rc.Prefix),
				session.WithLockTTL(rc.LockTTL),
			))
		}
		logger.Info("Using redis store", "addr", rc.Addr, "lock", rc.Lock, "ttl", rc.TTL)
	case "sqlite":
		sc := cfg.Store.SQLite
		ss, err := sqlite.Open(sc.Path)
		if err != nil {
			return nil, err
		}
		app.onClose(ss.Close)
		store = ss
		if sc.TTL > 0 {
			go purge(ctx, ss, sc.TTL, logger)
		}
		logger.Info("Using sqlite store", "path", sc.Path, "ttl", sc.TTL)
	case "file":
		store = file.New(cfg.Store.File.Dir)
		logger.Info("Using file store", "dir", cfg.Store.File.Dir)
	default:
		store = memory.NewStore()
		logger.Info("Using in-memory store")
	}

	if enc := cfg.Store.Encryption; enc.Enabled() {
		active, fallback, err := enc.Keys()
		if err != nil {
			return nil, err
		}
		store = middleware.Chain(store, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
		logger.Info("Conversation attributes encrypted at rest", "fallback_keys", len(fallback))
	}
	return store, nil
}

// purge drops idle sqlite conversations until ctx is done.
func purge(ctx context.Context, store *sqlite.Store, ttl time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.Purge(ctx, now.Add(-ttl))
			if err != nil {
				logger.Warn("Failed to purge idle conversations", "err", err)
				continue
			}
			if n > 0 {
				logger.Debug("Purged idle conversations", "count", n)
			}
		}
	}
}

// LoadFlows reads the flows at path, or the demo flow when path is empty.
func LoadFlows(path string) ([]*domain.Graph, error) {
	if path == "" {
		g, err := demo.Flow()
		if err != nil {
			return nil, err
		}
		return []*domain.Graph{g}, nil
	}
	return loader.Load(path)
}

// FindFlow returns the flow with the given id, or the only flow when id is empty.
func FindFlow(graphs []*domain.Graph, id string) (*domain.Graph, error) {
	if id == "" {
		if len(graphs) == 1 {
			return graphs[0], nil
		}
		ids := make([]string, len(graphs))
		for i, g := range graphs {
			ids[i] = g.ID()
		}
		return nil, fmt.Errorf("several flows found %v: pass a flow id", ids)
	}
	for _, g := range graphs {
		if g.ID() == id {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownFlow, id)
}
