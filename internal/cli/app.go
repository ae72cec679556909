package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/ifgate/internal/config"
	"github.com/aretw0/ifgate/pkg/adapters/memory"
	"github.com/aretw0/ifgate/pkg/adapters/process"
	"github.com/aretw0/ifgate/pkg/adapters/redis"
	"github.com/aretw0/ifgate/pkg/adapters/sqlite"
	"github.com/aretw0/ifgate/pkg/observability"
	"github.com/aretw0/ifgate/pkg/orchestrator"
	"github.com/aretw0/ifgate/pkg/persistence/middleware"
	"github.com/aretw0/ifgate/pkg/ports"
	"github.com/aretw0/ifgate/pkg/session"
	"go.opentelemetry.io/otel"
)

// App is a fully wired ifgate instance.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Store    ports.TranscriptStore
	Catalog  *process.Catalog
	Registry *session.Registry
	Metrics  *observability.Metrics
	Service  *orchestrator.Service

	closeStore func() error
}

// AppOption tweaks NewApp, mostly for tests.
type AppOption func(*appOptions)

type appOptions struct {
	launcherOpts []process.Option
}

// WithLauncherOptions appends options to every interpreter the app starts.
func WithLauncherOptions(opts ...process.Option) AppOption {
	return func(o *appOptions) {
		o.launcherOpts = append(o.launcherOpts, opts...)
	}
}

// NewApp wires store, catalog, launcher, registry, metrics and service from cfg.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...AppOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	games, err := process.LoadGames(cfg.CatalogPath())
	if err != nil {
		return nil, fmt.Errorf("error loading game catalog: %w", err)
	}
	catalog := process.NewCatalog(cfg.GamePath, games)

	store, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	launcherOpts := []process.Option{
		process.WithTurnTimeout(cfg.TurnTimeout),
		process.WithMarkers(cfg.PagerMarker, cfg.PromptMarker),
		process.WithLogger(logger),
	}
	launcher := process.NewLauncher(cfg.Interpreter, cfg.InterpreterArgs, append(launcherOpts, o.launcherOpts...)...)

	metrics := observability.NewMetrics()
	hooks := orchestrator.LifecycleHooks(store, logger).Merge(metrics.Hooks())
	if logger.Enabled(ctx, slog.LevelDebug) {
		hooks = hooks.Merge(debugHooks(logger))
	}

	registry := session.NewRegistry(launcher,
		session.WithLogger(logger),
		session.WithMaxQueue(cfg.MaxQueue),
		session.WithHooks(hooks),
	)
	metrics.ObserveActive(registry.Len)

	svc := orchestrator.New(registry, store, catalog,
		orchestrator.WithLogger(logger),
		orchestrator.WithMaxCommandSize(cfg.MaxCommandSize),
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Store:      store,
		Catalog:    catalog,
		Registry:   registry,
		Metrics:    metrics,
		Service:    svc,
		closeStore: closeStore,
	}, nil
}

// RunSweeper evicts idle sessions until ctx is done.
func (a *App) RunSweeper(ctx context.Context) {
	session.RunSweeper(ctx, a.Registry, a.Config.SweepInterval, a.Config.IdleTimeout)
}

// Close terminates every live session, then closes the store.
func (a *App) Close() error {
	return errors.Join(a.Service.Close(), a.closeStore())
}

// OpenStore opens the transcript store selected by cfg.Store, traced and, when a
// transcript key is configured, encrypted.
func OpenStore(ctx context.Context, cfg config.Config) (ports.TranscriptStore, func() error, error) {
	store, closeFn, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	mws := []middleware.Middleware{
		middleware.NewTracingMiddleware(otel.Tracer("github.com/aretw0/ifgate/pkg/persistence"), cfg.Store),
	}

	active, fallback, err := cfg.TranscriptKeys()
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	if active != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			_ = closeFn()
			return nil, nil, err
		}
		mws = append(mws, enc)
	}

	return middleware.Chain(store, mws...), closeFn, nil
}

func openBackend(ctx context.Context, cfg config.Config) (ports.TranscriptStore, func() error, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.NewStore(), func() error { return nil }, nil
	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening sqlite store: %w", err)
		}
		return s, s.Close, nil
	case config.StoreRedis:
		s, err := redis.NewFromURL(ctx, cfg.RedisURL, redis.WithTTL(cfg.RedisTTL))
		if err != nil {
			return nil, nil, fmt.Errorf("error opening redis store: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// debugHooks logs every registry event.
func debugHooks(logger *slog.Logger) session.Hooks {
	return session.Hooks{
		OnCreate: func(id string) {
			logger.Debug("Hook: session created", "session_id", id)
		},
		OnTurn: func(ev session.TurnEvent) {
			logger.Debug("Hook: turn", "session_id", ev.SessionID, "seq", ev.Seq, "partial", ev.Partial, "duration", ev.Duration, "err", ev.Err)
		},
		OnEvict: func(id string) {
			logger.Debug("Hook: session evicted", "session_id", id)
		},
		OnTerminate: func(id string) {
			logger.Debug("Hook: session terminated", "session_id", id)
		},
		OnFailure: func(id string, err error) {
			logger.Debug("Hook: session failed", "session_id", id, "err", err)
		},
	}
}
