// Package app wires the salesnote subsystems into a running service.
//
// The App struct owns the full lifecycle: New connects the catalog and
// ledger backends and builds the extraction engine, Handler exposes the
// draft API over HTTP, and Shutdown tears everything down in order.
//
// For testing, inject in-memory implementations via functional options
// (WithCatalog, WithLedger, WithMetrics). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/salesnote/internal/catalog"
	"github.com/MrWong99/salesnote/internal/config"
	"github.com/MrWong99/salesnote/internal/draft"
	"github.com/MrWong99/salesnote/internal/health"
	"github.com/MrWong99/salesnote/internal/ledger"
	"github.com/MrWong99/salesnote/internal/observe"
	"github.com/MrWong99/salesnote/internal/pipeline"
	"github.com/MrWong99/salesnote/internal/resilience"
	"github.com/MrWong99/salesnote/internal/resolve"
	"github.com/MrWong99/salesnote/pkg/provider/llm"
	"github.com/MrWong99/salesnote/pkg/provider/transcribe"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM           llm.Provider
	Transcription transcribe.Provider
}

// App owns all subsystem lifetimes and serves the draft API.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	catalog     pipeline.CatalogReader
	ledger      ledger.Store
	invoker     *pipeline.Invoker
	transcriber *pipeline.Transcriber
	drafts      *draft.Manager
	checkers    []health.Checker
	pools       map[string]*pgxpool.Pool

	// engine is swapped when generation or matching settings are reloaded.
	engine atomic.Pointer[pipeline.Engine]
	debug  atomic.Bool

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithCatalog injects a catalog instead of creating one from config.
func WithCatalog(c pipeline.CatalogReader) Option {
	return func(a *App) { a.catalog = c }
}

// WithLedger injects a ledger store instead of creating one from config.
// The store is still wrapped with metrics.
func WithLedger(s ledger.Store) Option {
	return func(a *App) { a.ledger = s }
}

// WithMetrics records on m instead of observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if providers == nil || providers.LLM == nil {
		return nil, errors.New("app: an llm provider is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		pools:     make(map[string]*pgxpool.Pool),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.debug.Store(cfg.Server.Debug)

	// 1. Catalog
	if err := a.initCatalog(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init catalog: %w", err)
	}

	// 2. Ledger
	if err := a.initLedger(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init ledger: %w", err)
	}

	// 3. Completion and transcription behind circuit breakers
	a.initProviders()

	// 4. Engine
	eng, err := a.buildEngine(cfg)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: build engine: %w", err)
	}
	a.engine.Store(eng)

	// 5. Draft sessions
	a.drafts = draft.NewManager(draft.WithManagerMetrics(a.metrics))

	slog.Info("app initialised",
		"catalog", cfg.Catalog.Backend,
		"ledger", cfg.Ledger.Backend,
		"llm", cfg.Providers.LLM.Name,
		"transcription", a.transcriber != nil,
	)
	return a, nil
}

// initCatalog opens the configured catalog backend. The memory backend is
// seeded from catalog.seed_file when set.
func (a *App) initCatalog(ctx context.Context) error {
	if a.catalog != nil {
		return nil
	}
	cc := a.cfg.Catalog

	switch cc.Backend {
	case config.CatalogPostgres:
		pool, err := a.pool(ctx, cc.PostgresDSN)
		if err != nil {
			return err
		}
		store := catalog.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		if cc.CacheSize > 0 {
			a.catalog = catalog.NewCachedStore(store, cc.CacheSize, cc.CacheTTL)
		} else {
			a.catalog = store
		}

	default:
		mem := catalog.NewMemStore()
		if cc.SeedFile != "" {
			cf, err := catalog.LoadFile(cc.SeedFile)
			if err != nil {
				return err
			}
			vendors, items, err := catalog.Import(ctx, mem, cc.SeedOrganization, cf)
			if err != nil {
				return err
			}
			slog.Info("catalog seeded", "file", cc.SeedFile, "vendors", vendors, "items", items)
		}
		a.catalog = mem
	}
	return nil
}

// initLedger opens the configured ledger backend and wraps it with
// metrics.
func (a *App) initLedger(ctx context.Context) error {
	lc := a.cfg.Ledger
	backend := string(lc.Backend)

	if a.ledger == nil {
		switch lc.Backend {
		case config.LedgerPostgres:
			pool, err := a.pool(ctx, lc.PostgresDSN)
			if err != nil {
				return err
			}
			store := ledger.NewPostgresStore(pool)
			if err := store.Migrate(ctx); err != nil {
				return err
			}
			a.ledger = store

		case config.LedgerSQLite:
			store, err := ledger.OpenSQLite(lc.Path)
			if err != nil {
				return err
			}
			a.closers = append(a.closers, store.Close)
			a.ledger = store

		case config.LedgerKafka:
			store := ledger.NewKafkaStore(strings.Join(lc.Kafka.Brokers, ","), lc.Kafka.Topic)
			a.closers = append(a.closers, store.Close)
			a.ledger = store

		default:
			store, err := ledger.NewFileStore(lc.Path)
			if err != nil {
				return err
			}
			a.ledger = store
		}
	} else if backend == "" {
		backend = "injected"
	}

	a.ledger = ledger.NewInstrumented(a.ledger, backend, a.metrics)
	return nil
}

// pool returns a shared pgx pool for dsn, so a catalog and a ledger on the
// same database use one pool. The pool is pinged and registered as a
// readiness check.
func (a *App) pool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if p, ok := a.pools[dsn]; ok {
		return p, nil
	}
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	a.pools[dsn] = p
	a.closers = append(a.closers, func() error { p.Close(); return nil })
	a.checkers = append(a.checkers, health.PingChecker(fmt.Sprintf("postgres-%d", len(a.pools)), p))
	return p, nil
}

// initProviders builds the completion invoker and, when a transcription
// provider is configured, the transcriber. Each gets its own breaker.
func (a *App) initProviders() {
	a.invoker = pipeline.NewInvoker(a.providers.LLM,
		pipeline.WithProviderName(a.cfg.Providers.LLM.Name),
		pipeline.WithBreaker(a.breaker("llm")),
		pipeline.WithMetrics(a.metrics),
	)
	if a.providers.Transcription != nil {
		a.transcriber = pipeline.NewTranscriber(a.providers.Transcription,
			pipeline.WithProviderName(a.cfg.Providers.Transcription.Name),
			pipeline.WithBreaker(a.breaker("transcription")),
			pipeline.WithMetrics(a.metrics),
		)
	}
}

func (a *App) breaker(name string) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.Config{
		Name:         name,
		MaxFailures:  a.cfg.CircuitBreaker.MaxFailures,
		ResetTimeout: a.cfg.CircuitBreaker.ResetTimeout,
		OnStateChange: func(name string, from, to resilience.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
			a.metrics.RecordBreakerTransition(context.Background(), name, to.String())
		},
	})
}

// buildEngine creates an engine from the generation and matching sections
// of cfg.
func (a *App) buildEngine(cfg *config.Config) (*pipeline.Engine, error) {
	m := cfg.Matching
	var ropts []resolve.Option
	if m.Similarity != "" {
		sim, ok := resolve.ParseSimilarity(m.Similarity)
		if !ok {
			return nil, fmt.Errorf("unknown similarity %q", m.Similarity)
		}
		ropts = append(ropts, resolve.WithSimilarity(sim))
	}
	if m.CustomerThreshold > 0 {
		ropts = append(ropts, resolve.WithCustomerThreshold(m.CustomerThreshold))
	}
	if m.ProductThreshold > 0 {
		ropts = append(ropts, resolve.WithProductThreshold(m.ProductThreshold))
	}

	opts := []pipeline.Option{
		pipeline.WithResolver(resolve.New(ropts...)),
		pipeline.WithParams(pipeline.Params{
			Model:       cfg.Providers.LLM.Model,
			Temperature: cfg.Generation.Temperature,
			MaxTokens:   cfg.Generation.MaxTokens,
		}),
		pipeline.WithEngineMetrics(a.metrics),
	}
	if m.Suggestions > 0 {
		opts = append(opts, pipeline.WithSuggestionLimit(m.Suggestions))
	}
	return pipeline.NewEngine(a.catalog, a.invoker, opts...), nil
}

// ApplyConfig applies the hot-reloadable parts of a changed config. It is
// shaped to serve as a [config.ChangeFunc]. Runs already in flight keep the
// engine they started with.
func (a *App) ApplyConfig(_, next *config.Config, d config.ConfigDiff) {
	if d.DebugChanged {
		a.debug.Store(next.Server.Debug)
		slog.Info("debug output toggled", "debug", next.Server.Debug)
	}
	if d.GenerationChanged || d.MatchingChanged {
		eng, err := a.buildEngine(next)
		if err != nil {
			slog.Error("config reload rejected", "err", err)
			return
		}
		a.engine.Store(eng)
		slog.Info("engine rebuilt", "generation", d.GenerationChanged, "matching", d.MatchingChanged)
	}
}

// Engine returns the engine new runs use.
func (a *App) Engine() *pipeline.Engine { return a.engine.Load() }

// Drafts returns the draft session manager.
func (a *App) Drafts() *draft.Manager { return a.drafts }

// Shutdown tears down all subsystems in init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers), "active_drafts", a.drafts.Active())

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll releases whatever a failed New opened.
func (a *App) closeAll() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			slog.Warn("closer error", "err", err)
		}
	}
}
