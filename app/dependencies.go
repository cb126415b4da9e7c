package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradelens/ai-gateway/config"
	"github.com/tradelens/ai-gateway/internal/observability"
	"github.com/tradelens/ai-gateway/repositories"
	"github.com/tradelens/ai-gateway/repositories/postgres"
	"github.com/tradelens/ai-gateway/services/cache"
	"github.com/tradelens/ai-gateway/services/gateway"
	"github.com/tradelens/ai-gateway/services/ledger"
	"github.com/tradelens/ai-gateway/services/providers"
	"github.com/tradelens/ai-gateway/services/providers/gemini"
	"github.com/tradelens/ai-gateway/services/providers/openai"
)

const (
	cachePingTimeout     = 2 * time.Second
	defaultCleanupEvery  = time.Minute
	defaultLedgerTimeout = 5 * time.Second
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory; nil when the ledger database is not configured
	RepoFactory *postgres.RepositoryFactory
	Generations repositories.GenerationRepository

	// Cache store behind the gateway's response cache
	CacheStore cache.Store

	// Providers; Fallback is nil when FALLBACK_API_KEY is empty
	Primary  providers.Provider
	Fallback providers.Provider

	Metrics *observability.ZapMetrics
	Gateway *gateway.Gateway
	Ledger  *ledger.Service

	stopBackground context.CancelFunc
	background     sync.WaitGroup
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	var db *postgres.DB
	if cfg.Database.Enabled() {
		var err error
		db, err = postgres.NewDB(cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	} else {
		logger.Warn("no ledger database configured, usage recording disabled")
	}

	deps, err := NewDependenciesWithDB(ctx, cfg, logger, db)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}
	return deps, nil
}

// NewDependenciesWithDB wires everything around an already opened ledger pool.
// db may be nil.
func NewDependenciesWithDB(ctx context.Context, cfg *config.Config, logger *zap.Logger, db *postgres.DB) (*Dependencies, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	deps := &Dependencies{
		Config:         cfg,
		Logger:         logger,
		stopBackground: cancel,
	}

	if db != nil {
		if err := deps.initDatabase(ctx, db); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	if err := deps.initCache(ctx, bgCtx, cfg.Cache); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	deps.initProviders(cfg.Providers)

	if err := deps.initGateway(cfg.Gateway); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize gateway: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Bool("ledger_enabled", deps.Ledger != nil),
		zap.Bool("fallback_enabled", deps.Fallback != nil))
	return deps, nil
}

// initDatabase prepares the ledger schema and repositories
func (d *Dependencies) initDatabase(ctx context.Context, db *postgres.DB) error {
	factory := postgres.NewRepositoryFactoryFromDB(db, d.Logger)

	if err := factory.InitSchema(ctx); err != nil {
		return err
	}

	d.RepoFactory = factory
	d.DB = db
	d.Generations = factory.NewRepositories().Generations

	d.Logger.Info("repositories initialized")
	return nil
}

// initCache opens the configured cache store. An unreachable Redis is not
// fatal: the gateway treats cache errors as misses.
func (d *Dependencies) initCache(ctx, bgCtx context.Context, cfg config.CacheConfig) error {
	store, err := NewCacheStore(cfg)
	if err != nil {
		return err
	}
	d.CacheStore = store

	cleanupEvery := cfg.CleanupInterval
	if cleanupEvery <= 0 {
		cleanupEvery = defaultCleanupEvery
	}

	switch s := store.(type) {
	case *cache.MemoryStore:
		d.goBackground(func() { s.StartCleanupWorker(bgCtx, cleanupEvery) })
	case *cache.SQLiteStore:
		d.goBackground(func() {
			s.StartCleanupWorker(bgCtx, cleanupEvery, func(err error) {
				d.Logger.Warn("sqlite cache cleanup failed", zap.Error(err))
			})
		})
	case *cache.RedisStore:
		pingCtx, cancel := context.WithTimeout(ctx, cachePingTimeout)
		defer cancel()
		if err := s.Ping(pingCtx); err != nil {
			d.Logger.Warn("redis cache unreachable, responses will not be cached until it recovers",
				zap.String("addr", cfg.RedisAddr),
				zap.Error(err))
		}
	}

	d.Logger.Info("cache store initialized", zap.String("backend", cfg.Backend))
	return nil
}

func (d *Dependencies) goBackground(fn func()) {
	d.background.Add(1)
	go func() {
		defer d.background.Done()
		fn()
	}()
}

// NewCacheStore builds the Store selected by cfg.Backend
func NewCacheStore(cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case config.CacheBackendRedis:
		return cache.NewRedisStore(cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}), nil
	case config.CacheBackendSQLite:
		return cache.NewSQLiteStore(cfg.SQLitePath)
	case config.CacheBackendMemory, "":
		return cache.NewMemoryStore(cfg.MaxEntries), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// initProviders builds the primary (Gemini) and optional fallback (OpenAI-compatible) adapters
func (d *Dependencies) initProviders(cfg config.ProvidersConfig) {
	d.Primary = gemini.NewGeminiAdapter(providers.ProviderConfig{
		APIKey:  cfg.Primary.APIKey,
		BaseURL: cfg.Primary.BaseURL,
		Model:   cfg.Primary.Model,
		Timeout: cfg.Primary.Timeout,
	})
	if !d.Primary.IsConfigured() {
		d.Logger.Warn("primary provider has no API key, every call will go to the fallback",
			zap.String("provider", d.Primary.Name()))
	}

	if cfg.Fallback.APIKey == "" {
		d.Logger.Info("no fallback provider configured")
		return
	}
	d.Fallback = openai.NewOpenAIAdapter(providers.ProviderConfig{
		APIKey:  cfg.Fallback.APIKey,
		BaseURL: cfg.Fallback.BaseURL,
		Model:   cfg.Fallback.Model,
		Timeout: cfg.Fallback.Timeout,
	})
	d.Logger.Info("registered fallback provider",
		zap.String("provider", d.Fallback.Name()),
		zap.String("model", d.Fallback.Model()))
}

// initGateway assembles the gateway and, when a database is present, the ledger that records its outcomes
func (d *Dependencies) initGateway(cfg config.GatewayConfig) error {
	d.Metrics = observability.NewZapMetrics(d.Logger)

	opts := []gateway.Option{
		gateway.WithCache(cache.NewResponseCache(d.CacheStore, cfg.CacheTTL)),
		gateway.WithMetrics(d.Metrics),
	}
	if d.Fallback != nil {
		opts = append(opts, gateway.WithFallback(d.Fallback))
	}

	if d.Generations != nil {
		d.Ledger = ledger.NewService(d.Generations, d.Logger, ledger.Config{
			BufferSize:  cfg.LedgerBuffer,
			WorkerCount: cfg.LedgerWorkers,
		})
		if err := d.Ledger.Start(); err != nil {
			return err
		}
		opts = append(opts, gateway.WithRecorder(d.Ledger))
	}

	d.Gateway = gateway.New(d.Primary, cfg, d.Logger, opts...)
	return nil
}

// Close gracefully shuts down all dependencies. It is safe to call more than once.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// drain the ledger before the pool it writes to goes away
	if d.Ledger != nil {
		timeout := defaultLedgerTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Ledger.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop ledger: %w", err))
		}
		d.Ledger = nil
	}

	if d.stopBackground != nil {
		d.stopBackground()
		d.stopBackground = nil
	}
	// cleanup workers must be gone before the store they sweep is closed
	d.background.Wait()

	if closer, ok := d.CacheStore.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close cache store: %w", err))
		}
		d.CacheStore = nil
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
		d.DB = nil
	}

	// Sync logger
	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}

	return nil
}
