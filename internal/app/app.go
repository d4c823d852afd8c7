// Package app assembles the assistant from configuration. Both binaries
// build their dependencies through it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/cache"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/config"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/embedding"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/indexing"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/ingest"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/intent"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/retrieval"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/specs"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/vector"
)

// Options tune startup.
type Options struct {
	// AutoMigrate applies pending migrations before anything reads the store.
	AutoMigrate bool
	// WarmIndex embeds the whole catalog at startup. Only useful with the
	// memory vector adapter, which starts empty.
	WarmIndex bool
}

// App holds the wired components.
type App struct {
	Config   *config.Config
	Logger   *observability.Logger
	DB       *sql.DB
	Repos    *storage.Repositories
	Cache    cache.Client
	Titles   *catalog.TitleCache
	Index    vector.Index
	Embedder embedding.Embedder
	Detector *intent.Detector
	Router   *retrieval.Router
	Service  *assistant.Service
	Indexer  *indexing.Indexer
	Ingest   *ingest.Pipeline
}

// NewLogger builds the logger described by cfg.
func NewLogger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
}

// New opens the database and wires every component.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = NewLogger(cfg)
	}

	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, DB: db, Repos: storage.NewRepositories(db)}

	if opts.AutoMigrate {
		if _, err := a.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	a.Cache, err = NewCache(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a.Embedder, err = embedding.New(cfg)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	a.Index = newIndex(cfg, a.Repos)
	a.Titles = catalog.NewTitleCache(a.Repos.Products, cfg.Catalog.TitleCacheTTL)

	vocab := intent.DefaultVocabulary()
	a.Detector = intent.NewDetector(vocab, a.Titles, logger)
	a.Router = retrieval.NewRouter(retrieval.Deps{
		Catalog:    a.Repos.Products,
		Orders:     a.Repos.Orders,
		Users:      a.Repos.Users,
		Index:      a.Index,
		Embedder:   a.Embedder,
		Vocabulary: vocab,
		Specs:      specs.NewMatcher(specs.DefaultDictionary()),
		CueBonuses: retrieval.DefaultCueBonuses(),
		Logger:     logger,
	}, retrieval.Config{
		SemanticLimit:       cfg.Retrieval.SemanticLimit,
		RecommendationLimit: cfg.Retrieval.RecommendationLimit,
		ComparisonBulkLimit: cfg.Retrieval.ComparisonBulkLimit,
		RecentOrdersLimit:   cfg.Retrieval.RecentOrdersLimit,
	})

	responses := assistant.NewResponseCache(a.Cache, logger, assistant.ResponseCacheConfig{
		TTL:     cfg.Cache.TTL,
		Enabled: cfg.Retrieval.CacheResults,
	})
	a.Service = assistant.NewService(a.Detector, a.Router, responses, logger)

	a.Indexer = indexing.NewIndexer(a.Index, a.Embedder, logger, indexing.Config{
		Workers:   cfg.Retrieval.ReindexWorkers,
		BatchSize: cfg.Embedding.BatchSize,
	})
	a.Ingest = ingest.NewPipeline(logger, ingest.Stores{
		Products: a.Repos.Products,
		Users:    a.Repos.Users,
		Orders:   a.Repos.Orders,
	}, a.Indexer, a)

	if opts.WarmIndex {
		if _, err := a.Reindex(ctx, nil); err != nil {
			logger.Warn().Err(err).Msg("Index warm-up failed; vector scoring disabled until reindex")
		}
	}

	logger.Info().
		Str("database", cfg.Database.Driver).
		Str("cache", cfg.Cache.Driver).
		Str("vector", cfg.Vector.Adapter).
		Str("embedding", a.Embedder.Model()).
		Msg("Assistant initialized")

	return a, nil
}

// OpenDB connects to the configured database.
func OpenDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	oc := storage.OpenConfig{Driver: cfg.Database.Driver, DSN: cfg.DatabaseDSN()}
	switch cfg.Database.Driver {
	case storage.DriverPostgres:
		oc.MaxOpenConns = cfg.Database.Postgres.MaxOpenConns
		oc.MaxIdleConns = cfg.Database.Postgres.MaxIdleConns
		oc.ConnMaxLifetime = cfg.Database.Postgres.ConnMaxLifetime
	default:
		oc.MaxOpenConns = cfg.Database.SQLite.MaxOpenConns
		oc.JournalMode = cfg.Database.SQLite.JournalMode
	}
	db, err := storage.Open(ctx, oc)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// NewCache builds the configured cache client.
func NewCache(cfg *config.Config) (cache.Client, error) {
	if cfg.Cache.Driver == "redis" {
		client, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return client, nil
	}
	return cache.NewMemoryClient(cfg.Cache.MaxEntries), nil
}

func newIndex(cfg *config.Config, repos *storage.Repositories) vector.Index {
	mc := vector.MemoryConfig{Dimension: cfg.Vector.Dimension, MinSimilarity: cfg.Vector.MinSimilarity}
	if cfg.Vector.Adapter == "store" {
		return vector.NewStoreIndex(repos.Embeddings, mc)
	}
	return vector.NewMemoryIndex(mc)
}

// Migrate applies pending schema migrations.
func (a *App) Migrate(ctx context.Context) ([]string, error) {
	applied, err := storage.NewMigrator(a.DB, a.Config.Database.Driver).Up(ctx)
	if err != nil {
		return applied, fmt.Errorf("migrate: %w", err)
	}
	if len(applied) > 0 {
		a.Logger.Info().Strs("versions", applied).Msg("Applied migrations")
	}
	return applied, nil
}

// Reindex embeds every product and order.
func (a *App) Reindex(ctx context.Context, progress indexing.ProgressFunc) (indexing.Stats, error) {
	products, err := a.Repos.Products.ListAll(ctx)
	if err != nil {
		return indexing.Stats{}, fmt.Errorf("list products: %w", err)
	}
	orders, err := a.Repos.Orders.ListAll(ctx)
	if err != nil {
		return indexing.Stats{}, fmt.Errorf("list orders: %w", err)
	}
	stats, err := a.Indexer.ReindexAll(ctx, products, orders, progress)
	if err != nil {
		return stats, err
	}
	// Other instances may have written to a shared embedding store.
	if r, ok := a.Index.(interface{ Reload() }); ok {
		r.Reload()
	}
	return stats, a.InvalidateCache(ctx)
}

// InvalidateCache drops the title snapshot and cached responses after the
// catalog changes.
func (a *App) InvalidateCache(ctx context.Context) error {
	a.Titles.Invalidate()
	return a.Service.InvalidateCache(ctx)
}

// Ready reports whether the database answers.
func (a *App) Ready(ctx context.Context) error {
	return a.DB.PingContext(ctx)
}

// Close releases the cache and database.
func (a *App) Close() error {
	return a.closeAll()
}

func (a *App) closeAll() error {
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
