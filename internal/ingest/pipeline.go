package ingest

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/indexing"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
)

//go:embed seeds/catalog.yaml
var demoCatalog []byte

// DemoCatalog returns the bundled demo seed.
func DemoCatalog() io.Reader {
	return bytes.NewReader(demoCatalog)
}

// ProductWriter persists products.
type ProductWriter interface {
	Upsert(ctx context.Context, product *storage.Product) error
}

// UserWriter persists users.
type UserWriter interface {
	Upsert(ctx context.Context, user *storage.User) error
}

// OrderWriter persists orders.
type OrderWriter interface {
	Create(ctx context.Context, order *storage.Order) error
}

// Reindexer rebuilds embeddings for loaded entities.
type Reindexer interface {
	ReindexAll(ctx context.Context, products []*storage.Product, orders []*storage.Order, progress indexing.ProgressFunc) (indexing.Stats, error)
}

// CacheInvalidator drops cached answers that may reference stale data.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context) error
}

// Stores are the pipeline's write targets.
type Stores struct {
	Products ProductWriter
	Users    UserWriter
	Orders   OrderWriter
}

// Pipeline loads a seed into the stores, then refreshes the vector index
// and the response cache.
type Pipeline struct {
	logger  *observability.Logger
	parser  *Parser
	stores  Stores
	indexer Reindexer
	cache   CacheInvalidator
}

// IngestionRequest selects the seed to load. Source wins over Path.
type IngestionRequest struct {
	Path   string
	Source io.Reader
	// SkipIndex leaves the vector index untouched.
	SkipIndex bool
	Progress  indexing.ProgressFunc
}

// IngestionResult summarizes an ingestion job.
type IngestionResult struct {
	JobID          uuid.UUID      `json:"jobId"`
	ProductsLoaded int            `json:"productsLoaded"`
	UsersLoaded    int            `json:"usersLoaded"`
	OrdersCreated  int            `json:"ordersCreated"`
	OrdersExisting int            `json:"ordersExisting"`
	Indexed        indexing.Stats `json:"indexed"`
	Errors         []string       `json:"errors,omitempty"`
	StartedAt      time.Time      `json:"startedAt"`
	CompletedAt    time.Time      `json:"completedAt"`
	Duration       time.Duration  `json:"duration"`
}

// NewPipeline creates a pipeline. indexer and cache may be nil.
func NewPipeline(logger *observability.Logger, stores Stores, indexer Reindexer, cache CacheInvalidator) *Pipeline {
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	return &Pipeline{
		logger:  logger,
		parser:  NewParser(),
		stores:  stores,
		indexer: indexer,
		cache:   cache,
	}
}

// Ingest loads the requested seed. Invalid entries are skipped and listed in
// the result; store failures abort the job.
func (p *Pipeline) Ingest(ctx context.Context, req IngestionRequest) (*IngestionResult, error) {
	result := &IngestionResult{JobID: uuid.New(), StartedAt: time.Now()}
	logger := p.logger.WithContext(ctx)

	src := req.Source
	if src == nil {
		f, err := os.Open(req.Path)
		if err != nil {
			return nil, fmt.Errorf("open seed: %w", err)
		}
		defer f.Close()
		src = f
	}

	parsed, err := p.parser.Parse(src)
	if err != nil {
		return nil, err
	}
	for _, perr := range parsed.Errors {
		result.Errors = append(result.Errors, perr.Error())
		logger.Warn().Str("entry", perr.Error()).Msg("Skipping seed entry")
	}

	for _, product := range parsed.Products {
		if err := p.stores.Products.Upsert(ctx, product); err != nil {
			return result, fmt.Errorf("store product %q: %w", product.Title, err)
		}
		result.ProductsLoaded++
	}
	for _, user := range parsed.Users {
		if err := p.stores.Users.Upsert(ctx, user); err != nil {
			return result, fmt.Errorf("store user %s: %w", user.Email, err)
		}
		result.UsersLoaded++
	}
	for _, order := range parsed.Orders {
		err := p.stores.Orders.Create(ctx, order)
		if errors.Is(err, storage.ErrConflict) {
			result.OrdersExisting++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("store order %s: %w", order.Number, err)
		}
		result.OrdersCreated++
	}

	if p.indexer != nil && !req.SkipIndex {
		stats, err := p.indexer.ReindexAll(ctx, parsed.Products, parsed.Orders, req.Progress)
		result.Indexed = stats
		if err != nil {
			return result, fmt.Errorf("index seed: %w", err)
		}
	}

	if p.cache != nil {
		if err := p.cache.InvalidateCache(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to invalidate response cache")
		}
	}

	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)

	logger.Info().
		Str("job_id", result.JobID.String()).
		Int("products", result.ProductsLoaded).
		Int("users", result.UsersLoaded).
		Int("orders_created", result.OrdersCreated).
		Int("orders_existing", result.OrdersExisting).
		Int("skipped", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("Seed ingested")

	return result, nil
}
