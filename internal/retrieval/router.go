package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/embedding"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/intent"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/specs"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/vector"
)

// Catalog is the read side of the product store.
type Catalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*storage.Product, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*storage.Product, error)
	ListAll(ctx context.Context) ([]*storage.Product, error)
	ListByCategory(ctx context.Context, category storage.Category) ([]*storage.Product, error)
	Filter(ctx context.Context, f storage.ProductFilter) ([]*storage.Product, error)
	TopRated(ctx context.Context, category *storage.Category, limit int) ([]*storage.Product, error)
	MatchTitle(ctx context.Context, terms []string, limit int) ([]*storage.Product, error)
	SearchText(ctx context.Context, terms []string, category *storage.Category, limit int) ([]*storage.Product, error)
}

// Orders is the read side of the order store.
type Orders interface {
	GetByID(ctx context.Context, id uuid.UUID) (*storage.Order, error)
	GetByNumber(ctx context.Context, number string) (*storage.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*storage.Order, error)
}

// Users is the read side of the user store.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*storage.User, error)
}

// Config holds router limits.
type Config struct {
	SemanticLimit       int
	RecommendationLimit int
	ComparisonBulkLimit int
	RecentOrdersLimit   int
	// CandidateLimit bounds each recommendation ladder tier before re-ranking.
	CandidateLimit int
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		SemanticLimit:       10,
		RecommendationLimit: 5,
		ComparisonBulkLimit: 10,
		RecentOrdersLimit:   5,
		CandidateLimit:      50,
	}
}

// Deps are the router's collaborators. Index and Embedder are optional.
type Deps struct {
	Catalog    Catalog
	Orders     Orders
	Users      Users
	Index      vector.Index
	Embedder   embedding.Embedder
	Vocabulary intent.Vocabulary
	Specs      *specs.Matcher
	CueBonuses []CueBonus
	Logger     *observability.Logger
}

// Router runs the retrieval procedure for each intent. It is stateless and
// safe for concurrent use.
type Router struct {
	catalog    Catalog
	orders     Orders
	users      Users
	index      vector.Index
	embedder   embedding.Embedder
	vocab      intent.Vocabulary
	specs      *specs.Matcher
	cueBonuses []CueBonus
	logger     *observability.Logger
	config     Config
}

// NewRouter creates a router. Zero limits in cfg take the defaults.
func NewRouter(deps Deps, cfg Config) *Router {
	def := DefaultConfig()
	if cfg.SemanticLimit <= 0 {
		cfg.SemanticLimit = def.SemanticLimit
	}
	if cfg.RecommendationLimit <= 0 {
		cfg.RecommendationLimit = def.RecommendationLimit
	}
	if cfg.ComparisonBulkLimit <= 0 {
		cfg.ComparisonBulkLimit = def.ComparisonBulkLimit
	}
	if cfg.RecentOrdersLimit <= 0 {
		cfg.RecentOrdersLimit = def.RecentOrdersLimit
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = def.CandidateLimit
	}
	if deps.Specs == nil {
		deps.Specs = specs.NewMatcher(specs.DefaultDictionary())
	}
	if deps.CueBonuses == nil {
		deps.CueBonuses = DefaultCueBonuses()
	}
	if deps.Logger == nil {
		deps.Logger = observability.NopLogger()
	}

	return &Router{
		catalog:    deps.Catalog,
		orders:     deps.Orders,
		users:      deps.Users,
		index:      deps.Index,
		embedder:   deps.Embedder,
		vocab:      deps.Vocabulary,
		specs:      deps.Specs,
		cueBonuses: deps.CueBonuses,
		logger:     deps.Logger,
		config:     cfg,
	}
}

// Route runs the procedure for in. It never fails: store errors and panics
// produce a no-retrieval context with Error set.
func (r *Router) Route(ctx context.Context, query string, in intent.Intent, userID *uuid.UUID) (result RoutedContext) {
	if in == nil {
		in = intent.General{Meta: intent.Meta{Why: "no intent"}}
	}
	start := time.Now()
	logger := r.logger.WithContext(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().
				Str("intent", string(in.Kind())).
				Interface("panic", rec).
				Msg("Retrieval panicked")
			result = fallback(in, fmt.Errorf("retrieval panicked: %v", rec))
		}
	}()

	logger.Debug().
		Str("query", query).
		Str("intent", string(in.Kind())).
		Bool("authenticated", userID != nil).
		Msg("Routing query")

	rc, err := r.dispatch(ctx, query, in, userID)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("intent", string(in.Kind())).
			Msg("Retrieval failed, using no-retrieval fallback")
		return fallback(in, err)
	}
	if rc.Items == nil {
		rc.Items = []Item{}
	}
	if rc.AppliedFilters == nil {
		rc.AppliedFilters = map[string]interface{}{}
	}

	logger.Debug().
		Str("route", string(rc.Route)).
		Str("retrieval_type", string(rc.RetrievalType)).
		Int("items", len(rc.Items)).
		Dur("elapsed", time.Since(start)).
		Msg("Retrieval complete")
	return rc
}

func (r *Router) dispatch(ctx context.Context, query string, in intent.Intent, userID *uuid.UUID) (RoutedContext, error) {
	switch v := in.(type) {
	case intent.ProductSemantic:
		return r.semantic(ctx, query, v)
	case intent.ProductExact:
		return r.exact(ctx, query, v)
	case intent.ProductComparison:
		return r.comparison(ctx, query, v)
	case intent.ProductRecommendation:
		return r.recommendation(ctx, query, v)
	case intent.OrderTracking:
		return r.orderTracking(ctx, query, v, userID)
	case intent.OrderSupport:
		return r.orderSupport(ctx, v, userID)
	case intent.UserAccount:
		return r.userAccount(ctx, v, userID)
	default:
		return newContext(in, RouteNoRetrieval, RetrievalNone), nil
	}
}

func fallback(in intent.Intent, err error) RoutedContext {
	rc := newContext(in, RouteNoRetrieval, RetrievalNone)
	rc.Error = err.Error()
	return rc
}

// queryVector embeds query, returning nil when no embedder or index is
// configured or the embedder yields a degenerate vector.
func (r *Router) queryVector(ctx context.Context, query string) []float32 {
	if r.embedder == nil || r.index == nil {
		return nil
	}
	vec, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Query embedding failed, continuing without vectors")
		return nil
	}
	if vector.IsZero(vec) {
		return nil
	}
	return vec
}

// similarProducts returns product similarities for query, or nil when vector
// search is unavailable.
func (r *Router) similarProducts(ctx context.Context, query string, k int) map[uuid.UUID]float64 {
	vec := r.queryVector(ctx, query)
	if vec == nil {
		return nil
	}
	results, err := r.index.TopK(ctx, vec, k)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Vector search failed, continuing without vectors")
		return nil
	}
	sims := make(map[uuid.UUID]float64, len(results))
	for _, res := range results {
		sims[res.EntityID] = res.Similarity
	}
	return sims
}
