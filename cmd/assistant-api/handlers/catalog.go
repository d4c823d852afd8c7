package handlers

import (
	"context"
	"net/http"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/indexing"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/ingest"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/observability"
)

// maxSeedBytes caps uploaded seed documents.
const maxSeedBytes = 4 << 20

// Ingester loads catalog seeds.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.IngestionRequest) (*ingest.IngestionResult, error)
}

// Reindexer rebuilds the vector index from the stores.
type Reindexer interface {
	Reindex(ctx context.Context, progress indexing.ProgressFunc) (indexing.Stats, error)
}

// CatalogHandler handles catalog maintenance requests.
type CatalogHandler struct {
	logger    *observability.Logger
	ingester  Ingester
	reindexer Reindexer
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(logger *observability.Logger, ingester Ingester, reindexer Reindexer) *CatalogHandler {
	return &CatalogHandler{logger: logger, ingester: ingester, reindexer: reindexer}
}

// IngestionJobDTO represents the API response for an ingestion.
type IngestionJobDTO struct {
	ID             string         `json:"id"`
	ProductsLoaded int            `json:"productsLoaded"`
	UsersLoaded    int            `json:"usersLoaded"`
	OrdersCreated  int            `json:"ordersCreated"`
	OrdersExisting int            `json:"ordersExisting"`
	Indexed        indexing.Stats `json:"indexed"`
	Skipped        []string       `json:"skipped,omitempty"`
	DurationMs     int64          `json:"durationMs"`
}

// ReindexDTO represents the API response for a reindex.
type ReindexDTO struct {
	Products int `json:"products"`
	Orders   int `json:"orders"`
	Skipped  int `json:"skipped"`
}

// Ingest handles POST /catalog/ingest. The body is a YAML seed document;
// ?demo=true loads the bundled demo catalog instead.
func (h *CatalogHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := ingest.IngestionRequest{Source: http.MaxBytesReader(w, r.Body, maxSeedBytes)}
	if r.URL.Query().Get("demo") == "true" {
		req.Source = ingest.DemoCatalog()
	}

	res, err := h.ingester.Ingest(ctx, req)
	if err != nil {
		h.logger.WithContext(ctx).WithOperation("ingest").Error().Err(err).Msg("Ingestion failed")
		writeError(w, http.StatusUnprocessableEntity, "ingestion failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, IngestionJobDTO{
		ID:             res.JobID.String(),
		ProductsLoaded: res.ProductsLoaded,
		UsersLoaded:    res.UsersLoaded,
		OrdersCreated:  res.OrdersCreated,
		OrdersExisting: res.OrdersExisting,
		Indexed:        res.Indexed,
		Skipped:        res.Errors,
		DurationMs:     res.Duration.Milliseconds(),
	})
}

// Reindex handles POST /catalog/reindex.
func (h *CatalogHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.reindexer.Reindex(ctx, nil)
	if err != nil {
		h.logger.WithContext(ctx).WithOperation("reindex").Error().Err(err).Msg("Reindex failed")
		writeError(w, http.StatusInternalServerError, "reindex failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ReindexDTO{Products: stats.Products, Orders: stats.Orders, Skipped: stats.Skipped})
}
