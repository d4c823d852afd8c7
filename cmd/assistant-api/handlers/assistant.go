package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/cmd/assistant-api/middleware"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/fusion"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/observability"
)

// Querier answers assistant queries.
type Querier interface {
	Query(ctx context.Context, req assistant.Request) (fusion.FusedContext, error)
}

// AssistantHandler handles assistant queries.
type AssistantHandler struct {
	logger  *observability.Logger
	querier Querier
}

// NewAssistantHandler creates a new assistant handler.
func NewAssistantHandler(logger *observability.Logger, querier Querier) *AssistantHandler {
	return &AssistantHandler{logger: logger, querier: querier}
}

// QueryRequestDTO represents the API request for a query.
type QueryRequestDTO struct {
	Query      string `json:"query"`
	IntentHint string `json:"intentHint,omitempty"`
}

// QueryResponseDTO represents the API response.
type QueryResponseDTO struct {
	Context   fusion.FusedContext `json:"context"`
	LatencyMs int64               `json:"latencyMs"`
}

// Query handles POST /assistant/query.
func (h *AssistantHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var reqDTO QueryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	fc, err := h.querier.Query(ctx, assistant.Request{
		Query:      reqDTO.Query,
		IntentHint: reqDTO.IntentHint,
		UserID:     middleware.UserFromContext(ctx),
	})
	if errors.Is(err, assistant.ErrEmptyQuery) {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	if err != nil {
		h.logger.WithContext(ctx).Error().Err(err).Msg("Query failed")
		writeError(w, http.StatusInternalServerError, "query failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, QueryResponseDTO{Context: fc, LatencyMs: time.Since(start).Milliseconds()})
}
