// Package rpc exposes the assistant over Connect.
package rpc

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/fusion"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/observability"
)

const (
	// ServiceName is the fully qualified service name.
	ServiceName = "commerce.assistant.v1.AssistantService"
	// QueryProcedure is the path of the Query RPC.
	QueryProcedure = "/" + ServiceName + "/Query"
)

// Querier answers assistant queries.
type Querier interface {
	Query(ctx context.Context, req assistant.Request) (fusion.FusedContext, error)
}

// UserResolver returns the authenticated caller for a request context, or
// nil for anonymous calls.
type UserResolver func(ctx context.Context) *uuid.UUID

// QueryRequest is the Query request message.
type QueryRequest struct {
	Query      string `json:"query"`
	IntentHint string `json:"intent_hint,omitempty"`
}

// QueryResponse is the Query response message.
type QueryResponse struct {
	Context   fusion.FusedContext `json:"context"`
	LatencyMs int64               `json:"latency_ms"`
}

// AssistantService implements the Connect assistant service.
type AssistantService struct {
	logger  *observability.Logger
	querier Querier
	users   UserResolver
}

// NewAssistantService creates the service. users may be nil, in which case
// every call is anonymous.
func NewAssistantService(logger *observability.Logger, querier Querier, users UserResolver) *AssistantService {
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	return &AssistantService{logger: logger, querier: querier, users: users}
}

// Query handles a Connect query call.
func (s *AssistantService) Query(ctx context.Context, req *connect.Request[QueryRequest]) (*connect.Response[QueryResponse], error) {
	start := time.Now()

	var userID *uuid.UUID
	if s.users != nil {
		userID = s.users(ctx)
	}

	fc, err := s.querier.Query(ctx, assistant.Request{
		Query:      req.Msg.Query,
		IntentHint: req.Msg.IntentHint,
		UserID:     userID,
	})
	if errors.Is(err, assistant.ErrEmptyQuery) {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Query failed")
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&QueryResponse{
		Context:   fc,
		LatencyMs: time.Since(start).Milliseconds(),
	}), nil
}

// Handler returns the mount path and HTTP handler for the service.
func (s *AssistantService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	mux := http.NewServeMux()
	mux.Handle(QueryProcedure, connect.NewUnaryHandler(QueryProcedure, s.Query, opts...))
	return "/" + ServiceName + "/", mux
}

// NewQueryClient returns a Connect client for the Query RPC at baseURL.
func NewQueryClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *connect.Client[QueryRequest, QueryResponse] {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return connect.NewClient[QueryRequest, QueryResponse](httpClient, baseURL+QueryProcedure, opts...)
}
