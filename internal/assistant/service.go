// Package assistant runs the query pipeline: intent detection, adaptive
// retrieval and context fusion.
package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/fusion"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/intent"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/retrieval"
)

// ErrEmptyQuery is returned for a blank query. Transports map it to a
// client error.
var ErrEmptyQuery = errors.New("query is required")

// Request is one assistant query.
type Request struct {
	Query string
	// IntentHint names an intent kind that overrides detection when valid.
	IntentHint string
	// UserID is the authenticated caller, nil for anonymous queries.
	UserID *uuid.UUID
}

// Detector classifies a query.
type Detector interface {
	Detect(ctx context.Context, query string) intent.Intent
}

// Router retrieves context for a classified query.
type Router interface {
	Route(ctx context.Context, query string, in intent.Intent, userID *uuid.UUID) retrieval.RoutedContext
}

// Service answers assistant queries. It is safe for concurrent use.
type Service struct {
	detector Detector
	router   Router
	cache    *ResponseCache
	logger   *observability.Logger
}

// NewService wires the pipeline. cache may be nil.
func NewService(detector Detector, router Router, cache *ResponseCache, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	return &Service{detector: detector, router: router, cache: cache, logger: logger}
}

// Query runs the pipeline for req. The only error is ErrEmptyQuery; every
// other failure is reported inside the returned context.
func (s *Service) Query(ctx context.Context, req Request) (fusion.FusedContext, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return fusion.FusedContext{}, ErrEmptyQuery
	}
	logger := s.logger.WithContext(ctx).WithOperation("query")
	if req.UserID != nil {
		logger = logger.WithUser(req.UserID.String())
	}
	start := time.Now()

	hint, hasHint := s.parseHint(req.IntentHint)
	anonymous := req.UserID == nil
	if anonymous {
		if fc, ok := s.cache.Get(ctx, query, string(hint)); ok {
			logger.Debug().Str("route", string(fc.Route)).Msg("Served query from cache")
			return *fc, nil
		}
	}

	in := s.detector.Detect(ctx, query)
	if hasHint {
		in = intent.Coerce(in, hint)
	}

	rc := s.router.Route(ctx, query, in, req.UserID)

	userID := ""
	if req.UserID != nil {
		userID = req.UserID.String()
	}
	fc := fusion.Fuse(rc, userID)

	if anonymous {
		if err := s.cache.Set(ctx, query, string(hint), fc); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache fused context")
		}
	}

	logger.Info().
		Str("intent", string(fc.Intent.Type)).
		Float64("confidence", fc.Intent.Confidence).
		Str("route", string(fc.Route)).
		Str("retrieval_type", string(fc.RetrievalType)).
		Int("items", len(fc.Items)).
		Bool("authenticated", !anonymous).
		Dur("duration", time.Since(start)).
		Msg("Query processed")

	return fc, nil
}

// InvalidateCache drops cached responses after catalog changes.
func (s *Service) InvalidateCache(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

func (s *Service) parseHint(raw string) (intent.Kind, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", false
	}
	k, ok := intent.ParseKind(raw)
	if !ok {
		s.logger.Warn().Str("intent_hint", raw).Msg("Ignoring unknown intent hint")
		return "", false
	}
	return k, true
}
