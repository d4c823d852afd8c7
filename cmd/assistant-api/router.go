package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/cmd/assistant-api/handlers"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/cmd/assistant-api/middleware"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/api/rpc"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/app"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/auth"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/fusion"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/indexing"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/ingest"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/observability"
)

// Backend is what the router serves.
type Backend interface {
	handlers.Querier
	handlers.Ingester
	handlers.Reindexer
	Ready(ctx context.Context) error
}

// RouterConfig holds router settings.
type RouterConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
	Auth           middleware.AuthConfig
}

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, backend Backend, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"commerce-assistant"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := backend.Ready(r.Context()); err != nil {
			logger.WithContext(r.Context()).Warn().Err(err).Msg("Readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	assistantHandler := handlers.NewAssistantHandler(logger, backend)
	catalogHandler := handlers.NewCatalogHandler(logger, backend, backend)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth))

		r.Post("/assistant/query", assistantHandler.Query)

		r.Route("/catalog", func(r chi.Router) {
			r.Use(middleware.RequireUser)
			r.Post("/ingest", catalogHandler.Ingest)
			r.Post("/reindex", catalogHandler.Reindex)
		})
	})

	rpcPath, rpcHandler := rpc.NewAssistantService(logger, backend, middleware.UserFromContext).Handler()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth))
		r.Mount(rpcPath, rpcHandler)
	})

	return r
}

// routerConfig derives router settings from the app configuration.
func routerConfig(a *app.App) RouterConfig {
	cfg := RouterConfig{
		RequestTimeout: a.Config.Server.ReadTimeout,
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		Auth:           middleware.AuthConfig{Enabled: a.Config.Auth.Enabled},
	}
	if cfg.Auth.Enabled {
		cfg.Auth.Signer = auth.NewSigner(a.Config.Auth.SigningSecret)
	}
	return cfg
}

// appBackend adapts the wired app to the router.
type appBackend struct {
	app *app.App
}

func (b appBackend) Query(ctx context.Context, req assistant.Request) (fusion.FusedContext, error) {
	return b.app.Service.Query(ctx, req)
}

func (b appBackend) Ingest(ctx context.Context, req ingest.IngestionRequest) (*ingest.IngestionResult, error) {
	return b.app.Ingest.Ingest(ctx, req)
}

func (b appBackend) Reindex(ctx context.Context, progress indexing.ProgressFunc) (indexing.Stats, error) {
	return b.app.Reindex(ctx, progress)
}

func (b appBackend) Ready(ctx context.Context) error {
	return b.app.Ready(ctx)
}
