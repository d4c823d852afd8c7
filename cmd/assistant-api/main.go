// Package main provides the commerce assistant API server entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/app"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/config"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/ingest"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Driver).
		Str("vector", cfg.Vector.Adapter).
		Msg("Starting commerce assistant API")

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger, app.Options{
		AutoMigrate: true,
		WarmIndex:   cfg.Vector.Adapter == "memory",
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize assistant")
		os.Exit(1)
	}
	defer a.Close()

	if os.Getenv("SEED_DEMO") == "true" {
		res, err := a.Ingest.Ingest(ctx, ingest.IngestionRequest{Source: ingest.DemoCatalog()})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to load demo catalog")
			os.Exit(1)
		}
		logger.Info().Int("products", res.ProductsLoaded).Int("orders", res.OrdersCreated).Msg("Demo catalog loaded")
	}

	router := NewRouter(logger, appBackend{app: a}, routerConfig(a))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server error")
		}
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}
