// STAC area-search service entry point
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rkm/stac-area-search/internal/api"
	"github.com/rkm/stac-area-search/internal/catalog"
	"github.com/rkm/stac-area-search/internal/config"
	"github.com/rkm/stac-area-search/internal/metrics"
	"github.com/rkm/stac-area-search/internal/search"
	"github.com/rkm/stac-area-search/internal/session"
	"github.com/rkm/stac-area-search/internal/viewstate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set up logger
	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	logger.Info("starting STAC area-search service",
		"catalog", cfg.Catalog.BaseURL,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	provider := metrics.New()

	// Create catalog client with retry and response caching
	client := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout).
		WithLogger(logger).
		WithRetry(cfg.Catalog.RetryMaxAttempts, cfg.Catalog.RetryInitialInterval, cfg.Catalog.RetryMaxInterval).
		WithCache(cfg.Catalog.CacheSize).
		WithMetrics(provider)

	logger.Info("catalog client configured",
		"retry_max_attempts", cfg.Catalog.RetryMaxAttempts,
		"cache_size", cfg.Catalog.CacheSize,
	)

	builder := search.NewBuilder(cfg.Search.Collections, cfg.Search.DefaultLimit)
	logger.Info("searchable collections", "count", len(cfg.Search.Collections))

	store := viewstate.NewStore()
	sess := session.New(builder, client, store, logger).WithMetrics(provider)

	// Create handlers and router
	handlers := api.NewHandlers(sess, store, logger)
	router := api.NewRouter(handlers, logger, provider.Handler())

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
