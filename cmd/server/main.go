// Package main is the entrypoint for the errwatch API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/errwatch/internal/alert"
	"github.com/kiranshivaraju/errwatch/internal/api"
	"github.com/kiranshivaraju/errwatch/internal/api/handler"
	mw "github.com/kiranshivaraju/errwatch/internal/api/middleware"
	"github.com/kiranshivaraju/errwatch/internal/api/response"
	"github.com/kiranshivaraju/errwatch/internal/cache"
	"github.com/kiranshivaraju/errwatch/internal/capture"
	"github.com/kiranshivaraju/errwatch/internal/config"
	"github.com/kiranshivaraju/errwatch/internal/logging"
	"github.com/kiranshivaraju/errwatch/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	baseLogger := slog.New(jsonHandler)
	slog.SetDefault(baseLogger)

	if err := run(jsonHandler, baseLogger); err != nil {
		baseLogger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(jsonHandler slog.Handler, baseLogger *slog.Logger) error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	baseLogger.Info("config loaded", "alert_channel", cfg.Alert.Channel, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	baseLogger.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	baseLogger.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	baseLogger.Info("redis connected")

	// 5. Create store and alert dispatcher
	pgStore := store.NewPostgresStore(pool)

	dispatcher, err := newDispatcher(cfg.Alert)
	if err != nil {
		return fmt.Errorf("create alert dispatcher: %w", err)
	}

	// 6. Build the capture pipeline. The pipeline and queue log through the
	// base logger so their own failures never feed back into capture.
	gate := capture.NewGate(cfg.Capture.AlertEvery, cfg.Capture.SuppressionWindow)
	pipeline := capture.NewPipeline(pgStore, gate, dispatcher, baseLogger)
	queue := capture.NewQueue(pipeline, cfg.Capture.QueueCapacity, cfg.Capture.Workers, baseLogger)

	// 7. Swap the process default logger for one that forwards error-level
	// records into the capture queue. Any slog.Error call anywhere in the
	// process now produces an error record, with no compile-time dependency
	// from the logging side onto the store.
	slog.SetDefault(slog.New(logging.NewCaptureHandler(jsonHandler, queue.CaptureCritical)))

	// 8. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 120)

	deps := api.Dependencies{
		Auth:          auth,
		RateLimit:     rateLimit,
		RequestLogger: baseLogger,

		HealthHandler: healthHandler(pgStore, redisCache),
		IngestHandler: handler.NewIngestHandler(queue),

		ListErrorsHandler:   handler.NewListErrorsHandler(pgStore),
		GetErrorHandler:     handler.NewGetErrorHandler(pgStore),
		UpdateStatusHandler: handler.NewUpdateStatusHandler(pgStore),
		DeleteErrorHandler:  handler.NewDeleteErrorHandler(pgStore),
		StatsHandler:        handler.NewStatsHandler(pgStore, redisCache),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		baseLogger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		baseLogger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Detach the capture handler before draining so late error logs don't
	// enqueue into a closing queue, then flush buffered events.
	slog.SetDefault(baseLogger)
	if err := queue.Close(); err != nil {
		return fmt.Errorf("drain capture queue: %w", err)
	}

	baseLogger.Info("server stopped gracefully", "dropped_events", queue.Dropped())
	return nil
}

// newDispatcher selects the alert transport from config.
func newDispatcher(cfg config.AlertConfig) (alert.Dispatcher, error) {
	switch cfg.Channel {
	case "webhook":
		return alert.NewWebhookDispatcher(cfg.Webhook.URL, cfg.Webhook.Timeout), nil
	default:
		return alert.NewSMTPDispatcher(cfg.SMTP)
	}
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
