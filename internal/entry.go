// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/reoverflow/internal/api"
	"github.com/starford/reoverflow/internal/bus"
	"github.com/starford/reoverflow/internal/index"
	"github.com/starford/reoverflow/internal/questions"
	"github.com/starford/reoverflow/internal/sse"
	"github.com/starford/reoverflow/internal/store"
	"github.com/starford/reoverflow/internal/syncer"
	"github.com/starford/reoverflow/internal/tags"
)

var errConfigRequired = errors.New("config is required")

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(cfg, os.Stdout)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("index_path", cfg.Index.Path),
		slog.String("bus_driver", cfg.Bus.Driver),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Authoritative store.
	st, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	// Search index, a separate database.
	idx, err := index.Open(cfg.Index.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer idx.Close()

	// Seed the tag catalog.
	if cfg.Tags.CatalogPath != "" {
		n, err := tags.SeedFromFile(ctx, st, cfg.Tags.CatalogPath)
		if err != nil {
			return fmt.Errorf("seed tags: %w", err)
		}
		logger.Info("Tag catalog seeded", slog.Int("tags", n))
	}
	tagCache := tags.NewCache(st, cfg.Tags.TTL, tags.WithLogger(logger))

	// Event bus.
	eventBus := app.bus
	if eventBus == nil {
		eventBus, err = newBus(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("init bus: %w", err)
		}
		defer eventBus.Close()
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Index syncer.
	projector := syncer.New(idx,
		syncer.WithUpsertOnUpdate(cfg.Index.UpsertOnUpdate),
		syncer.WithLogger(logger),
		syncer.WithChangeCallback(broker.PublishQuestionEvent))

	if cfg.Index.ReconcileOnStart {
		stats, err := syncer.Reconcile(ctx, st, idx, logger)
		if err != nil {
			logger.Warn("initial reconcile failed", slog.String("error", err.Error()))
		} else {
			logger.Info("Index reconciled",
				slog.Int("checked", stats.Checked),
				slog.Int("repaired", stats.Repaired),
				slog.Int("removed", stats.Removed))
		}
	}

	// Build question service and router.
	svc := questions.NewService(st, tagCache, eventBus, questions.WithLogger(logger))
	apiRouter := api.NewRouter(svc, idx, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := st.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api; SSE is served at /api/events.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)
	consumeCtx, stopConsume := context.WithCancel(gCtx)
	defer stopConsume()

	// Project events into the search index.
	g.Go(func() error {
		return projector.Run(consumeCtx, eventBus)
	})

	// Re-seed the tag catalog when its file changes.
	if cfg.Tags.CatalogPath != "" {
		g.Go(func() error {
			if err := tags.Watch(gCtx, st, cfg.Tags.CatalogPath, logger); err != nil {
				logger.Warn("tags watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		stopConsume()
		if err := eventBus.Close(); err != nil {
			logger.Error("bus close error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	if n := svc.PublishFailures(); n > 0 {
		logger.Warn("Events lost to publish failures; run reindex to repair", slog.Int64("count", n))
	}
	logger.Info("Server stopped successfully")
	return nil
}

func newBus(ctx context.Context, cfg *Config, logger *slog.Logger) (bus.Bus, error) {
	switch cfg.Bus.Driver {
	case BusDriverRedis:
		rc := cfg.Bus.Redis
		return bus.NewRedis(ctx, bus.RedisOptions{
			Addr:          rc.Addr,
			Password:      rc.Password,
			DB:            rc.DB,
			Stream:        rc.Stream,
			Group:         rc.Group,
			Consumer:      rc.Consumer,
			MaxLen:        rc.MaxLen,
			Block:         rc.Block,
			ReclaimIdle:   rc.ReclaimIdle,
			MaxDeliveries: cfg.Bus.MaxDeliveries,
			Logger:        logger,
		})
	default:
		return bus.NewMemory(bus.MemoryOptions{
			RedeliveryDelay: cfg.Bus.RedeliveryDelay,
			MaxDeliveries:   cfg.Bus.MaxDeliveries,
			Logger:          logger,
		}), nil
	}
}
