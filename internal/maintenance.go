package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/reoverflow/internal/index"
	"github.com/starford/reoverflow/internal/mcpserver"
	"github.com/starford/reoverflow/internal/store"
	"github.com/starford/reoverflow/internal/syncer"
)

// Reindex reconciles the search index with the question store once and exits.
func Reindex(ctx context.Context, opts ...Option) (syncer.ReconcileStats, error) {
	app, err := newApplication(opts)
	if err != nil {
		return syncer.ReconcileStats{}, err
	}
	cfg := app.config
	logger := newLogger(cfg, os.Stdout)

	st, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return syncer.ReconcileStats{}, fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	idx, err := index.Open(cfg.Index.Path)
	if err != nil {
		return syncer.ReconcileStats{}, fmt.Errorf("init index: %w", err)
	}
	defer idx.Close()

	stats, err := syncer.Reconcile(ctx, st, idx, logger)
	if err != nil {
		return stats, fmt.Errorf("reconcile: %w", err)
	}
	logger.Info("Reindex finished",
		slog.Int("checked", stats.Checked),
		slog.Int("repaired", stats.Repaired),
		slog.Int("removed", stats.Removed))
	return stats, nil
}

// ServeMCP serves the read side over MCP on stdin/stdout. Logs go to stderr
// because stdout carries the protocol.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg, os.Stderr)

	st, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	idx, err := index.Open(cfg.Index.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer idx.Close()

	logger.Info("MCP server starting", slog.String("sqlite_path", cfg.SQLite.Path), slog.String("index_path", cfg.Index.Path))
	return mcpserver.New(st, idx).ServeStdio()
}
