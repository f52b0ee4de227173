package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/reoverflow/internal/models"
)

// LoadTags returns the full tag catalog.
func (s *Store) LoadTags(ctx context.Context) ([]models.Tag, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT slug, name, description FROM tags ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("store: load tags: %w", err)
	}
	defer rows.Close()

	var out []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.Slug, &t.Name, &t.Description); err != nil {
			return nil, fmt.Errorf("store: scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertTags inserts or updates catalog entries in one transaction.
func (s *Store) UpsertTags(ctx context.Context, tags []models.Tag) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tags (slug, name, description) VALUES (?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET name = excluded.name, description = excluded.description
	`)
	if err != nil {
		return fmt.Errorf("store: prepare tag upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tags {
		slug := strings.ToLower(strings.TrimSpace(t.Slug))
		if slug == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, slug, t.Name, t.Description); err != nil {
			return fmt.Errorf("store: upsert tag %s: %w", slug, err)
		}
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var sqlErr sqlite3.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	return sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
