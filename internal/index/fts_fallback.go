//go:build !sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"strings"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE fallback on the questions table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string, _ []string) error {
	// Content is already stored in the questions table; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) error { return nil }

// Search performs a LIKE-based search over title and content (fallback when
// FTS5 is not compiled in). Every word must appear in either field.
func (db *DB) Search(ctx context.Context, text, tag string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return db.listByTag(ctx, tag, limit)
	}

	query := `SELECT q.id, q.title, q.content, q.tags, substr(q.content, 1, 200) FROM questions q WHERE 1 = 1`
	var args []any
	for _, w := range words {
		like := "%" + w + "%"
		query += ` AND (q.title LIKE ? OR q.content LIKE ?)`
		args = append(args, like, like)
	}
	if tag != "" {
		query += ` AND ` + tagFilterSQL
		args = append(args, tag)
	}
	query += ` ORDER BY q.created_at DESC, q.id LIMIT ?`
	args = append(args, limit)
	return db.queryHits(ctx, query, args...)
}
