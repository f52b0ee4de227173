//go:build sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS questions_fts USING fts5(
			id UNINDEXED,
			title,
			content,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id, title, content string, tags []string) error {
	_, _ = tx.Exec(`DELETE FROM questions_fts WHERE id = ?`, id)
	_, err := tx.Exec(`INSERT INTO questions_fts (id, title, content, tags) VALUES (?, ?, ?, ?)`,
		id, title, content, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) error {
	if _, err := tx.Exec(`DELETE FROM questions_fts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

// matchExpr restricts matching to title and content and quotes every token
// so user input cannot inject FTS5 operators.
func matchExpr(text string) string {
	fields := strings.Fields(text)
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return "{title content} : " + strings.Join(quoted, " ")
}

// Search performs an FTS5 full-text search over title and content, optionally
// restricted to one tag, ordered by rank.
func (db *DB) Search(ctx context.Context, text, tag string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}
	if strings.TrimSpace(text) == "" {
		return db.listByTag(ctx, tag, limit)
	}
	query := `
		SELECT q.id, q.title, q.content, q.tags,
		       snippet(questions_fts, 2, '<b>', '</b>', '...', 32)
		FROM questions_fts
		JOIN questions q ON q.id = questions_fts.id
		WHERE questions_fts MATCH ?`
	args := []any{matchExpr(text)}
	if tag != "" {
		query += ` AND ` + tagFilterSQL
		args = append(args, tag)
	}
	query += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)
	return db.queryHits(ctx, query, args...)
}
