package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Document is the searchable projection of a question. Content is already
// stripped of markup.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	Version   int       `json:"version"`
	Checksum  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Hit represents one search result.
type Hit struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Snippet string   `json:"snippet,omitempty"`
}

// docState is what the index currently knows about an id.
type docState struct {
	exists     bool
	version    int
	tombstoned bool
}

// Create indexes a newly created question. It never resurrects a deleted
// question and never overwrites a newer version.
func (db *DB) Create(ctx context.Context, doc Document) (Outcome, error) {
	return db.write(ctx, doc, true)
}

// Update overwrites an indexed question. When the id was never indexed it
// returns ErrDocumentNotFound, unless upsert is set.
func (db *DB) Update(ctx context.Context, doc Document, upsert bool) (Outcome, error) {
	return db.write(ctx, doc, upsert)
}

func (db *DB) write(ctx context.Context, doc Document, insertMissing bool) (Outcome, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	st, err := loadState(ctx, tx, doc.ID)
	if err != nil {
		return 0, err
	}
	switch {
	case st.tombstoned:
		return Tombstoned, nil
	case !st.exists && !insertMissing:
		return 0, ErrDocumentNotFound
	case st.exists && st.version >= doc.Version:
		return Stale, nil
	}

	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO questions (id, title, content, tags, version, checksum, created_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			content    = excluded.content,
			tags       = excluded.tags,
			version    = excluded.version,
			checksum   = excluded.checksum,
			created_at = excluded.created_at,
			indexed_at = excluded.indexed_at
	`, doc.ID, doc.Title, doc.Content, string(tagsJSON), doc.Version, doc.Checksum, doc.CreatedAt, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("index: upsert question: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, doc.ID, doc.Title, doc.Content, tags); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("index: commit: %w", err)
	}
	return Applied, nil
}

// Delete removes a question and records a tombstone so later stale writes
// for the same id are dropped. Deleting twice is a no-op.
func (db *DB) Delete(ctx context.Context, id string, version int) (Outcome, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	st, err := loadState(ctx, tx, id)
	if err != nil {
		return 0, err
	}

	if err := ftsDelete(tx, id); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("index: delete question: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tombstones (id, version, deleted_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET version = max(tombstones.version, excluded.version)
	`, id, version, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("index: write tombstone: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("index: commit: %w", err)
	}
	if st.tombstoned && !st.exists {
		return Tombstoned, nil
	}
	return Applied, nil
}

// Get returns the indexed document for id.
func (db *DB) Get(ctx context.Context, id string) (*Document, error) {
	var (
		doc      Document
		tagsJSON string
		created  sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, title, content, tags, version, checksum, created_at
		FROM questions WHERE id = ?
	`, id).Scan(&doc.ID, &doc.Title, &doc.Content, &tagsJSON, &doc.Version, &doc.Checksum, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get: %w", err)
	}
	_ = json.Unmarshal([]byte(tagsJSON), &doc.Tags)
	if created.Valid {
		doc.CreatedAt = created.Time
	}
	return &doc, nil
}

// IsTombstoned reports whether id was deleted.
func (db *DB) IsTombstoned(ctx context.Context, id string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM tombstones WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("index: tombstone lookup: %w", err)
	}
	return n > 0, nil
}

// AllChecksums returns the checksum of every indexed document keyed by id.
func (db *DB) AllChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, checksum FROM questions`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

func loadState(ctx context.Context, tx *sql.Tx, id string) (docState, error) {
	var st docState
	err := tx.QueryRowContext(ctx, `SELECT version FROM questions WHERE id = ?`, id).Scan(&st.version)
	switch {
	case err == nil:
		st.exists = true
	case !errors.Is(err, sql.ErrNoRows):
		return st, fmt.Errorf("index: load version: %w", err)
	}

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM tombstones WHERE id = ?`, id).Scan(&n); err != nil {
		return st, fmt.Errorf("index: load tombstone: %w", err)
	}
	st.tombstoned = n > 0
	return st, nil
}

// tagFilterSQL restricts the questions table (alias q) to one tag.
const tagFilterSQL = `EXISTS (SELECT 1 FROM json_each(q.tags) WHERE lower(json_each.value) = lower(?))`

// listByTag serves queries with no free text: newest first.
func (db *DB) listByTag(ctx context.Context, tag string, limit int) ([]Hit, error) {
	query := `SELECT q.id, q.title, q.content, q.tags, '' FROM questions q`
	var args []any
	if tag != "" {
		query += ` WHERE ` + tagFilterSQL
		args = append(args, tag)
	}
	query += ` ORDER BY q.created_at DESC, q.id LIMIT ?`
	args = append(args, limit)
	return db.queryHits(ctx, query, args...)
}

func (db *DB) queryHits(ctx context.Context, query string, args ...any) ([]Hit, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []Hit{}
	for rows.Next() {
		var (
			h        Hit
			tagsJSON string
		)
		if err := rows.Scan(&h.ID, &h.Title, &h.Content, &tagsJSON, &h.Snippet); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &h.Tags)
		out = append(out, h)
	}
	return out, rows.Err()
}
