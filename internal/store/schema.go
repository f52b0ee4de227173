// Package store is the authoritative SQLite store for questions, answers and tags.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tags (
	slug        TEXT PRIMARY KEY COLLATE NOCASE,
	name        TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS questions (
	id                  TEXT PRIMARY KEY,
	title               TEXT NOT NULL,
	content             TEXT NOT NULL,
	tags                TEXT NOT NULL DEFAULT '[]',
	asker_id            TEXT NOT NULL,
	asker_display_name  TEXT NOT NULL DEFAULT '',
	view_count          INTEGER NOT NULL DEFAULT 0,
	answer_count        INTEGER NOT NULL DEFAULT 0,
	has_accepted_answer INTEGER NOT NULL DEFAULT 0,
	version             INTEGER NOT NULL DEFAULT 1,
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME
);

CREATE TABLE IF NOT EXISTS answers (
	id                TEXT PRIMARY KEY,
	question_id       TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	content           TEXT NOT NULL,
	user_id           TEXT NOT NULL,
	user_display_name TEXT NOT NULL DEFAULT '',
	accepted          INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME
);

CREATE INDEX IF NOT EXISTS idx_questions_created ON questions(created_at);
CREATE INDEX IF NOT EXISTS idx_answers_question ON answers(question_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_answers_one_accepted ON answers(question_id) WHERE accepted = 1;
`

// Store wraps a sql.DB with aggregate-scoped operations.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
// Write transactions take the database write lock at BEGIN.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// InTx runs fn inside one transaction. The transaction commits only when fn
// returns nil; any error rolls back every write fn made.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
