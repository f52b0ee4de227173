package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/reoverflow/internal/apperr"
	"github.com/starford/reoverflow/internal/models"
)

const questionColumns = `id, title, content, tags, asker_id, asker_display_name, view_count,
	answer_count, has_accepted_answer, version, created_at, updated_at`

const answerColumns = `id, question_id, content, user_id, user_display_name, accepted, created_at, updated_at`

// Tx exposes aggregate writes bound to one transaction.
type Tx struct {
	tx *sql.Tx
}

// LoadQuestion reads the question and all of its answers inside the transaction.
func (t *Tx) LoadQuestion(ctx context.Context, id string) (*models.Question, error) {
	return loadQuestion(ctx, t.tx, id)
}

// InsertQuestion persists a new question.
func (t *Tx) InsertQuestion(ctx context.Context, q *models.Question) error {
	tagsJSON, err := json.Marshal(q.Tags)
	if err != nil {
		return fmt.Errorf("store: encode tags: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO questions (`+questionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.ID, q.Title, q.Content, string(tagsJSON), q.AskerID, q.AskerDisplayName, q.ViewCount,
		q.AnswerCount, q.HasAcceptedAnswer, q.Version, q.CreatedAt, nullTime(q.UpdatedAt))
	if err != nil {
		return fmt.Errorf("store: insert question: %w", err)
	}
	return nil
}

// SaveQuestion writes the mutable question fields, including the
// denormalized answer count. View count is never written here.
func (t *Tx) SaveQuestion(ctx context.Context, q *models.Question) error {
	tagsJSON, err := json.Marshal(q.Tags)
	if err != nil {
		return fmt.Errorf("store: encode tags: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE questions SET
			title               = ?,
			content             = ?,
			tags                = ?,
			answer_count        = ?,
			has_accepted_answer = ?,
			version             = ?,
			updated_at          = ?
		WHERE id = ?
	`, q.Title, q.Content, string(tagsJSON), q.AnswerCount, q.HasAcceptedAnswer, q.Version,
		nullTime(q.UpdatedAt), q.ID)
	if err != nil {
		return fmt.Errorf("store: save question: %w", err)
	}
	return requireRow(res, "question.save", "question not found")
}

// DeleteQuestion removes the question; answers go with it through the cascade.
func (t *Tx) DeleteQuestion(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete question: %w", err)
	}
	return requireRow(res, "question.delete", "question not found")
}

// InsertAnswer persists a new answer.
func (t *Tx) InsertAnswer(ctx context.Context, a *models.Answer) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO answers (`+answerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.QuestionID, a.Content, a.UserID, a.UserDisplayName, a.Accepted, a.CreatedAt, nullTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("store: insert answer: %w", err)
	}
	return nil
}

// SaveAnswer writes the mutable answer fields. The owning question id is
// part of the key so an answer can never be repointed.
func (t *Tx) SaveAnswer(ctx context.Context, a *models.Answer) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE answers SET content = ?, accepted = ?, updated_at = ?
		WHERE id = ? AND question_id = ?
	`, a.Content, a.Accepted, nullTime(a.UpdatedAt), a.ID, a.QuestionID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Invariant("answer.save", "this question already has an accepted answer")
		}
		return fmt.Errorf("store: save answer: %w", err)
	}
	return requireRow(res, "answer.save", "answer not found")
}

// DeleteAnswer removes an answer row.
func (t *Tx) DeleteAnswer(ctx context.Context, a *models.Answer) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM answers WHERE id = ? AND question_id = ?`, a.ID, a.QuestionID)
	if err != nil {
		return fmt.Errorf("store: delete answer: %w", err)
	}
	return requireRow(res, "answer.delete", "answer not found")
}

// AnswerOwner returns the question id an answer belongs to.
func (t *Tx) AnswerOwner(ctx context.Context, answerID string) (string, error) {
	var qid string
	err := t.tx.QueryRowContext(ctx, `SELECT question_id FROM answers WHERE id = ?`, answerID).Scan(&qid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.NotFound("answer.owner", "answer not found")
	}
	if err != nil {
		return "", fmt.Errorf("store: answer owner: %w", err)
	}
	return qid, nil
}

// GetQuestion reads a question with its answers outside any write transaction.
func (s *Store) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	return loadQuestion(ctx, s.conn, id)
}

// IncrementViewCount bumps the view counter with a single statement.
func (s *Store) IncrementViewCount(ctx context.Context, id string) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE questions SET view_count = view_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: increment view count: %w", err)
	}
	return nil
}

// ListQuestions returns questions newest first, without answers.
// tag filters case-insensitively; limit <= 0 returns every row.
func (s *Store) ListQuestions(ctx context.Context, tag string, limit, offset int) ([]models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions`
	var args []any
	if tag != "" {
		query += ` WHERE EXISTS (SELECT 1 FROM json_each(questions.tags) WHERE lower(json_each.value) = lower(?))`
		args = append(args, tag)
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list questions: %w", err)
	}
	defer rows.Close()

	var out []models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func loadQuestion(ctx context.Context, db querier, id string) (*models.Question, error) {
	row := db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("question.load", "question not found")
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+answerColumns+` FROM answers
		WHERE question_id = ?
		ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("store: load answers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		q.Answers = append(q.Answers, a)
	}
	return q, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(sc scanner) (*models.Question, error) {
	var (
		q        models.Question
		tagsJSON string
		updated  sql.NullTime
	)
	err := sc.Scan(&q.ID, &q.Title, &q.Content, &tagsJSON, &q.AskerID, &q.AskerDisplayName, &q.ViewCount,
		&q.AnswerCount, &q.HasAcceptedAnswer, &q.Version, &q.CreatedAt, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan question: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &q.Tags); err != nil {
		return nil, fmt.Errorf("store: decode tags: %w", err)
	}
	if q.Tags == nil {
		q.Tags = []string{}
	}
	q.UpdatedAt = timePtr(updated)
	return &q, nil
}

func scanAnswer(sc scanner) (*models.Answer, error) {
	var (
		a       models.Answer
		updated sql.NullTime
	)
	if err := sc.Scan(&a.ID, &a.QuestionID, &a.Content, &a.UserID, &a.UserDisplayName, &a.Accepted,
		&a.CreatedAt, &updated); err != nil {
		return nil, fmt.Errorf("store: scan answer: %w", err)
	}
	a.UpdatedAt = timePtr(updated)
	return &a, nil
}

func requireRow(res sql.Result, op, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound(op, msg)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
