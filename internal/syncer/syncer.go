// Package syncer projects domain events into the search index.
//
// Every projection is a pure function of the event content keyed by question
// id, so applying a delivery twice leaves the index as applying it once.
// Ordering comes from the question version carried on each event, and a
// delete leaves a tombstone that turns later stale writes into no-ops.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/reoverflow/internal/apperr"
	"github.com/starford/reoverflow/internal/bus"
	"github.com/starford/reoverflow/internal/checksum"
	"github.com/starford/reoverflow/internal/events"
	"github.com/starford/reoverflow/internal/index"
	"github.com/starford/reoverflow/internal/markup"
	"github.com/starford/reoverflow/internal/models"
)

// Result describes what applying one event did.
type Result string

const (
	ResultApplied    Result = "applied"
	ResultStale      Result = "stale"
	ResultTombstoned Result = "tombstoned"
	ResultIgnored    Result = "ignored"
)

// ChangeCallback is called after an event changed the index.
// kind is "indexed" or "removed".
type ChangeCallback func(kind, questionID string)

// Syncer applies domain events to a search index.
type Syncer struct {
	idx      index.SearchIndex
	upsert   bool
	logger   *slog.Logger
	onChange ChangeCallback
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithUpsertOnUpdate makes QuestionUpdated insert documents that were never
// indexed instead of reporting them missing.
func WithUpsertOnUpdate(on bool) Option {
	return func(s *Syncer) { s.upsert = on }
}

// WithLogger sets the syncer logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// WithChangeCallback registers cb for applied changes.
func WithChangeCallback(cb ChangeCallback) Option {
	return func(s *Syncer) { s.onChange = cb }
}

// New creates a syncer over idx.
func New(idx index.SearchIndex, opts ...Option) *Syncer {
	s := &Syncer{idx: idx, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply projects one event. It performs no retries; a returned error is a
// propagation failure to be retried by redelivery.
func (s *Syncer) Apply(ctx context.Context, ev events.Event) (Result, error) {
	switch ev.Type {
	case events.QuestionCreated, events.QuestionUpdated:
		var c events.QuestionContent
		if err := ev.Decode(&c); err != nil {
			return "", apperr.Wrap(apperr.CodePropagation, "syncer.apply", err)
		}
		doc := Project(ev.QuestionID, ev.Version, c)

		var (
			out index.Outcome
			err error
		)
		if ev.Type == events.QuestionCreated {
			out, err = s.idx.Create(ctx, doc)
		} else {
			out, err = s.idx.Update(ctx, doc, s.upsert)
		}
		if err != nil {
			return "", apperr.Wrap(apperr.CodePropagation, "syncer.apply", err)
		}
		return s.changed(out, "indexed", ev.QuestionID), nil

	case events.QuestionDeleted:
		out, err := s.idx.Delete(ctx, ev.QuestionID, ev.Version)
		if err != nil {
			return "", apperr.Wrap(apperr.CodePropagation, "syncer.apply", err)
		}
		return s.changed(out, "removed", ev.QuestionID), nil

	case events.AnswerCountUpdated, events.AnswerAccepted:
		// Answers are not part of the search document.
		return ResultIgnored, nil

	default:
		s.logger.Warn("syncer: unknown event type", slog.String("event_type", string(ev.Type)), slog.String("event_id", ev.ID))
		return ResultIgnored, nil
	}
}

func (s *Syncer) changed(out index.Outcome, kind, questionID string) Result {
	switch out {
	case index.Stale:
		return ResultStale
	case index.Tombstoned:
		return ResultTombstoned
	}
	if s.onChange != nil {
		s.onChange(kind, questionID)
	}
	return ResultApplied
}

// Handle is a bus.Handler. It reports failures and hands them back to the
// bus for redelivery; it never stops the consumer loop.
func (s *Syncer) Handle(ctx context.Context, d bus.Delivery) error {
	ev := d.Event
	res, err := s.Apply(ctx, ev)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, index.ErrDocumentNotFound) {
			// Usually an update that overtook its create.
			level = slog.LevelInfo
		}
		s.logger.Log(ctx, level, "syncer: projection failed",
			slog.String("event_id", ev.ID),
			slog.String("event_type", string(ev.Type)),
			slog.String("question_id", ev.QuestionID),
			slog.Int("version", ev.Version),
			slog.Int("attempt", d.Attempt),
			slog.String("error", err.Error()))
		return err
	}
	s.logger.Debug("syncer: event projected",
		slog.String("event_id", ev.ID),
		slog.String("event_type", string(ev.Type)),
		slog.String("question_id", ev.QuestionID),
		slog.String("result", string(res)))
	return nil
}

// Run consumes b until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context, b bus.Bus) error {
	if err := b.Consume(ctx, s.Handle); err != nil {
		return fmt.Errorf("syncer: consume: %w", err)
	}
	return nil
}

// Project builds the search document for a question event.
func Project(questionID string, version int, c events.QuestionContent) index.Document {
	content := markup.Strip(c.Content)
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return index.Document{
		ID:        questionID,
		Title:     c.Title,
		Content:   content,
		Tags:      tags,
		Version:   version,
		Checksum:  checksum.Document(c.Title, content, tags),
		CreatedAt: c.CreatedAt,
	}
}

// ProjectQuestion builds the search document straight from the aggregate.
func ProjectQuestion(q *models.Question) index.Document {
	return Project(q.ID, q.Version, events.QuestionContent{
		Title:     q.Title,
		Content:   q.Content,
		Tags:      q.Tags,
		CreatedAt: q.CreatedAt,
	})
}
