package syncer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/reoverflow/internal/apperr"
	"github.com/starford/reoverflow/internal/index"
	"github.com/starford/reoverflow/internal/models"
)

// Source reads the authoritative questions.
type Source interface {
	ListQuestions(ctx context.Context, tag string, limit, offset int) ([]models.Question, error)
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
}

// ReconcileStats counts the repairs made by Reconcile.
type ReconcileStats struct {
	Checked  int
	Repaired int
	Removed  int
}

// Reconcile brings the index up to date with the source:
//   - questions whose projected checksum differs from the index are rewritten
//   - index entries whose question is confirmed gone from the source are deleted
//
// It repairs drift left by events that were never published. The index is
// read before the source, so a question projected while Reconcile runs is
// never mistaken for an orphan.
func Reconcile(ctx context.Context, src Source, idx index.SearchIndex, logger *slog.Logger) (ReconcileStats, error) {
	var stats ReconcileStats

	checksums, err := idx.AllChecksums(ctx)
	if err != nil {
		return stats, err
	}
	questions, err := src.ListQuestions(ctx, "", 0, 0)
	if err != nil {
		return stats, err
	}

	live := make(map[string]struct{}, len(questions))
	for i := range questions {
		q := &questions[i]
		live[q.ID] = struct{}{}
		stats.Checked++

		doc := ProjectQuestion(q)
		if checksums[q.ID] == doc.Checksum {
			continue
		}
		out, err := idx.Update(ctx, doc, true)
		if err != nil {
			logger.Warn("reconcile: index failed", slog.String("question_id", q.ID), slog.String("error", err.Error()))
			continue
		}
		switch out {
		case index.Applied:
			stats.Repaired++
			logger.Debug("reconcile: repaired", slog.String("question_id", q.ID))
		case index.Tombstoned:
			logger.Warn("reconcile: live question is tombstoned in the index", slog.String("question_id", q.ID))
		}
	}

	for id := range checksums {
		if _, ok := live[id]; ok {
			continue
		}
		gone, err := confirmDeleted(ctx, src, id)
		if err != nil {
			logger.Warn("reconcile: source lookup failed", slog.String("question_id", id), slog.String("error", err.Error()))
			continue
		}
		if !gone {
			continue
		}
		version := 0
		if doc, err := idx.Get(ctx, id); err == nil {
			version = doc.Version + 1
		} else if !errors.Is(err, index.ErrDocumentNotFound) {
			logger.Warn("reconcile: lookup failed", slog.String("question_id", id), slog.String("error", err.Error()))
			continue
		}
		// The source no longer has the question, and ids are never reused.
		if _, err := idx.Delete(ctx, id, version); err != nil {
			logger.Warn("reconcile: delete failed", slog.String("question_id", id), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		logger.Debug("reconcile: removed stale", slog.String("question_id", id))
	}

	return stats, nil
}

// confirmDeleted reports whether the source has no question with id.
func confirmDeleted(ctx context.Context, src Source, id string) (bool, error) {
	_, err := src.GetQuestion(ctx, id)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, apperr.ErrNotFound):
		return true, nil
	default:
		return false, err
	}
}
