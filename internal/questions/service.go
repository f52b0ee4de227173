// Package questions implements the transactional operations over the
// Question aggregate. Each operation commits one transaction against the
// authoritative store and then publishes one domain event, best effort.
package questions

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/reoverflow/internal/apperr"
	"github.com/starford/reoverflow/internal/bus"
	"github.com/starford/reoverflow/internal/events"
	"github.com/starford/reoverflow/internal/models"
	"github.com/starford/reoverflow/internal/store"
)

const publishTimeout = 5 * time.Second

// TagCatalog validates tag slugs and lists the catalog.
type TagCatalog interface {
	Validate(ctx context.Context, slugs []string) bool
	Tags(ctx context.Context) ([]models.Tag, error)
}

// Service coordinates the store, the tag catalog and the event publisher.
type Service struct {
	store  *store.Store
	tags   TagCatalog
	pub    bus.Publisher
	logger *slog.Logger
	now    func() time.Time
	locks  *keyedMutex

	publishFailures atomic.Int64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new question service.
func NewService(st *store.Store, tags TagCatalog, pub bus.Publisher, opts ...Option) *Service {
	s := &Service{
		store:  st,
		tags:   tags,
		pub:    pub,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
		locks:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PublishFailures returns how many events could not be handed to the bus.
func (s *Service) PublishFailures() int64 {
	return s.publishFailures.Load()
}

// CreateQuestion validates and persists a new question, then emits QuestionCreated.
func (s *Service) CreateQuestion(ctx context.Context, user models.User, in QuestionInput) (*models.Question, error) {
	const op = "question.create"
	if err := requireUser(op, user); err != nil {
		return nil, err
	}
	tags, err := s.checkQuestion(ctx, op, &in)
	if err != nil {
		return nil, err
	}

	q := &models.Question{
		ID:               uuid.NewString(),
		Title:            in.Title,
		Content:          in.Content,
		Tags:             tags,
		AskerID:          user.ID,
		AskerDisplayName: user.DisplayName,
		Version:          1,
		CreatedAt:        s.now(),
	}
	err = s.store.InTx(ctx, func(tx *store.Tx) error {
		return tx.InsertQuestion(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.QuestionCreated, q.ID, q.Version, contentOf(q))
	return q, nil
}

// UpdateQuestion replaces title, content and tags. Only the asker may edit.
func (s *Service) UpdateQuestion(ctx context.Context, user models.User, id string, in QuestionInput) (*models.Question, error) {
	const op = "question.update"
	if err := requireUser(op, user); err != nil {
		return nil, err
	}
	tags, err := s.checkQuestion(ctx, op, &in)
	if err != nil {
		return nil, err
	}

	var q *models.Question
	err = s.mutate(ctx, id, func(tx *store.Tx) error {
		var err error
		if q, err = tx.LoadQuestion(ctx, id); err != nil {
			return err
		}
		if !q.IsAsker(user) {
			return apperr.Forbidden(op, "only the asker can edit this question")
		}
		now := s.now()
		q.Title = in.Title
		q.Content = in.Content
		q.Tags = tags
		q.Version++
		q.UpdatedAt = &now
		return tx.SaveQuestion(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.QuestionUpdated, q.ID, q.Version, contentOf(q))
	return q, nil
}

// DeleteQuestion removes a question and every answer it owns.
func (s *Service) DeleteQuestion(ctx context.Context, user models.User, id string) error {
	const op = "question.delete"
	if err := requireUser(op, user); err != nil {
		return err
	}

	var version int
	err := s.mutate(ctx, id, func(tx *store.Tx) error {
		q, err := tx.LoadQuestion(ctx, id)
		if err != nil {
			return err
		}
		if !q.IsAsker(user) {
			return apperr.Forbidden(op, "only the asker can delete this question")
		}
		version = q.Version + 1
		return tx.DeleteQuestion(ctx, id)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.QuestionDeleted, id, version, nil)
	return nil
}

// CreateAnswer appends an answer and recomputes the answer count in the same transaction.
func (s *Service) CreateAnswer(ctx context.Context, user models.User, questionID string, in AnswerInput) (*models.Answer, error) {
	const op = "answer.create"
	if err := requireUser(op, user); err != nil {
		return nil, err
	}
	if err := validate(op, &in); err != nil {
		return nil, err
	}

	var (
		a *models.Answer
		q *models.Question
	)
	err := s.mutate(ctx, questionID, func(tx *store.Tx) error {
		var err error
		if q, err = tx.LoadQuestion(ctx, questionID); err != nil {
			return err
		}
		a = &models.Answer{
			ID:              uuid.NewString(),
			QuestionID:      q.ID,
			Content:         in.Content,
			UserID:          user.ID,
			UserDisplayName: user.DisplayName,
			CreatedAt:       s.now(),
		}
		if err := q.AddAnswer(a); err != nil {
			return err
		}
		if err := tx.InsertAnswer(ctx, a); err != nil {
			return err
		}
		return tx.SaveQuestion(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.AnswerCountUpdated, q.ID, q.Version, events.AnswerCount{Count: q.AnswerCount})
	return a, nil
}

// UpdateAnswer replaces the content of an answer. Only its author may edit.
func (s *Service) UpdateAnswer(ctx context.Context, user models.User, questionID, answerID string, in AnswerInput) (*models.Answer, error) {
	const op = "answer.update"
	if err := requireUser(op, user); err != nil {
		return nil, err
	}
	if err := validate(op, &in); err != nil {
		return nil, err
	}

	var a *models.Answer
	err := s.mutate(ctx, questionID, func(tx *store.Tx) error {
		q, err := loadWithAnswer(ctx, tx, op, questionID, answerID)
		if err != nil {
			return err
		}
		if q.FindAnswer(answerID).UserID != user.ID {
			return apperr.Forbidden(op, "only the author can edit this answer")
		}
		if a, err = q.EditAnswer(answerID, in.Content, s.now()); err != nil {
			return err
		}
		return tx.SaveAnswer(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAnswer removes an answer that has not been accepted.
func (s *Service) DeleteAnswer(ctx context.Context, user models.User, questionID, answerID string) error {
	const op = "answer.delete"
	if err := requireUser(op, user); err != nil {
		return err
	}

	var q *models.Question
	err := s.mutate(ctx, questionID, func(tx *store.Tx) error {
		var err error
		if q, err = loadWithAnswer(ctx, tx, op, questionID, answerID); err != nil {
			return err
		}
		if q.FindAnswer(answerID).UserID != user.ID {
			return apperr.Forbidden(op, "only the author can delete this answer")
		}
		a, err := q.RemoveAnswer(answerID)
		if err != nil {
			return err
		}
		if err := tx.DeleteAnswer(ctx, a); err != nil {
			return err
		}
		return tx.SaveQuestion(ctx, q)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.AnswerCountUpdated, q.ID, q.Version, events.AnswerCount{Count: q.AnswerCount})
	return nil
}

// AcceptAnswer marks an answer as the accepted one. Only the asker may
// accept, and a question has at most one accepted answer.
func (s *Service) AcceptAnswer(ctx context.Context, user models.User, questionID, answerID string) (*models.Answer, error) {
	const op = "answer.accept"
	if err := requireUser(op, user); err != nil {
		return nil, err
	}

	var (
		a *models.Answer
		q *models.Question
	)
	err := s.mutate(ctx, questionID, func(tx *store.Tx) error {
		var err error
		if q, err = loadWithAnswer(ctx, tx, op, questionID, answerID); err != nil {
			return err
		}
		if !q.IsAsker(user) {
			return apperr.Forbidden(op, "only the asker can accept an answer")
		}
		if a, err = q.AcceptAnswer(answerID, s.now()); err != nil {
			return err
		}
		if err := tx.SaveAnswer(ctx, a); err != nil {
			return err
		}
		return tx.SaveQuestion(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.AnswerAccepted, q.ID, q.Version, events.Accepted{AnswerID: a.ID})
	return a, nil
}

// GetQuestion returns a question with its answers and counts the view.
// The view count is bumped outside any aggregate transaction.
func (s *Service) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.IncrementViewCount(ctx, id); err != nil {
		s.logger.Warn("view count not incremented", slog.String("question_id", id), slog.String("error", err.Error()))
	} else {
		q.ViewCount++
	}
	return q, nil
}

// ListQuestions returns questions newest first, optionally filtered by tag.
func (s *Service) ListQuestions(ctx context.Context, tag string, limit, offset int) ([]models.Question, error) {
	return s.store.ListQuestions(ctx, tag, limit, offset)
}

// ListTags returns the cached tag catalog.
func (s *Service) ListTags(ctx context.Context) ([]models.Tag, error) {
	return s.tags.Tags(ctx)
}

// mutate runs fn in one transaction while holding the question's lock, so
// check-then-write sequences such as AcceptAnswer are linearizable.
func (s *Service) mutate(ctx context.Context, questionID string, fn func(tx *store.Tx) error) error {
	unlock := s.locks.Lock(questionID)
	defer unlock()
	return s.store.InTx(ctx, fn)
}

func (s *Service) checkQuestion(ctx context.Context, op string, in *QuestionInput) ([]string, error) {
	if err := validate(op, in); err != nil {
		return nil, err
	}
	tags := models.NormalizeTags(in.Tags)
	if !s.tags.Validate(ctx, tags) {
		return nil, apperr.Validation(op, "one or more tags are not valid")
	}
	return tags, nil
}

// publish hands an event to the bus after commit. Failures are logged and
// counted; the committed state stands and reconciliation repairs the index.
func (s *Service) publish(ctx context.Context, typ events.Type, questionID string, version int, payload any) {
	log := s.logger.With(
		slog.String("event_type", string(typ)),
		slog.String("question_id", questionID),
		slog.Int("version", version))

	ev, err := events.New(typ, questionID, version, payload)
	if err != nil {
		s.publishFailures.Add(1)
		log.Error("event not built", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.publishFailures.Add(1)
		log.Error("event not published", slog.String("event_id", ev.ID), slog.String("error", err.Error()))
		return
	}
	log.Debug("event published", slog.String("event_id", ev.ID))
}

// loadWithAnswer loads the question and checks that answerID belongs to it.
// A reference to another question's answer is reported as not found.
func loadWithAnswer(ctx context.Context, tx *store.Tx, op, questionID, answerID string) (*models.Question, error) {
	q, err := tx.LoadQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q.FindAnswer(answerID) != nil {
		return q, nil
	}
	owner, err := tx.AnswerOwner(ctx, answerID)
	if err != nil {
		return nil, err
	}
	if owner != questionID {
		return nil, apperr.NotFound(op, "answer does not belong to this question")
	}
	return nil, apperr.NotFound(op, "answer not found")
}

func requireUser(op string, user models.User) error {
	if user.ID == "" {
		return apperr.Forbidden(op, "caller identity is required")
	}
	return nil
}

func contentOf(q *models.Question) events.QuestionContent {
	return events.QuestionContent{
		Title:     q.Title,
		Content:   q.Content,
		Tags:      q.Tags,
		CreatedAt: q.CreatedAt,
	}
}
