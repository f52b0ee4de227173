package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/reoverflow/internal/apperr"
)

// IsAsker reports whether u asked the question.
func (q *Question) IsAsker(u User) bool {
	return u.ID != "" && u.ID == q.AskerID
}

// FindAnswer returns the owned answer with the given id, or nil.
func (q *Question) FindAnswer(id string) *Answer {
	for _, a := range q.Answers {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// AcceptedAnswer returns the accepted answer, if any.
func (q *Question) AcceptedAnswer() *Answer {
	for _, a := range q.Answers {
		if a.Accepted {
			return a
		}
	}
	return nil
}

// AddAnswer appends a to the question and recomputes the answer count.
func (q *Question) AddAnswer(a *Answer) error {
	if a.QuestionID != q.ID {
		return apperr.Invariant("answer.add", "answer belongs to another question")
	}
	if q.FindAnswer(a.ID) != nil {
		return apperr.Invariant("answer.add", "answer already attached")
	}
	q.Answers = append(q.Answers, a)
	q.recount()
	return nil
}

// EditAnswer replaces the content of an owned answer.
func (q *Question) EditAnswer(id, content string, now time.Time) (*Answer, error) {
	a := q.FindAnswer(id)
	if a == nil {
		return nil, apperr.NotFound("answer.edit", "answer not found")
	}
	a.Content = content
	a.UpdatedAt = &now
	return a, nil
}

// RemoveAnswer detaches an answer. Accepted answers cannot be removed.
func (q *Question) RemoveAnswer(id string) (*Answer, error) {
	for i, a := range q.Answers {
		if a.ID != id {
			continue
		}
		if a.Accepted {
			return nil, apperr.Invariant("answer.remove", "cannot delete an accepted answer")
		}
		q.Answers = append(q.Answers[:i], q.Answers[i+1:]...)
		q.recount()
		return a, nil
	}
	return nil, apperr.NotFound("answer.remove", "answer not found")
}

// AcceptAnswer marks an answer accepted. It scans the full answer set, so the
// caller must hold the question's write lock for the result to be linearizable.
func (q *Question) AcceptAnswer(id string, now time.Time) (*Answer, error) {
	a := q.FindAnswer(id)
	if a == nil {
		return nil, apperr.NotFound("answer.accept", "answer not found")
	}
	if a.Accepted {
		return nil, apperr.Invariant("answer.accept", "this answer has already been accepted")
	}
	if q.AcceptedAnswer() != nil {
		return nil, apperr.Invariant("answer.accept", "this question already has an accepted answer")
	}
	a.Accepted = true
	a.UpdatedAt = &now
	q.recount()
	return a, nil
}

// CheckInvariants verifies the aggregate is consistent.
func (q *Question) CheckInvariants() error {
	if q.AnswerCount != len(q.Answers) {
		return fmt.Errorf("question %s: answer count %d != %d answers", q.ID, q.AnswerCount, len(q.Answers))
	}
	accepted := 0
	for _, a := range q.Answers {
		if a.QuestionID != q.ID {
			return fmt.Errorf("question %s: answer %s owned by %s", q.ID, a.ID, a.QuestionID)
		}
		if a.Accepted {
			accepted++
		}
	}
	if accepted > 1 {
		return fmt.Errorf("question %s: %d accepted answers", q.ID, accepted)
	}
	return nil
}

func (q *Question) recount() {
	q.AnswerCount = len(q.Answers)
	q.HasAcceptedAnswer = q.AcceptedAnswer() != nil
}

// NormalizeTags lower-cases, trims and de-duplicates slugs, keeping first-seen order.
func NormalizeTags(slugs []string) []string {
	out := make([]string, 0, len(slugs))
	seen := make(map[string]struct{}, len(slugs))
	for _, s := range slugs {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
