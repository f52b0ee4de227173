// Package events defines the domain events emitted after each committed
// aggregate mutation and their wire encoding.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names a domain event.
type Type string

const (
	QuestionCreated    Type = "question.created"
	QuestionUpdated    Type = "question.updated"
	QuestionDeleted    Type = "question.deleted"
	AnswerCountUpdated Type = "answer.count_updated"
	AnswerAccepted     Type = "answer.accepted"
)

// Event is the envelope carried by the bus. Version is the question version
// the event was emitted at; consumers use it to discard stale deliveries.
type Event struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	QuestionID string          `json:"question_id"`
	Version    int             `json:"version"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// QuestionContent is the payload of QuestionCreated and QuestionUpdated.
// It always carries the full document, never a delta.
type QuestionContent struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// AnswerCount is the payload of AnswerCountUpdated.
type AnswerCount struct {
	Count int `json:"count"`
}

// Accepted is the payload of AnswerAccepted.
type Accepted struct {
	AnswerID string `json:"answer_id"`
}

// New builds an event with a fresh id and the given payload.
func New(t Type, questionID string, version int, payload any) (Event, error) {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       t,
		QuestionID: questionID,
		Version:    version,
		OccurredAt: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("events: encode %s payload: %w", t, err)
		}
		ev.Payload = raw
	}
	return ev, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("events: %s %s has no payload", e.Type, e.ID)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("events: decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Marshal encodes the envelope for transport.
func Marshal(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes an envelope and checks it names a question.
func Unmarshal(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("events: decode envelope: %w", err)
	}
	if e.Type == "" || e.QuestionID == "" {
		return Event{}, fmt.Errorf("events: envelope missing type or question id")
	}
	return e, nil
}
