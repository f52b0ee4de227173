// Package models defines the domain types for Reoverflow.
package models

import "time"

// User is the caller identity supplied by the authentication boundary.
// It is captured on write and never re-resolved.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Tag is a catalog entry. Slugs are compared case-insensitively.
type Tag struct {
	Slug        string `json:"slug" yaml:"slug"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// Question is the aggregate root. Answers holds the single in-memory copy
// of every answer owned by the question; persistence writes from it.
type Question struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Content           string     `json:"content"`
	Tags              []string   `json:"tags"`
	AskerID           string     `json:"asker_id"`
	AskerDisplayName  string     `json:"asker_display_name"`
	ViewCount         int        `json:"view_count"`
	AnswerCount       int        `json:"answer_count"`
	HasAcceptedAnswer bool       `json:"has_accepted_answer"`
	Version           int        `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
	Answers           []*Answer  `json:"answers,omitempty"`
}

// Answer belongs to exactly one question for its whole life.
type Answer struct {
	ID              string     `json:"id"`
	QuestionID      string     `json:"question_id"`
	Content         string     `json:"content"`
	UserID          string     `json:"user_id"`
	UserDisplayName string     `json:"user_display_name"`
	Accepted        bool       `json:"accepted"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}
