package api

import (
	"github.com/starford/reoverflow/internal/models"
	"github.com/starford/reoverflow/internal/questions"
)

// QuestionRequest is the request body for creating or editing a question.
type QuestionRequest = questions.QuestionInput

// AnswerRequest is the request body for creating or editing an answer.
type AnswerRequest = questions.AnswerInput

// QuestionDetail is the full question response type (aliased from the domain layer).
type QuestionDetail = models.Question

// AnswerDetail is a single answer (aliased from the domain layer).
type AnswerDetail = models.Answer

// QuestionListItem is a lightweight item in a list response.
type QuestionListItem struct {
	ID                string   `json:"id" example:"9b2f0c1e-..." validate:"required"`
	Title             string   `json:"title" example:"How do channels work?" validate:"required"`
	Tags              []string `json:"tags" example:"go,concurrency" validate:"required"`
	AskerDisplayName  string   `json:"asker_display_name" example:"Alice"`
	ViewCount         int      `json:"view_count" example:"12"`
	AnswerCount       int      `json:"answer_count" example:"3"`
	HasAcceptedAnswer bool     `json:"has_accepted_answer"`
}

// QuestionListResponse wraps question listings.
type QuestionListResponse struct {
	Questions []QuestionListItem `json:"questions" validate:"required"`
}

// TagListResponse wraps the tag catalog.
type TagListResponse struct {
	Tags []models.Tag `json:"tags" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	ID      string   `json:"id" example:"9b2f0c1e-..." validate:"required"`
	Title   string   `json:"title" example:"How do channels work?" validate:"required"`
	Tags    []string `json:"tags" example:"go" validate:"required"`
	Snippet string   `json:"snippet" example:"...matched text..."`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Query   string         `json:"query" example:"channels"`
	Tag     string         `json:"tag,omitempty" example:"go"`
	Results []SearchResult `json:"results" validate:"required"`
}

func listItem(q models.Question) QuestionListItem {
	return QuestionListItem{
		ID:                q.ID,
		Title:             q.Title,
		Tags:              nonNilSlice(q.Tags),
		AskerDisplayName:  q.AskerDisplayName,
		ViewCount:         q.ViewCount,
		AnswerCount:       q.AnswerCount,
		HasAcceptedAnswer: q.HasAcceptedAnswer,
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
