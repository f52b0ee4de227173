package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/reoverflow/internal/index"
	"github.com/starford/reoverflow/internal/markup"
	"github.com/starford/reoverflow/internal/questions"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// Searcher is the read path over the search index.
type Searcher interface {
	Search(ctx context.Context, text, tag string, limit int) ([]index.Hit, error)
}

// Handler holds API route handlers.
type Handler struct {
	svc      *questions.Service
	searcher Searcher
}

// NewHandler creates a new Handler.
func NewHandler(svc *questions.Service, searcher Searcher) *Handler {
	return &Handler{svc: svc, searcher: searcher}
}

// ListQuestions handles GET /api/questions.
//
//	@Summary		List questions newest first
//	@Tags			questions
//	@Produce		json
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	QuestionListResponse
//	@Security		BearerAuth
//	@Router			/questions [get]
func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	list, err := h.svc.ListQuestions(r.Context(), q.Get("tag"), limit, offset)
	if err != nil {
		writeError(w, "list questions", err)
		return
	}
	items := make([]QuestionListItem, len(list))
	for i, item := range list {
		items[i] = listItem(item)
	}
	writeJSON(w, http.StatusOK, QuestionListResponse{Questions: items})
}

// GetQuestion handles GET /api/questions/{id}.
//
//	@Summary		Get a question with its answers
//	@Tags			questions
//	@Produce		json
//	@Param			id	path		string	true	"Question id"
//	@Success		200	{object}	QuestionDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/questions/{id} [get]
func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.GetQuestion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get question", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// CreateQuestion handles POST /api/questions.
//
//	@Summary		Ask a question
//	@Tags			questions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		QuestionRequest	true	"Question to create"
//	@Success		201		{object}	QuestionDetail
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/questions [post]
func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := h.svc.CreateQuestion(r.Context(), UserFrom(r.Context()), req)
	if err != nil {
		writeError(w, "create question", err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// UpdateQuestion handles PUT /api/questions/{id}.
//
//	@Summary		Edit a question
//	@Tags			questions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Question id"
//	@Param			body	body		QuestionRequest	true	"Updated fields"
//	@Success		200		{object}	QuestionDetail
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/questions/{id} [put]
func (h *Handler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := h.svc.UpdateQuestion(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, "update question", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// DeleteQuestion handles DELETE /api/questions/{id}.
//
//	@Summary		Delete a question and its answers
//	@Tags			questions
//	@Param			id	path	string	true	"Question id"
//	@Success		204	"Question deleted"
//	@Failure		403	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/questions/{id} [delete]
func (h *Handler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteQuestion(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete question", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateAnswer handles POST /api/questions/{id}/answers.
//
//	@Summary		Answer a question
//	@Tags			answers
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Question id"
//	@Param			body	body		AnswerRequest	true	"Answer to create"
//	@Success		201		{object}	AnswerDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/questions/{id}/answers [post]
func (h *Handler) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.CreateAnswer(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, "create answer", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// UpdateAnswer handles PUT /api/questions/{id}/answers/{answerID}.
//
//	@Summary		Edit an answer
//	@Tags			answers
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string			true	"Question id"
//	@Param			answerID	path		string			true	"Answer id"
//	@Param			body		body		AnswerRequest	true	"Updated content"
//	@Success		200			{object}	AnswerDetail
//	@Failure		403			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/questions/{id}/answers/{answerID} [put]
func (h *Handler) UpdateAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.UpdateAnswer(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "answerID"), req)
	if err != nil {
		writeError(w, "update answer", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteAnswer handles DELETE /api/questions/{id}/answers/{answerID}.
//
//	@Summary		Delete an answer that has not been accepted
//	@Tags			answers
//	@Param			id			path	string	true	"Question id"
//	@Param			answerID	path	string	true	"Answer id"
//	@Success		204			"Answer deleted"
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/questions/{id}/answers/{answerID} [delete]
func (h *Handler) DeleteAnswer(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeleteAnswer(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "answerID"))
	if err != nil {
		writeError(w, "delete answer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AcceptAnswer handles POST /api/questions/{id}/answers/{answerID}/accept.
//
//	@Summary		Accept an answer
//	@Tags			answers
//	@Produce		json
//	@Param			id			path		string	true	"Question id"
//	@Param			answerID	path		string	true	"Answer id"
//	@Success		200			{object}	AnswerDetail
//	@Failure		403			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/questions/{id}/answers/{answerID}/accept [post]
func (h *Handler) AcceptAnswer(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.AcceptAnswer(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "answerID"))
	if err != nil {
		writeError(w, "accept answer", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListTags handles GET /api/tags.
//
//	@Summary		List the tag catalog
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagListResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListTags(r.Context())
	if err != nil {
		writeError(w, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: nonNilSlice(list)})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search over questions
//	@Description	A bracketed token restricts results to a tag, e.g. "channels [go]".
//	@Tags			search
//	@Produce		json
//	@Param			query	query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("query")
	parsed := markup.ParseQuery(raw)
	if parsed.Text == "" && parsed.Tag == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'query' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	hits, err := h.searcher.Search(r.Context(), parsed.Text, parsed.Tag, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", raw), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	results := make([]SearchResult, len(hits))
	for i, hit := range hits {
		results[i] = SearchResult{
			ID:      hit.ID,
			Title:   hit.Title,
			Tags:    nonNilSlice(hit.Tags),
			Snippet: hit.Snippet,
		}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: parsed.Text, Tag: parsed.Tag, Results: results})
}
