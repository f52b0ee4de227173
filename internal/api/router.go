package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/reoverflow/internal/questions"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *questions.Service, searcher Searcher, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, searcher)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))
	r.Use(IdentityMiddleware)

	// Questions.
	r.Get("/questions", h.ListQuestions)
	r.Post("/questions", h.CreateQuestion)
	r.Get("/questions/{id}", h.GetQuestion)
	r.Put("/questions/{id}", h.UpdateQuestion)
	r.Delete("/questions/{id}", h.DeleteQuestion)

	// Answers.
	r.Post("/questions/{id}/answers", h.CreateAnswer)
	r.Put("/questions/{id}/answers/{answerID}", h.UpdateAnswer)
	r.Delete("/questions/{id}/answers/{answerID}", h.DeleteAnswer)
	r.Post("/questions/{id}/answers/{answerID}/accept", h.AcceptAnswer)

	// Tags.
	r.Get("/tags", h.ListTags)

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
