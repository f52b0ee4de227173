package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/reoverflow/internal/events"
	"github.com/starford/reoverflow/internal/index"
	"github.com/starford/reoverflow/internal/models"
	"github.com/starford/reoverflow/internal/questions"
	"github.com/starford/reoverflow/internal/syncer"
	"github.com/starford/reoverflow/internal/tags"
	"github.com/starford/reoverflow/internal/testutil"
)

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, events.Event) error { return nil }

type testEnv struct {
	svc    *questions.Service
	idx    *index.DB
	router http.Handler
}

// newTestEnv sets up a temp store, index, service, and router for testing.
// An empty authToken means disabled mode.
func newTestEnv(t *testing.T, authToken string, sseHandler http.Handler) *testEnv {
	t.Helper()
	st := testutil.TestStore(t)
	if err := st.UpsertTags(context.Background(), []models.Tag{{Slug: "go", Name: "Go"}, {Slug: "sql", Name: "SQL"}}); err != nil {
		t.Fatalf("UpsertTags: %v", err)
	}
	cache := tags.NewCache(st, time.Hour, tags.WithLogger(testutil.Logger()))
	svc := questions.NewService(st, cache, discardPublisher{}, questions.WithLogger(testutil.Logger()))
	idx := testutil.TestIndex(t)

	return &testEnv{
		svc:    svc,
		idx:    idx,
		router: NewRouter(svc, idx, authToken != "", authToken, sseHandler),
	}
}

func (e *testEnv) do(t *testing.T, method, target string, user *models.User, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if user != nil {
		req.Header.Set(HeaderUserID, user.ID)
		req.Header.Set(HeaderUserName, user.DisplayName)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

var (
	alice = &models.User{ID: "u-alice", DisplayName: "Alice"}
	bob   = &models.User{ID: "u-bob", DisplayName: "Bob"}
)

func (e *testEnv) createQuestion(t *testing.T) models.Question {
	t.Helper()
	w := e.do(t, http.MethodPost, "/questions", alice, QuestionRequest{
		Title:   "How do channels work?",
		Content: "<p>Hello <b>world</b></p>",
		Tags:    []string{"go"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var q models.Question
	_ = json.Unmarshal(w.Body.Bytes(), &q)
	return q
}

func (e *testEnv) createAnswer(t *testing.T, qid string) models.Answer {
	t.Helper()
	w := e.do(t, http.MethodPost, "/questions/"+qid+"/answers", bob, AnswerRequest{Content: "Use select."})
	if w.Code != http.StatusCreated {
		t.Fatalf("answer status = %d, body = %s", w.Code, w.Body.String())
	}
	var a models.Answer
	_ = json.Unmarshal(w.Body.Bytes(), &a)
	return a
}

func TestCreateAndGetQuestion(t *testing.T) {
	env := newTestEnv(t, "", nil)
	q := env.createQuestion(t)
	if q.ID == "" || q.AskerDisplayName != "Alice" {
		t.Fatalf("created = %+v", q)
	}

	w := env.do(t, http.MethodGet, "/questions/"+q.ID, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var got models.Question
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Title != q.Title || got.ViewCount != 1 {
		t.Errorf("got = %+v", got)
	}
}

func TestCreateQuestion_StatusCodes(t *testing.T) {
	env := newTestEnv(t, "", nil)

	tests := []struct {
		name string
		user *models.User
		body any
		want int
	}{
		{"unknown tag", alice, QuestionRequest{Title: "T", Content: "c", Tags: []string{"cobol"}}, http.StatusBadRequest},
		{"missing title", alice, QuestionRequest{Content: "c", Tags: []string{"go"}}, http.StatusBadRequest},
		{"bad json", alice, "not an object", http.StatusBadRequest},
		{"anonymous", nil, QuestionRequest{Title: "T", Content: "c", Tags: []string{"go"}}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/questions", tt.user, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestUpdateAndDeleteQuestion(t *testing.T) {
	env := newTestEnv(t, "", nil)
	q := env.createQuestion(t)

	body := QuestionRequest{Title: "Edited", Content: "c", Tags: []string{"sql"}}
	if w := env.do(t, http.MethodPut, "/questions/"+q.ID, bob, body); w.Code != http.StatusForbidden {
		t.Errorf("update by other = %d, want 403", w.Code)
	}
	if w := env.do(t, http.MethodPut, "/questions/"+q.ID, alice, body); w.Code != http.StatusOK {
		t.Errorf("update by asker = %d, want 200", w.Code)
	}
	if w := env.do(t, http.MethodPut, "/questions/ghost", alice, body); w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}

	if w := env.do(t, http.MethodDelete, "/questions/"+q.ID, alice, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/questions/"+q.ID, nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d, want 404", w.Code)
	}
}

func TestAnswerLifecycle(t *testing.T) {
	env := newTestEnv(t, "", nil)
	q := env.createQuestion(t)
	a := env.createAnswer(t, q.ID)

	base := "/questions/" + q.ID + "/answers/" + a.ID
	if w := env.do(t, http.MethodPut, base, bob, AnswerRequest{Content: "Use select with a timeout."}); w.Code != http.StatusOK {
		t.Errorf("edit = %d, want 200", w.Code)
	}
	if w := env.do(t, http.MethodPost, base+"/accept", bob, nil); w.Code != http.StatusForbidden {
		t.Errorf("accept by answerer = %d, want 403", w.Code)
	}
	if w := env.do(t, http.MethodPost, base+"/accept", alice, nil); w.Code != http.StatusOK {
		t.Errorf("accept = %d, want 200", w.Code)
	}

	w := env.do(t, http.MethodDelete, base, bob, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("delete accepted = %d, want 409", w.Code)
	}
	var resp errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != "invariant_violation" || resp.Error == "" {
		t.Errorf("error body = %+v", resp)
	}

	w = env.do(t, http.MethodGet, "/questions/"+q.ID, nil, nil)
	var got models.Question
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.AnswerCount != 1 || !got.HasAcceptedAnswer || len(got.Answers) != 1 {
		t.Errorf("question = %+v", got)
	}
}

func TestAnswer_CrossQuestionIs404(t *testing.T) {
	env := newTestEnv(t, "", nil)
	q1 := env.createQuestion(t)
	q2 := env.createQuestion(t)
	a := env.createAnswer(t, q1.ID)

	w := env.do(t, http.MethodPut, "/questions/"+q2.ID+"/answers/"+a.ID, bob, AnswerRequest{Content: "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("cross-question edit = %d, want 404", w.Code)
	}
}

func TestListQuestionsAndTags(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.createQuestion(t)
	env.createQuestion(t)

	w := env.do(t, http.MethodGet, "/questions?tag=GO", nil, nil)
	var list QuestionListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if w.Code != http.StatusOK || len(list.Questions) != 2 {
		t.Errorf("list = %d %+v", w.Code, list)
	}

	w = env.do(t, http.MethodGet, "/questions?tag=sql", nil, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Questions) != 0 {
		t.Errorf("sql list = %+v", list)
	}

	w = env.do(t, http.MethodGet, "/tags", nil, nil)
	var tl TagListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &tl)
	if w.Code != http.StatusOK || len(tl.Tags) != 2 {
		t.Errorf("tags = %d %+v", w.Code, tl)
	}
}

func TestSearchEndpoint(t *testing.T) {
	env := newTestEnv(t, "", nil)
	q := env.createQuestion(t)
	if _, err := env.idx.Create(context.Background(), syncer.ProjectQuestion(&q)); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodGet, "/search?query=Hello+%5Bgo%5D", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Tag != "go" || len(resp.Results) != 1 || resp.Results[0].ID != q.ID {
		t.Errorf("search = %+v", resp)
	}

	w = env.do(t, http.MethodGet, "/search?query=Hello+%5Bsql%5D", nil, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 0 {
		t.Errorf("tag filter leaked: %+v", resp)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	env := newTestEnv(t, "", nil)
	if w := env.do(t, http.MethodGet, "/search", nil, nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, "secret123", nil)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer wrong", http.StatusUnauthorized},
		{"valid", "Bearer secret123", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/questions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	env := newTestEnv(t, "", nil)
	if w := env.do(t, http.MethodGet, "/questions", nil, nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestIdentityMiddleware_DefaultsDisplayName(t *testing.T) {
	var got models.User
	h := IdentityMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = UserFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "u-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got.ID != "u-42" || got.DisplayName != "u-42" {
		t.Errorf("user = %+v", got)
	}
}

// stubSSE writes headers and blocks until the request context is done.
var stubSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	env := newTestEnv(t, "secret", stubSSE)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	env := newTestEnv(t, "tok", stubSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
