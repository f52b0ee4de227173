package mcpserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/reoverflow/internal/index"
	"github.com/starford/reoverflow/internal/models"
	"github.com/starford/reoverflow/internal/store"
	"github.com/starford/reoverflow/internal/syncer"
	"github.com/starford/reoverflow/internal/testutil"
)

func testServer(t *testing.T) (*Server, *store.Store, *index.DB) {
	t.Helper()
	st := testutil.TestStore(t)
	idx := testutil.TestIndex(t)
	if err := st.UpsertTags(context.Background(), []models.Tag{{Slug: "go", Name: "Go"}, {Slug: "sql", Name: "SQL"}}); err != nil {
		t.Fatal(err)
	}
	return New(st, idx), st, idx
}

func seed(t *testing.T, st *store.Store, idx *index.DB, id, title string, tags ...string) {
	t.Helper()
	ctx := context.Background()
	q := &models.Question{
		ID:               id,
		Title:            title,
		Content:          "<p>Hello from " + title + "</p>",
		Tags:             tags,
		AskerID:          "u1",
		AskerDisplayName: "Alice",
		Version:          1,
		CreatedAt:        time.Now().UTC(),
	}
	if err := st.InTx(ctx, func(tx *store.Tx) error { return tx.InsertQuestion(ctx, q) }); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Create(ctx, syncer.ProjectQuestion(q)); err != nil {
		t.Fatal(err)
	}
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process "call tool" helper; call the handlers directly.
	var (
		result *mcp.CallToolResult
		err    error
	)
	switch name {
	case "search_questions":
		result, err = srv.searchQuestions(ctx, req)
	case "get_question":
		result, err = srv.getQuestion(ctx, req)
	case "list_questions":
		result, err = srv.listQuestions(ctx, req)
	case "list_tags":
		result, err = srv.listTags(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSearchQuestions(t *testing.T) {
	srv, st, idx := testServer(t)
	seed(t, st, idx, "q1", "Channels", "go")
	seed(t, st, idx, "q2", "Joins", "sql")

	r := callTool(t, srv, "search_questions", map[string]any{"query": "Hello [go]"})
	text := resultText(r)
	if r.IsError || !strings.Contains(text, `"q1"`) || strings.Contains(text, `"q2"`) {
		t.Errorf("search result = %q", text)
	}

	r = callTool(t, srv, "search_questions", map[string]any{"query": "nothing-matches-this"})
	if resultText(r) != "no questions found" {
		t.Errorf("empty search = %q", resultText(r))
	}

	r = callTool(t, srv, "search_questions", map[string]any{"query": "  "})
	if !r.IsError {
		t.Error("expected error for blank query")
	}
}

func TestGetQuestion(t *testing.T) {
	srv, st, idx := testServer(t)
	seed(t, st, idx, "q1", "Channels", "go")

	r := callTool(t, srv, "get_question", map[string]any{"id": "q1"})
	if r.IsError || !strings.Contains(resultText(r), `"title": "Channels"`) {
		t.Errorf("get result = %q", resultText(r))
	}

	q, _ := st.GetQuestion(context.Background(), "q1")
	if q.ViewCount != 0 {
		t.Errorf("MCP read counted a view: %d", q.ViewCount)
	}

	r = callTool(t, srv, "get_question", map[string]any{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing question")
	}
}

func TestListQuestions(t *testing.T) {
	srv, st, idx := testServer(t)
	seed(t, st, idx, "q1", "Channels", "go")
	seed(t, st, idx, "q2", "Joins", "sql")

	r := callTool(t, srv, "list_questions", map[string]any{"tag": "sql"})
	text := resultText(r)
	if !strings.HasPrefix(text, "q2\tJoins") || strings.Contains(text, "q1") {
		t.Errorf("list result = %q", text)
	}
}

func TestListTags(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "list_tags", map[string]any{})
	text := resultText(r)
	if !strings.Contains(text, "go") || !strings.Contains(text, "sql") {
		t.Errorf("tags = %q", text)
	}
}
