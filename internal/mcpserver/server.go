// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the Reoverflow read side for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/reoverflow/internal/apperr"
	"github.com/starford/reoverflow/internal/index"
	"github.com/starford/reoverflow/internal/markup"
	"github.com/starford/reoverflow/internal/models"
)

const searchSyntaxURI = "reoverflow://search-syntax"

// Reader reads the authoritative question store. Reads through MCP do not
// count as views.
type Reader interface {
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	ListQuestions(ctx context.Context, tag string, limit, offset int) ([]models.Question, error)
	LoadTags(ctx context.Context) ([]models.Tag, error)
}

// Searcher queries the search index.
type Searcher interface {
	Search(ctx context.Context, text, tag string, limit int) ([]index.Hit, error)
}

// Server wraps the MCP server with Reoverflow tools.
type Server struct {
	mcp      *server.MCPServer
	reader   Reader
	searcher Searcher
}

// New creates a new MCP server with all tools registered.
func New(reader Reader, searcher Searcher) *Server {
	s := &Server{reader: reader, searcher: searcher}

	s.mcp = server.NewMCPServer(
		"Reoverflow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_questions",
		mcp.WithDescription("Full-text search over question titles and bodies. "+
			"Append a bracketed tag to filter, e.g. \"deadlock [go]\". "+
			"See the "+searchSyntaxURI+" resource for the full syntax."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query, optionally with one [tag] filter")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchQuestions)

	s.mcp.AddTool(mcp.NewTool("get_question",
		mcp.WithDescription("Read a question with all of its answers, including which answer was accepted."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Question id")),
	), s.getQuestion)

	s.mcp.AddTool(mcp.NewTool("list_questions",
		mcp.WithDescription("List recent questions, optionally only those with a given tag."),
		mcp.WithString("tag", mcp.Description("Optional tag slug")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of questions (default 20)")),
	), s.listQuestions)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List the tag catalog. Questions may only use these tags."),
	), s.listTags)

	s.mcp.AddResource(
		mcp.NewResource(searchSyntaxURI, "Search Syntax",
			mcp.WithResourceDescription("Query syntax accepted by search_questions."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSearchSyntax,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func limitArg(req mcp.CallToolRequest) int {
	limit := int(req.GetFloat("limit", 20))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return limit
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchQuestions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	q := markup.ParseQuery(raw)
	if q.Text == "" && q.Tag == "" {
		return mcp.NewToolResultError("query is empty"), nil
	}
	hits, err := s.searcher.Search(ctx, q.Text, q.Tag, limitArg(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("no questions found"), nil
	}
	return jsonResult(hits), nil
}

func (s *Server) getQuestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	q, err := s.reader.GetQuestion(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(q), nil
}

func (s *Server) listQuestions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag := req.GetString("tag", "")
	list, err := s.reader.ListQuestions(ctx, tag, limitArg(req), 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	for _, q := range list {
		fmt.Fprintf(&b, "%s\t%s\t[%s]\tanswers=%d", q.ID, q.Title, strings.Join(q.Tags, ", "), q.AnswerCount)
		if q.HasAcceptedAnswer {
			b.WriteString("\taccepted")
		}
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return mcp.NewToolResultText("no questions found"), nil
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (s *Server) listTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.reader.LoadTags(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	slugs := make([]string, len(list))
	for i, t := range list {
		slugs[i] = t.Slug
	}
	return mcp.NewToolResultText(strings.Join(slugs, "\n")), nil
}

func (s *Server) readSearchSyntax(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      searchSyntaxURI,
			MIMEType: "text/markdown",
			Text:     SearchSyntax,
		},
	}, nil
}
