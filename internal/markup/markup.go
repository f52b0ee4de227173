// Package markup normalizes rich-text content for indexing and parses search queries.
package markup

import (
	"html"
	"regexp"
	"strings"
)

var (
	// Non-greedy so each <...> span is removed on its own.
	tagRe      = regexp.MustCompile(`<[^>]*?>`)
	spaceRe    = regexp.MustCompile(`\s+`)
	tagQueryRe = regexp.MustCompile(`\[(.*?)\]`)
)

// Strip removes markup tags from content and unescapes entities. A '<' with
// no closing '>' is cut with everything after it so no partial tag reaches
// the index. Entities are unescaped last, so "&lt;" survives as text.
func Strip(content string) string {
	out := tagRe.ReplaceAllString(content, "")
	if i := strings.LastIndex(out, "<"); i >= 0 && !strings.Contains(out[i:], ">") {
		out = out[:i]
	}
	out = strings.ReplaceAll(html.UnescapeString(out), "\u00a0", " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(out, " "))
}

// Query is a parsed search request.
type Query struct {
	Text string
	Tag  string
}

// ParseQuery splits a bracket-delimited tag filter out of free text:
// "foo [bar]" is text "foo" restricted to tag "bar". Only the first
// bracket group is a filter.
func ParseQuery(raw string) Query {
	q := Query{Text: raw}
	m := tagQueryRe.FindStringSubmatchIndex(raw)
	if m == nil {
		q.Text = strings.TrimSpace(raw)
		return q
	}
	q.Tag = strings.ToLower(strings.TrimSpace(raw[m[2]:m[3]]))
	q.Text = strings.TrimSpace(spaceRe.ReplaceAllString(raw[:m[0]]+" "+raw[m[1]:], " "))
	return q
}
