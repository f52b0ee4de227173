package mcpserver

// SearchSyntax documents the query language accepted by search_questions.
const SearchSyntax = `# Reoverflow Search Syntax

A query is free text with at most one bracketed tag filter.

| Query                    | Meaning                                      |
|--------------------------|----------------------------------------------|
| ` + "`channels`" + `               | questions whose title or body mention it     |
| ` + "`channels [go]`" + `          | the same, restricted to questions tagged go  |
| ` + "`[go]`" + `                   | every question tagged go, newest first       |

## Rules

1. Only the first ` + "`[...]`" + ` group is a tag filter; later groups are ignored.
2. Tag filters are case-insensitive.
3. Every word must match. Operators such as AND, OR and NOT are matched as words.
4. Markup in question bodies is stripped before indexing, so search for the
   text a reader sees, not for HTML.
5. The index is eventually consistent: a question edited a moment ago may
   still show its previous text.
`
