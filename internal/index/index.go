package index

import (
	"context"
	"errors"
)

// ErrDocumentNotFound is returned when an update targets a document that
// was never indexed.
var ErrDocumentNotFound = errors.New("index: document not found")

// Outcome reports what a write did to the index.
type Outcome int

const (
	// Applied means the document was written or removed.
	Applied Outcome = iota
	// Stale means the index already held this version or a newer one.
	Stale
	// Tombstoned means the question was deleted; the write was dropped.
	Tombstoned
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Stale:
		return "stale"
	case Tombstoned:
		return "tombstoned"
	default:
		return "unknown"
	}
}

// SearchIndex defines the search-side operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type SearchIndex interface {
	Create(ctx context.Context, doc Document) (Outcome, error)
	Update(ctx context.Context, doc Document, upsert bool) (Outcome, error)
	Delete(ctx context.Context, id string, version int) (Outcome, error)
	Get(ctx context.Context, id string) (*Document, error)
	Search(ctx context.Context, text, tag string, limit int) ([]Hit, error)
	AllChecksums(ctx context.Context) (map[string]string, error)
}

// Verify *DB satisfies SearchIndex at compile time.
var _ SearchIndex = (*DB)(nil)
