package driven

import (
	"context"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// IndexFilter restricts a similarity search to matching chunks.
// Doc types and document ID are applied natively by the index; logical
// collections live in chunk metadata and are filtered by the caller
// after the search (over-fetch compensates for the attrition).
type IndexFilter struct {
	DocTypes   []domain.DocType
	DocumentID string
}

// Empty reports whether the filter restricts anything
func (f IndexFilter) Empty() bool {
	return len(f.DocTypes) == 0 && f.DocumentID == ""
}

// IndexMatch is one similarity search hit. Vector is the stored
// embedding of the chunk, returned so callers can rerank for diversity
// without re-embedding the content.
type IndexMatch struct {
	Chunk  *domain.Chunk
	Score  float64 // cosine similarity in [0, 1]
	Vector []float32
}

// VectorIndex stores chunk vectors plus chunk metadata and serves
// similarity search. Writes must be atomic per chunk: a concurrent
// reader never observes a half-written vector/metadata pair.
type VectorIndex interface {
	// Upsert stores a chunk and its vector, idempotent by chunk ID
	Upsert(ctx context.Context, chunk *domain.Chunk, vector []float32) error

	// Query returns up to k matches ordered by descending cosine similarity
	Query(ctx context.Context, vector []float32, k int, filter IndexFilter) ([]IndexMatch, error)

	// Delete removes a single chunk
	Delete(ctx context.Context, chunkID string) error

	// DeleteByDocument removes all chunks of a document
	DeleteByDocument(ctx context.Context, documentID string) error

	// UpdateCollections rewrites the collection tags on every chunk of a
	// document, keeping index metadata in sync with the document store
	UpdateCollections(ctx context.Context, documentID string, collections []string) error

	// Count returns the number of indexed chunks
	Count(ctx context.Context) (int, error)

	// Ping verifies the index is reachable
	Ping(ctx context.Context) error
}
