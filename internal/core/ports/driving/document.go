package driving

import (
	"context"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// DocumentService manages ingested documents
type DocumentService interface {
	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*domain.Document, error)

	// List retrieves all documents, newest first
	List(ctx context.Context) ([]*domain.Document, error)

	// Delete removes a document and all its indexed chunks
	Delete(ctx context.Context, id string) error

	// Reindex queues a document for re-extraction and re-embedding
	Reindex(ctx context.Context, id string) (*domain.Task, error)

	// ReindexAll queues every document for re-embedding
	ReindexAll(ctx context.Context) (*domain.Task, error)

	// Stats aggregates corpus-wide counts
	Stats(ctx context.Context) (*domain.Stats, error)
}

// CollectionService manages logical collection tags on documents
type CollectionService interface {
	// List returns every collection name in use
	List(ctx context.Context) ([]string, error)

	// Assign replaces a document's collection memberships, updating both
	// the document record and its indexed chunks
	Assign(ctx context.Context, documentID string, collections []string) error

	// Documents returns the documents tagged with a collection
	Documents(ctx context.Context, collection string) ([]*domain.Document, error)

	// Remove drops the tag from every document carrying it; the
	// documents themselves remain
	Remove(ctx context.Context, collection string) error
}
