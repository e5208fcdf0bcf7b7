package driven

import (
	"context"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// DocumentStore persists document records. Documents are the unit of
// ingestion and deletion; their chunks live in the vector index.
type DocumentStore interface {
	// Create inserts a document, returning domain.ErrAlreadyExists when a
	// document with the same source file is already registered
	Create(ctx context.Context, doc *domain.Document) error

	// Get returns a document by ID, domain.ErrNotFound when absent
	Get(ctx context.Context, id string) (*domain.Document, error)

	// GetBySourceFile returns the document ingested from the given file
	GetBySourceFile(ctx context.Context, sourceFile string) (*domain.Document, error)

	// List returns all documents, newest first
	List(ctx context.Context) ([]*domain.Document, error)

	// UpdateCollections replaces a document's collection memberships
	UpdateCollections(ctx context.Context, id string, collections []string) error

	// UpdateChunkCount records how many chunks the document produced
	UpdateChunkCount(ctx context.Context, id string, count int) error

	// Delete removes a document record, domain.ErrNotFound when absent
	Delete(ctx context.Context, id string) error

	// Stats aggregates corpus-wide counts for the stats endpoint
	Stats(ctx context.Context) (*domain.Stats, error)

	// ListCollections returns every distinct collection name in use
	ListCollections(ctx context.Context) ([]string, error)
}
