package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
)

// Ensure collectionService implements CollectionService
var _ driving.CollectionService = (*collectionService)(nil)

// collectionService manages logical collection tags. Tags live on
// document records and, mirrored, on every indexed chunk; both are
// updated together so retrieval filters stay consistent.
type collectionService struct {
	documents driven.DocumentStore
	index     driven.VectorIndex
	logger    *slog.Logger
}

// NewCollectionService creates a CollectionService
func NewCollectionService(documents driven.DocumentStore, index driven.VectorIndex, logger *slog.Logger) driving.CollectionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &collectionService{
		documents: documents,
		index:     index,
		logger:    logger,
	}
}

// List returns every collection name in use
func (s *collectionService) List(ctx context.Context) ([]string, error) {
	return s.documents.ListCollections(ctx)
}

// Assign replaces a document's collection memberships on the document
// record and all its indexed chunks
func (s *collectionService) Assign(ctx context.Context, documentID string, collections []string) error {
	cleaned := make([]string, 0, len(collections))
	for _, c := range collections {
		c = strings.TrimSpace(c)
		if c == "" {
			return fmt.Errorf("%w: empty collection name", domain.ErrInvalidInput)
		}
		cleaned = append(cleaned, c)
	}

	if _, err := s.documents.Get(ctx, documentID); err != nil {
		return err
	}
	if err := s.documents.UpdateCollections(ctx, documentID, cleaned); err != nil {
		return err
	}
	if err := s.index.UpdateCollections(ctx, documentID, cleaned); err != nil {
		return fmt.Errorf("failed to update chunk collections: %w", err)
	}
	s.logger.Info("assigned collections",
		"document_id", documentID,
		"collections", cleaned)
	return nil
}

// Documents returns the documents tagged with a collection
func (s *collectionService) Documents(ctx context.Context, collection string) ([]*domain.Document, error) {
	docs, err := s.documents.List(ctx)
	if err != nil {
		return nil, err
	}
	tagged := make([]*domain.Document, 0)
	for _, doc := range docs {
		for _, c := range doc.Collections {
			if c == collection {
				tagged = append(tagged, doc)
				break
			}
		}
	}
	return tagged, nil
}

// Remove drops a tag from every document carrying it. Documents and
// their chunks remain indexed.
func (s *collectionService) Remove(ctx context.Context, collection string) error {
	docs, err := s.Documents(ctx, collection)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return domain.ErrNotFound
	}
	for _, doc := range docs {
		remaining := make([]string, 0, len(doc.Collections))
		for _, c := range doc.Collections {
			if c != collection {
				remaining = append(remaining, c)
			}
		}
		if err := s.documents.UpdateCollections(ctx, doc.ID, remaining); err != nil {
			return err
		}
		if err := s.index.UpdateCollections(ctx, doc.ID, remaining); err != nil {
			return fmt.Errorf("failed to update chunk collections: %w", err)
		}
	}
	s.logger.Info("removed collection", "collection", collection, "documents", len(docs))
	return nil
}
