package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
)

// Ensure documentService implements DocumentService
var _ driving.DocumentService = (*documentService)(nil)

// documentService manages ingested documents and their indexed chunks
type documentService struct {
	documents driven.DocumentStore
	index     driven.VectorIndex
	queue     driven.TaskQueue // optional, nil disables reindexing
	logger    *slog.Logger
}

// NewDocumentService creates a DocumentService. queue may be nil when no
// worker runs; reindex requests then fail with ErrServiceUnavailable.
func NewDocumentService(
	documents driven.DocumentStore,
	index driven.VectorIndex,
	queue driven.TaskQueue,
	logger *slog.Logger,
) driving.DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentService{
		documents: documents,
		index:     index,
		queue:     queue,
		logger:    logger,
	}
}

// Get retrieves a document by ID
func (s *documentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.documents.Get(ctx, id)
}

// List retrieves all documents, newest first
func (s *documentService) List(ctx context.Context) ([]*domain.Document, error) {
	return s.documents.List(ctx)
}

// Delete removes a document together with its indexed chunks
func (s *documentService) Delete(ctx context.Context, id string) error {
	if _, err := s.documents.Get(ctx, id); err != nil {
		return err
	}
	if err := s.index.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete chunks for document %s: %w", id, err)
	}
	if err := s.documents.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted document", "document_id", id)
	return nil
}

// Reindex queues a document for re-extraction and re-embedding
func (s *documentService) Reindex(ctx context.Context, id string) (*domain.Task, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("%w: no task queue configured", domain.ErrServiceUnavailable)
	}
	if _, err := s.documents.Get(ctx, id); err != nil {
		return nil, err
	}
	task := domain.NewReindexDocumentTask(id)
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to enqueue reindex task: %w", err)
	}
	s.logger.Info("queued document reindex", "document_id", id, "task_id", task.ID)
	return task, nil
}

// ReindexAll queues every document for re-embedding
func (s *documentService) ReindexAll(ctx context.Context) (*domain.Task, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("%w: no task queue configured", domain.ErrServiceUnavailable)
	}
	task := domain.NewReindexAllTask()
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to enqueue reindex task: %w", err)
	}
	s.logger.Info("queued full reindex", "task_id", task.ID)
	return task, nil
}

// Stats aggregates corpus-wide counts
func (s *documentService) Stats(ctx context.Context) (*domain.Stats, error) {
	return s.documents.Stats(ctx)
}
