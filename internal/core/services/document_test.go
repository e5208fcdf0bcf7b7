package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven/mocks"
)

func seedDocument(t *testing.T, documents *mocks.MockDocumentStore, index *mocks.MockVectorIndex, id string, collections ...string) *domain.Document {
	t.Helper()
	ctx := context.Background()
	doc := &domain.Document{
		ID:          id,
		SourceFile:  "/docs/" + id + ".txt",
		DocType:     domain.DocTypeText,
		Collections: collections,
		ChunkCount:  2,
		CreatedAt:   time.Now(),
	}
	if err := documents.Create(ctx, doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	for i := 0; i < 2; i++ {
		chunk := testChunk(id+"-c"+string(rune('0'+i)), id, "content", collections...)
		if err := index.Upsert(ctx, chunk, []float32{1, 0}); err != nil {
			t.Fatalf("upsert chunk: %v", err)
		}
	}
	return doc
}

func TestDocumentDeleteRemovesChunks(t *testing.T) {
	documents := mocks.NewMockDocumentStore()
	index := mocks.NewMockVectorIndex()
	svc := NewDocumentService(documents, index, nil, nil)
	ctx := context.Background()

	doc := seedDocument(t, documents, index, "doc1")
	seedDocument(t, documents, index, "doc2")

	if err := svc.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := documents.Get(ctx, doc.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Error("document record should be gone")
	}
	count, _ := index.Count(ctx)
	if count != 2 {
		t.Errorf("expected only doc2 chunks to remain, got %d", count)
	}
}

func TestDocumentDeleteUnknown(t *testing.T) {
	svc := NewDocumentService(mocks.NewMockDocumentStore(), mocks.NewMockVectorIndex(), nil, nil)

	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentReindexEnqueuesTask(t *testing.T) {
	documents := mocks.NewMockDocumentStore()
	index := mocks.NewMockVectorIndex()
	queue := mocks.NewMockTaskQueue()
	svc := NewDocumentService(documents, index, queue, nil)
	ctx := context.Background()

	doc := seedDocument(t, documents, index, "doc1")

	task, err := svc.Reindex(ctx, doc.ID)
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if task.Type != domain.TaskTypeReindexDocument {
		t.Errorf("unexpected task type %s", task.Type)
	}
	if task.DocumentID() != doc.ID {
		t.Errorf("task bound to wrong document: %s", task.DocumentID())
	}
	if queue.Pending() != 1 {
		t.Errorf("expected 1 queued task, got %d", queue.Pending())
	}
}

func TestDocumentReindexWithoutQueue(t *testing.T) {
	documents := mocks.NewMockDocumentStore()
	index := mocks.NewMockVectorIndex()
	svc := NewDocumentService(documents, index, nil, nil)

	doc := seedDocument(t, documents, index, "doc1")
	if _, err := svc.Reindex(context.Background(), doc.ID); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestDocumentStats(t *testing.T) {
	documents := mocks.NewMockDocumentStore()
	index := mocks.NewMockVectorIndex()
	svc := NewDocumentService(documents, index, nil, nil)

	seedDocument(t, documents, index, "doc1", "research")
	seedDocument(t, documents, index, "doc2", "research", "notes")

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalDocuments != 2 {
		t.Errorf("expected 2 documents, got %d", stats.TotalDocuments)
	}
	if stats.TotalChunks != 4 {
		t.Errorf("expected 4 chunks, got %d", stats.TotalChunks)
	}
	if stats.TotalCollections != 2 {
		t.Errorf("expected 2 collections, got %d", stats.TotalCollections)
	}
	if stats.DocumentsByType[domain.DocTypeText] != 2 {
		t.Errorf("expected 2 text documents, got %d", stats.DocumentsByType[domain.DocTypeText])
	}
}
