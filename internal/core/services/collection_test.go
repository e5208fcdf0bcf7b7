package services

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven/mocks"
)

func TestCollectionAssignUpdatesChunks(t *testing.T) {
	documents := mocks.NewMockDocumentStore()
	index := mocks.NewMockVectorIndex()
	svc := NewCollectionService(documents, index, nil)
	ctx := context.Background()

	doc := seedDocument(t, documents, index, "doc1", "old")

	if err := svc.Assign(ctx, doc.ID, []string{"research", "notes"}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	stored, _ := documents.Get(ctx, doc.ID)
	if len(stored.Collections) != 2 {
		t.Errorf("document collections not updated: %v", stored.Collections)
	}

	matches, _ := index.Query(ctx, []float32{1, 0}, 10, driven.IndexFilter{DocumentID: doc.ID})
	for _, m := range matches {
		if !m.Chunk.InCollection("research") {
			t.Error("chunk collections not kept in sync with the document")
		}
		if m.Chunk.InCollection("old") {
			t.Error("stale collection tag left on chunk")
		}
	}
}

func TestCollectionAssignValidation(t *testing.T) {
	svc := NewCollectionService(mocks.NewMockDocumentStore(), mocks.NewMockVectorIndex(), nil)

	err := svc.Assign(context.Background(), "doc1", []string{"ok", "  "})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for blank name, got %v", err)
	}
}

func TestCollectionRemoveKeepsDocuments(t *testing.T) {
	documents := mocks.NewMockDocumentStore()
	index := mocks.NewMockVectorIndex()
	svc := NewCollectionService(documents, index, nil)
	ctx := context.Background()

	doc1 := seedDocument(t, documents, index, "doc1", "research", "notes")
	doc2 := seedDocument(t, documents, index, "doc2", "research")

	if err := svc.Remove(ctx, "research"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	stored1, _ := documents.Get(ctx, doc1.ID)
	if len(stored1.Collections) != 1 || stored1.Collections[0] != "notes" {
		t.Errorf("doc1 should keep its other tag, got %v", stored1.Collections)
	}
	if _, err := documents.Get(ctx, doc2.ID); err != nil {
		t.Error("removing a collection must not delete its documents")
	}
	count, _ := index.Count(ctx)
	if count != 4 {
		t.Errorf("chunks must survive collection removal, got %d", count)
	}

	names, _ := svc.List(ctx)
	for _, n := range names {
		if n == "research" {
			t.Error("removed collection still listed")
		}
	}
}

func TestCollectionRemoveUnknown(t *testing.T) {
	svc := NewCollectionService(mocks.NewMockDocumentStore(), mocks.NewMockVectorIndex(), nil)

	if err := svc.Remove(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCollectionDocuments(t *testing.T) {
	documents := mocks.NewMockDocumentStore()
	index := mocks.NewMockVectorIndex()
	svc := NewCollectionService(documents, index, nil)
	ctx := context.Background()

	seedDocument(t, documents, index, "doc1", "research")
	seedDocument(t, documents, index, "doc2", "notes")

	docs, err := svc.Documents(ctx, "research")
	if err != nil {
		t.Fatalf("documents: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "doc1" {
		t.Errorf("unexpected documents for collection: %d", len(docs))
	}
}
