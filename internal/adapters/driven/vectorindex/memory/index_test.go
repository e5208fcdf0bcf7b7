package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

func chunkFixture(id, docID string) *domain.Chunk {
	return &domain.Chunk{
		ID:         id,
		DocumentID: docID,
		Content:    "content of " + id,
		DocType:    domain.DocTypeText,
		SourceFile: "/docs/" + docID + ".txt",
	}
}

func TestUpsertIdempotent(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()
	chunk := chunkFixture("c1", "doc1")
	vector := []float32{1, 0, 0}

	if err := idx.Upsert(ctx, chunk, vector); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := idx.Upsert(ctx, chunk, vector); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	count, _ := idx.Count(ctx)
	if count != 1 {
		t.Errorf("re-upserting the same ID must not duplicate, count=%d", count)
	}

	matches, err := idx.Query(ctx, vector, 10, driven.IndexFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 1 || matches[0].Chunk.ID != "c1" {
		t.Errorf("unexpected query result after idempotent upsert")
	}
}

func TestQueryOrdering(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()

	idx.Upsert(ctx, chunkFixture("exact", "d1"), []float32{1, 0})
	idx.Upsert(ctx, chunkFixture("close", "d2"), []float32{0.9, 0.4})
	idx.Upsert(ctx, chunkFixture("orthogonal", "d3"), []float32{0, 1})

	matches, err := idx.Query(ctx, []float32{1, 0}, 10, driven.IndexFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].Chunk.ID != "exact" || matches[2].Chunk.ID != "orthogonal" {
		t.Errorf("unexpected order: %s, %s, %s",
			matches[0].Chunk.ID, matches[1].Chunk.ID, matches[2].Chunk.ID)
	}
	if matches[0].Score <= matches[1].Score || matches[1].Score <= matches[2].Score {
		t.Error("scores not strictly descending")
	}
}

func TestQueryK(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		idx.Upsert(ctx, chunkFixture(string(rune('a'+i)), "d"), []float32{1, float32(i)})
	}

	matches, _ := idx.Query(ctx, []float32{1, 0}, 4, driven.IndexFilter{})
	if len(matches) != 4 {
		t.Errorf("expected 4 matches, got %d", len(matches))
	}
}

func TestQueryDocTypeFilter(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()

	pdf := chunkFixture("p", "d1")
	pdf.DocType = domain.DocTypePDF
	idx.Upsert(ctx, pdf, []float32{1, 0})
	idx.Upsert(ctx, chunkFixture("t", "d2"), []float32{1, 0})

	matches, _ := idx.Query(ctx, []float32{1, 0}, 10, driven.IndexFilter{
		DocTypes: []domain.DocType{domain.DocTypePDF},
	})
	if len(matches) != 1 || matches[0].Chunk.ID != "p" {
		t.Errorf("doc type filter not applied")
	}
}

func TestDeleteByDocument(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()

	idx.Upsert(ctx, chunkFixture("a1", "doc-a"), []float32{1})
	idx.Upsert(ctx, chunkFixture("a2", "doc-a"), []float32{1})
	idx.Upsert(ctx, chunkFixture("b1", "doc-b"), []float32{1})

	if err := idx.DeleteByDocument(ctx, "doc-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	count, _ := idx.Count(ctx)
	if count != 1 {
		t.Errorf("expected only doc-b's chunk to remain, count=%d", count)
	}
}

func TestUpdateCollections(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()

	chunk := chunkFixture("c1", "doc1")
	chunk.Collections = []string{"old"}
	idx.Upsert(ctx, chunk, []float32{1})

	if err := idx.UpdateCollections(ctx, "doc1", []string{"new"}); err != nil {
		t.Fatalf("update collections: %v", err)
	}

	matches, _ := idx.Query(ctx, []float32{1}, 1, driven.IndexFilter{})
	got := matches[0].Chunk
	if !got.InCollection("new") || got.InCollection("old") {
		t.Errorf("collections not rewritten: %v", got.Collections)
	}
}

func TestUpsertCopiesInput(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()

	chunk := chunkFixture("c1", "doc1")
	vector := []float32{1, 0}
	idx.Upsert(ctx, chunk, vector)

	// Mutations after upsert must not leak into the index
	chunk.Content = "mutated"
	vector[0] = 0

	matches, _ := idx.Query(ctx, []float32{1, 0}, 1, driven.IndexFilter{})
	if matches[0].Chunk.Content != "content of c1" {
		t.Error("index returned caller-mutated chunk")
	}
	if matches[0].Score < 0.99 {
		t.Error("index returned caller-mutated vector")
	}
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				idx.Upsert(ctx, chunkFixture(string(rune('a'+n)), "doc"), []float32{1, float32(j)})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				idx.Query(ctx, []float32{1, 0}, 5, driven.IndexFilter{})
			}
		}()
	}
	wg.Wait()

	count, _ := idx.Count(ctx)
	if count != 8 {
		t.Errorf("expected 8 distinct chunks, got %d", count)
	}
}
