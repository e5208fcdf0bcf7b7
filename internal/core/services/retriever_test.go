package services

import (
	"context"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven/mocks"
)

func newTestRetriever(index *mocks.MockVectorIndex) *Retriever {
	gateway := NewEmbeddingGateway(mocks.NewMockEmbeddingService(), EmbeddingGatewayConfig{})
	return NewRetriever(gateway, index, mocks.NewMockTokenizer())
}

func testChunk(id, docID, content string, collections ...string) *domain.Chunk {
	return &domain.Chunk{
		ID:          id,
		DocumentID:  docID,
		Content:     content,
		DocType:     domain.DocTypeText,
		SourceFile:  "/docs/" + docID + ".txt",
		Collections: collections,
		CreatedAt:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRetrieveTopKBound(t *testing.T) {
	index := mocks.NewMockVectorIndex()
	r := newTestRetriever(index)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		chunk := testChunk(string(rune('a'+i)), "doc1", "content")
		index.Upsert(ctx, chunk, []float32{1, float32(i) * 0.1})
	}

	results, err := r.RetrieveByVector(ctx, []float32{1, 0}, domain.RetrievalOptions{TopK: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) > 3 {
		t.Errorf("expected at most 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Error("results not in descending similarity order")
		}
	}
	for i, rc := range results {
		if rc.Rank != i+1 {
			t.Errorf("result %d has rank %d", i, rc.Rank)
		}
	}
}

func TestRetrieveMinSimilarityFloor(t *testing.T) {
	index := mocks.NewMockVectorIndex()
	r := newTestRetriever(index)
	ctx := context.Background()

	index.Upsert(ctx, testChunk("near", "doc1", "close match"), []float32{1, 0})
	index.Upsert(ctx, testChunk("far", "doc1", "distant"), []float32{0, 1})

	results, err := r.RetrieveByVector(ctx, []float32{1, 0}, domain.RetrievalOptions{
		TopK:          5,
		MinSimilarity: 0.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result above floor, got %d", len(results))
	}
	if results[0].Chunk.ID != "near" {
		t.Errorf("expected chunk near, got %s", results[0].Chunk.ID)
	}
}

func TestRetrieveEmptyIndexIsNotAnError(t *testing.T) {
	r := newTestRetriever(mocks.NewMockVectorIndex())

	results, err := r.Retrieve(context.Background(), "anything", domain.RetrievalOptions{})
	if err != nil {
		t.Fatalf("empty index should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestRetrieveCollectionFilter(t *testing.T) {
	index := mocks.NewMockVectorIndex()
	r := newTestRetriever(index)
	ctx := context.Background()

	// The best cosine match is tagged "other"; only "research" may pass
	index.Upsert(ctx, testChunk("c1", "doc1", "exact", "other"), []float32{1, 0})
	index.Upsert(ctx, testChunk("c2", "doc2", "close", "research"), []float32{0.9, 0.1})

	results, err := r.RetrieveByVector(ctx, []float32{1, 0}, domain.RetrievalOptions{
		TopK:        5,
		Collections: []string{"research"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Chunk.ID != "c2" {
		t.Errorf("expected research-tagged chunk, got %s", results[0].Chunk.ID)
	}

	// Re-tag the best match and it should appear
	index.UpdateCollections(ctx, "doc1", []string{"research"})
	results, err = r.RetrieveByVector(ctx, []float32{1, 0}, domain.RetrievalOptions{
		TopK:        5,
		Collections: []string{"research"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 || results[0].Chunk.ID != "c1" {
		t.Errorf("expected re-tagged chunk first, got %v", len(results))
	}
}

func TestRetrieveDocTypeFilter(t *testing.T) {
	index := mocks.NewMockVectorIndex()
	r := newTestRetriever(index)
	ctx := context.Background()

	pdf := testChunk("p1", "doc1", "pdf content")
	pdf.DocType = domain.DocTypePDF
	index.Upsert(ctx, pdf, []float32{1, 0})
	index.Upsert(ctx, testChunk("t1", "doc2", "text content"), []float32{1, 0})

	results, err := r.RetrieveByVector(ctx, []float32{1, 0}, domain.RetrievalOptions{
		TopK:     5,
		DocTypes: []domain.DocType{domain.DocTypePDF},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Chunk.ID != "p1" {
		t.Errorf("expected only the pdf chunk, got %d results", len(results))
	}
}

func TestRetrieveTieBreakByCreationTime(t *testing.T) {
	index := mocks.NewMockVectorIndex()
	r := newTestRetriever(index)
	ctx := context.Background()

	older := testChunk("zzz", "doc1", "same vector")
	older.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := testChunk("aaa", "doc1", "same vector")
	newer.CreatedAt = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	index.Upsert(ctx, newer, []float32{1, 0})
	index.Upsert(ctx, older, []float32{1, 0})

	results, err := r.RetrieveByVector(ctx, []float32{1, 0}, domain.RetrievalOptions{TopK: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "zzz" {
		t.Errorf("expected earlier-created chunk first, got %s", results[0].Chunk.ID)
	}
}

func TestContextRespectsTokenBudget(t *testing.T) {
	index := mocks.NewMockVectorIndex()
	r := newTestRetriever(index)
	ctx := context.Background()

	// 4 tokens each with the word-count tokenizer
	a := testChunk("a", "doc1", "four words right here")
	a.TokenCount = 4
	b := testChunk("b", "doc1", "four more words here")
	b.TokenCount = 4
	index.Upsert(ctx, a, []float32{1, 0})
	index.Upsert(ctx, b, []float32{0.9, 0.1})

	// Budget fits only the first chunk whole; the second is excluded,
	// never truncated
	text, err := r.Context(ctx, "query", 6, domain.RetrievalOptions{TopK: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != a.Content && text != b.Content {
		t.Errorf("context should hold exactly one whole chunk, got %q", text)
	}
}

func TestMMRSelectPrefersDiversity(t *testing.T) {
	candidates := []*domain.RetrievedChunk{
		{Chunk: testChunk("c1", "doc1", "best match"), Similarity: 0.9},
		{Chunk: testChunk("c2", "doc1", "near duplicate of best"), Similarity: 0.85},
		{Chunk: testChunk("c3", "doc2", "different angle"), Similarity: 0.5},
	}
	vectors := [][]float32{{1, 0}, {1, 0}, {0, 1}}

	selected := mmrSelect(candidates, vectors, 0.5, 2)
	if len(selected) != 2 {
		t.Fatalf("expected 2 selections, got %d", len(selected))
	}
	if selected[0].Chunk.ID != "c1" {
		t.Errorf("first pick should be the most similar chunk, got %s", selected[0].Chunk.ID)
	}
	// c2 points in the same direction as c1, so the weaker but novel
	// c3 wins the second slot
	if selected[1].Chunk.ID != "c3" {
		t.Errorf("second pick should favour the diverse chunk, got %s", selected[1].Chunk.ID)
	}
}

func TestMMRSelectLambdaOneIsPureRelevance(t *testing.T) {
	candidates := []*domain.RetrievedChunk{
		{Chunk: testChunk("c1", "doc1", "best"), Similarity: 0.9},
		{Chunk: testChunk("c2", "doc1", "duplicate"), Similarity: 0.85},
		{Chunk: testChunk("c3", "doc2", "diverse"), Similarity: 0.5},
	}
	vectors := [][]float32{{1, 0}, {1, 0}, {0, 1}}

	selected := mmrSelect(candidates, vectors, 1.0, 2)
	if len(selected) != 2 || selected[0].Chunk.ID != "c1" || selected[1].Chunk.ID != "c2" {
		t.Errorf("lambda 1 should rank by similarity alone, got %v", chunkIDs(selected))
	}
}

func TestRetrieveMMRAvoidsRedundantResults(t *testing.T) {
	index := mocks.NewMockVectorIndex()
	r := newTestRetriever(index)
	ctx := context.Background()

	// Two chunks share a direction, a third sits on the other side of
	// the query. All score 0.8 against it.
	index.Upsert(ctx, testChunk("dup1", "doc1", "first copy"), []float32{0.8, 0.6})
	index.Upsert(ctx, testChunk("dup2", "doc1", "second copy"), []float32{0.8, 0.6})
	index.Upsert(ctx, testChunk("other", "doc2", "different topic"), []float32{0.8, -0.6})

	results, err := r.RetrieveByVector(ctx, []float32{1, 0}, domain.RetrievalOptions{
		TopK: 2,
		MMR:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	ids := chunkIDs(results)
	if !contains(ids, "other") {
		t.Errorf("diversity reranking should include the distinct chunk, got %v", ids)
	}
	if contains(ids, "dup1") && contains(ids, "dup2") {
		t.Errorf("both near duplicates selected: %v", ids)
	}
	for i, rc := range results {
		if rc.Rank != i+1 {
			t.Errorf("result %d has rank %d", i, rc.Rank)
		}
	}
}

func TestMMRFallsBackWithoutStoredVectors(t *testing.T) {
	r := newTestRetriever(mocks.NewMockVectorIndex())

	candidates := []*domain.RetrievedChunk{
		{Chunk: testChunk("c1", "doc1", "content"), Similarity: 0.9},
	}
	if _, ok := r.mmrRerank(candidates, [][]float32{nil}, domain.RetrievalOptions{TopK: 1, MMR: true}); ok {
		t.Error("rerank should decline when a stored vector is missing")
	}
}

func chunkIDs(results []*domain.RetrievedChunk) []string {
	ids := make([]string, len(results))
	for i, rc := range results {
		ids[i] = rc.Chunk.ID
	}
	return ids
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
