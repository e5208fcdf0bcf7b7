// Package memory provides an in-process VectorIndex with brute-force
// cosine search. It backs development and tests; durable deployments
// use the pgvector adapter.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// Ensure Index implements VectorIndex
var _ driven.VectorIndex = (*Index)(nil)

type entry struct {
	chunk  domain.Chunk
	vector []float32
}

// Index is an RWMutex-guarded in-memory vector index. Every upsert
// replaces the whole entry under the lock, so readers never observe a
// half-written vector/metadata pair.
type Index struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewIndex creates an empty in-memory index
func NewIndex() *Index {
	return &Index{entries: make(map[string]*entry)}
}

// Upsert stores a chunk and its vector, idempotent by chunk ID. The
// chunk and vector are copied; later caller mutations are not visible.
func (idx *Index) Upsert(ctx context.Context, chunk *domain.Chunk, vector []float32) error {
	stored := *chunk
	stored.Collections = append([]string(nil), chunk.Collections...)
	vec := append([]float32(nil), vector...)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[chunk.ID] = &entry{chunk: stored, vector: vec}
	return nil
}

// Query returns up to k matches ordered by descending cosine similarity.
// Ties are broken by chunk ID for deterministic output.
func (idx *Index) Query(ctx context.Context, vector []float32, k int, filter driven.IndexFilter) ([]driven.IndexMatch, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := make([]driven.IndexMatch, 0, len(idx.entries))
	for _, e := range idx.entries {
		if filter.DocumentID != "" && e.chunk.DocumentID != filter.DocumentID {
			continue
		}
		if len(filter.DocTypes) > 0 && !matchesDocType(filter.DocTypes, e.chunk.DocType) {
			continue
		}
		chunk := e.chunk
		matches = append(matches, driven.IndexMatch{
			Chunk:  &chunk,
			Score:  cosine(vector, e.vector),
			Vector: append([]float32(nil), e.vector...),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Chunk.ID < matches[j].Chunk.ID
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Delete removes a single chunk
func (idx *Index) Delete(ctx context.Context, chunkID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, chunkID)
	return nil
}

// DeleteByDocument removes all chunks of a document
func (idx *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for id, e := range idx.entries {
		if e.chunk.DocumentID == documentID {
			delete(idx.entries, id)
		}
	}
	return nil
}

// UpdateCollections rewrites the collection tags on every chunk of a document
func (idx *Index) UpdateCollections(ctx context.Context, documentID string, collections []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, e := range idx.entries {
		if e.chunk.DocumentID == documentID {
			e.chunk.Collections = append([]string(nil), collections...)
		}
	}
	return nil
}

// Count returns the number of indexed chunks
func (idx *Index) Count(ctx context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries), nil
}

// Ping always succeeds for the in-memory index
func (idx *Index) Ping(ctx context.Context) error {
	return nil
}

func matchesDocType(types []domain.DocType, t domain.DocType) bool {
	for _, dt := range types {
		if dt == t {
			return true
		}
	}
	return false
}

// cosine computes cosine similarity, 0 for mismatched or zero vectors
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
