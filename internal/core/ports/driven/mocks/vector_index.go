package mocks

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// MockVectorIndex is an in-memory VectorIndex for testing. Search uses
// real cosine similarity so ordering assertions hold.
type MockVectorIndex struct {
	mu      sync.RWMutex
	chunks  map[string]*domain.Chunk
	vectors map[string][]float32
}

// NewMockVectorIndex creates a new MockVectorIndex
func NewMockVectorIndex() *MockVectorIndex {
	return &MockVectorIndex{
		chunks:  make(map[string]*domain.Chunk),
		vectors: make(map[string][]float32),
	}
}

func (m *MockVectorIndex) Upsert(ctx context.Context, chunk *domain.Chunk, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[chunk.ID] = chunk
	m.vectors[chunk.ID] = vector
	return nil
}

func (m *MockVectorIndex) Query(ctx context.Context, vector []float32, k int, filter driven.IndexFilter) ([]driven.IndexMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []driven.IndexMatch
	for id, chunk := range m.chunks {
		if filter.DocumentID != "" && chunk.DocumentID != filter.DocumentID {
			continue
		}
		if len(filter.DocTypes) > 0 && !containsDocType(filter.DocTypes, chunk.DocType) {
			continue
		}
		matches = append(matches, driven.IndexMatch{
			Chunk:  chunk,
			Score:  cosineSimilarity(vector, m.vectors[id]),
			Vector: m.vectors[id],
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (m *MockVectorIndex) Delete(ctx context.Context, chunkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, chunkID)
	delete(m.vectors, chunkID)
	return nil
}

func (m *MockVectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, chunk := range m.chunks {
		if chunk.DocumentID == documentID {
			delete(m.chunks, id)
			delete(m.vectors, id)
		}
	}
	return nil
}

func (m *MockVectorIndex) UpdateCollections(ctx context.Context, documentID string, collections []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, chunk := range m.chunks {
		if chunk.DocumentID == documentID {
			chunk.Collections = collections
		}
	}
	return nil
}

func (m *MockVectorIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

func (m *MockVectorIndex) Ping(ctx context.Context) error {
	return nil
}

func containsDocType(types []domain.DocType, t domain.DocType) bool {
	for _, dt := range types {
		if dt == t {
			return true
		}
	}
	return false
}

func cosineSimilarity(a, b []float32) float64 {
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
