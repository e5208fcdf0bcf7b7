package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// MockDocumentStore is a mock implementation of DocumentStore for testing
type MockDocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*domain.Document
	bySource  map[string]*domain.Document
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		documents: make(map[string]*domain.Document),
		bySource:  make(map[string]*domain.Document),
	}
}

func (m *MockDocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bySource[doc.SourceFile]; ok {
		return domain.ErrAlreadyExists
	}
	m.documents[doc.ID] = doc
	m.bySource[doc.SourceFile] = doc
	return nil
}

func (m *MockDocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (m *MockDocumentStore) GetBySourceFile(ctx context.Context, sourceFile string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.bySource[sourceFile]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (m *MockDocumentStore) List(ctx context.Context) ([]*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make([]*domain.Document, 0, len(m.documents))
	for _, doc := range m.documents {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

func (m *MockDocumentStore) UpdateCollections(ctx context.Context, id string, collections []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Collections = collections
	return nil
}

func (m *MockDocumentStore) UpdateChunkCount(ctx context.Context, id string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.ChunkCount = count
	return nil
}

func (m *MockDocumentStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(m.documents, id)
	delete(m.bySource, doc.SourceFile)
	return nil
}

func (m *MockDocumentStore) Stats(ctx context.Context) (*domain.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &domain.Stats{
		TotalDocuments:  len(m.documents),
		DocumentsByType: make(map[domain.DocType]int),
	}
	collections := make(map[string]struct{})
	for _, doc := range m.documents {
		stats.TotalChunks += doc.ChunkCount
		stats.DocumentsByType[doc.DocType]++
		for _, c := range doc.Collections {
			collections[c] = struct{}{}
		}
	}
	for c := range collections {
		stats.Collections = append(stats.Collections, c)
	}
	sort.Strings(stats.Collections)
	stats.TotalCollections = len(stats.Collections)
	return stats, nil
}

func (m *MockDocumentStore) ListCollections(ctx context.Context) ([]string, error) {
	stats, err := m.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return stats.Collections, nil
}
