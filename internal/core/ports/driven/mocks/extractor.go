package mocks

import (
	"context"
	"strings"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// MockExtractor is a mock implementation of Extractor for testing
type MockExtractor struct {
	docType  domain.DocType
	exts     []string
	segments []domain.Segment
	err      error
}

// NewMockExtractor creates a new MockExtractor handling .txt files
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{
		docType: domain.DocTypeText,
		exts:    []string{".txt"},
		segments: []domain.Segment{
			{Text: "Mock extracted content."},
		},
	}
}

func (m *MockExtractor) Extract(ctx context.Context, path string) ([]domain.Segment, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.segments, nil
}

func (m *MockExtractor) Supports(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range m.exts {
		if e == ext {
			return true
		}
	}
	return false
}

func (m *MockExtractor) DocType() domain.DocType {
	return m.docType
}

// Helper methods for testing

func (m *MockExtractor) SetSegments(segments []domain.Segment) {
	m.segments = segments
}

func (m *MockExtractor) SetDocType(t domain.DocType, exts ...string) {
	m.docType = t
	m.exts = exts
}

func (m *MockExtractor) SetError(err error) {
	m.err = err
}
