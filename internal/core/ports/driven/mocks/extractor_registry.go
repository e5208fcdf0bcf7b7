package mocks

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// MockExtractorRegistry is a mock implementation of ExtractorRegistry
// for testing, keyed the same way as the real registry
type MockExtractorRegistry struct {
	byExt map[string]driven.Extractor
}

// NewMockExtractorRegistry creates a registry serving the given
// extensions with a single MockExtractor
func NewMockExtractorRegistry(extractor driven.Extractor, exts ...string) *MockExtractorRegistry {
	r := &MockExtractorRegistry{byExt: make(map[string]driven.Extractor)}
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = extractor
	}
	return r
}

func (r *MockExtractorRegistry) ForFile(path string) (driven.Extractor, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := r.byExt[ext]
	if !ok {
		return nil, domain.ErrUnsupportedFileType
	}
	return e, nil
}

func (r *MockExtractorRegistry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
