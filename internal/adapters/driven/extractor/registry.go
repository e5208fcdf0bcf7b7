// Package extractor holds the file extractors and their registry.
// Extractors are registered by extension; formats that need external
// engines (OCR, transcription) implement driven.Extractor elsewhere and
// plug into the same registry.
package extractor

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry implements ExtractorRegistry with extension-keyed lookup
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]driven.Extractor
}

// NewRegistry creates a new extractor registry
func NewRegistry() *Registry {
	return &Registry{
		byExt: make(map[string]driven.Extractor),
	}
}

// Register adds an extractor under the given extensions. Extensions are
// normalised to lowercase with a leading dot. Later registrations win
// when two extractors claim the same extension.
func (r *Registry) Register(extractor driven.Extractor, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.byExt[ext] = extractor
	}
}

// ForFile returns the extractor for the file's extension
func (r *Registry) ForFile(path string) (driven.Extractor, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil, fmt.Errorf("%w: %s has no extension", domain.ErrUnsupportedFileType, filepath.Base(path))
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	extractor, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, ext)
	}
	return extractor, nil
}

// Extensions lists every registered extension, sorted
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
