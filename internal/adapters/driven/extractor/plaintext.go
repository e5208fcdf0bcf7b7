package extractor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Extractor = (*PlainText)(nil)

// plainTextExtensions are the extensions the plain-text extractor claims
var plainTextExtensions = []string{".txt", ".md", ".markdown"}

// PlainText extracts text files as a single segment. Markdown is treated
// as plain text; its structure is recovered downstream by the
// paragraph-aware chunker.
type PlainText struct{}

// NewPlainText creates a plain-text extractor
func NewPlainText() *PlainText {
	return &PlainText{}
}

// Extract reads the whole file as one segment
func (e *PlainText) Extract(ctx context.Context, path string) ([]domain.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}

	return []domain.Segment{{Text: text}}, nil
}

// Supports reports whether this extractor handles the extension
func (e *PlainText) Supports(ext string) bool {
	ext = strings.ToLower(ext)
	for _, known := range plainTextExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// DocType returns the document type this extractor produces
func (e *PlainText) DocType() domain.DocType {
	return domain.DocTypeText
}

// RegisterDefaults registers the in-tree extractors on a registry
func RegisterDefaults(r *Registry) {
	r.Register(NewPlainText(), plainTextExtensions...)
}
