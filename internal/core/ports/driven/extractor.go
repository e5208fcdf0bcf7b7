package driven

import (
	"context"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// Extractor turns a raw file into ordered text segments. Implementations
// are format specific (plain text, PDF, transcripts) and attach whatever
// location metadata the format carries (page numbers, timestamps, speakers).
type Extractor interface {
	// Extract reads the file and returns its segments in document order
	Extract(ctx context.Context, path string) ([]domain.Segment, error)

	// Supports reports whether this extractor handles the file extension
	Supports(ext string) bool

	// DocType returns the document type this extractor produces
	DocType() domain.DocType
}

// ExtractorRegistry resolves files to extractors by extension
type ExtractorRegistry interface {
	// ForFile returns the extractor for the file's extension, or
	// domain.ErrUnsupportedFileType when none is registered
	ForFile(path string) (Extractor, error)

	// Extensions lists every registered extension, sorted
	Extensions() []string
}
