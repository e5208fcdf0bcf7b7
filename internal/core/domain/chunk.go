package domain

import "time"

// DocType identifies the kind of source a chunk was extracted from
type DocType string

const (
	DocTypePDF   DocType = "pdf"
	DocTypeDOCX  DocType = "docx"
	DocTypeImage DocType = "image"
	DocTypeVoice DocType = "voice"
	DocTypeText  DocType = "text"
)

// ValidDocType reports whether t is a known document type
func ValidDocType(t DocType) bool {
	switch t {
	case DocTypePDF, DocTypeDOCX, DocTypeImage, DocTypeVoice, DocTypeText:
		return true
	}
	return false
}

// Chunk is the atomic retrievable unit of an ingested document.
// Identity is fixed at creation: re-ingesting a file produces a new
// document ID and a fresh chunk set, never in-place mutation.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	DocType    DocType   `json:"doc_type"`
	SourceFile string    `json:"source_file"`
	Position   int       `json:"position"` // Chunk position within document
	TokenCount int       `json:"token_count"`
	// OverBudget marks the single-oversized-sentence case where the chunk
	// legitimately exceeds the configured token budget.
	OverBudget  bool      `json:"over_budget,omitempty"`
	Collections []string  `json:"collections,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// Doc-type-specific location metadata. Page for pdf/docx, the
	// timestamp pair and speaker for voice. Nil/empty when not applicable.
	Page           *int     `json:"page,omitempty"`
	TimestampStart *float64 `json:"timestamp_start,omitempty"`
	TimestampEnd   *float64 `json:"timestamp_end,omitempty"`
	Speaker        string   `json:"speaker,omitempty"`
}

// InCollection reports whether the chunk carries the given collection tag
func (c *Chunk) InCollection(name string) bool {
	for _, col := range c.Collections {
		if col == name {
			return true
		}
	}
	return false
}

// Segment is a unit of extracted content handed over by an Extractor.
// It is pre-chunking: one segment may become several chunks.
type Segment struct {
	Text           string
	Page           *int
	TimestampStart *float64
	TimestampEnd   *float64
	Speaker        string
}
