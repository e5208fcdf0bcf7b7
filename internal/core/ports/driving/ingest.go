package driving

import (
	"context"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// IngestRequest represents a request to ingest a single file
type IngestRequest struct {
	Path        string   `json:"path"`
	Collections []string `json:"collections,omitempty"`
}

// IngestResult describes one file's ingestion outcome
type IngestResult struct {
	Path       string `json:"path"`
	DocumentID string `json:"document_id,omitempty"`
	ChunkCount int    `json:"chunk_count"`
	Error      string `json:"error,omitempty"`
}

// BatchIngestResult summarises a multi-file ingest. Failures are isolated
// per file; one bad file never aborts the batch.
type BatchIngestResult struct {
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Results   []IngestResult `json:"results"`
}

// IngestService turns files into indexed, queryable chunks
type IngestService interface {
	// Ingest extracts, chunks, embeds and indexes a single file
	Ingest(ctx context.Context, req IngestRequest) (*domain.Document, error)

	// IngestBatch ingests multiple files, isolating per-file failures
	IngestBatch(ctx context.Context, reqs []IngestRequest) (*BatchIngestResult, error)

	// SupportedExtensions lists the file extensions ingestion accepts
	SupportedExtensions() []string
}
