package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-core/internal/chunker"
	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
)

// Ensure ingestService implements IngestService
var _ driving.IngestService = (*ingestService)(nil)

// ingestService turns files into indexed chunks: extract, chunk, embed,
// upsert. A file is only registered once embedding succeeded; chunks are
// never indexed without vectors.
type ingestService struct {
	registry  driven.ExtractorRegistry
	chunker   *chunker.Chunker
	gateway   *EmbeddingGateway
	index     driven.VectorIndex
	documents driven.DocumentStore
	logger    *slog.Logger
}

// NewIngestService creates an IngestService
func NewIngestService(
	registry driven.ExtractorRegistry,
	ch *chunker.Chunker,
	gateway *EmbeddingGateway,
	index driven.VectorIndex,
	documents driven.DocumentStore,
	logger *slog.Logger,
) driving.IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ingestService{
		registry:  registry,
		chunker:   ch,
		gateway:   gateway,
		index:     index,
		documents: documents,
		logger:    logger,
	}
}

// Ingest processes a single file end to end
func (s *ingestService) Ingest(ctx context.Context, req driving.IngestRequest) (*domain.Document, error) {
	if strings.TrimSpace(req.Path) == "" {
		return nil, fmt.Errorf("%w: empty path", domain.ErrInvalidInput)
	}

	if _, err := s.documents.GetBySourceFile(ctx, req.Path); err == nil {
		return nil, fmt.Errorf("%w: %s already ingested", domain.ErrAlreadyExists, req.Path)
	}

	ext, err := s.registry.ForFile(req.Path)
	if err != nil {
		return nil, err
	}

	segments, err := ext.Extract(ctx, req.Path)
	if err != nil {
		return nil, fmt.Errorf("extraction failed for %s: %w", req.Path, err)
	}

	doc := &domain.Document{
		ID:          uuid.NewString(),
		SourceFile:  req.Path,
		DocType:     ext.DocType(),
		Collections: req.Collections,
		CreatedAt:   time.Now(),
	}

	chunks := buildDocumentChunks(s.chunker, doc, segments)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoContent, req.Path)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.gateway.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	doc.ChunkCount = len(chunks)
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, err
	}

	for i, c := range chunks {
		if err := s.index.Upsert(ctx, c, vectors[i]); err != nil {
			// Roll back the partial document so a retry starts clean
			if cleanupErr := s.index.DeleteByDocument(ctx, doc.ID); cleanupErr != nil {
				s.logger.Error("failed to clean up partial index state",
					"document_id", doc.ID,
					"error", cleanupErr)
			}
			if cleanupErr := s.documents.Delete(ctx, doc.ID); cleanupErr != nil {
				s.logger.Error("failed to clean up partial document",
					"document_id", doc.ID,
					"error", cleanupErr)
			}
			return nil, fmt.Errorf("failed to index chunk %d of %s: %w", i, req.Path, err)
		}
	}

	s.logger.Info("ingested document",
		"document_id", doc.ID,
		"source_file", doc.SourceFile,
		"doc_type", doc.DocType,
		"chunks", doc.ChunkCount)
	return doc, nil
}

// IngestBatch ingests files independently; one failure never aborts the
// rest of the batch
func (s *ingestService) IngestBatch(ctx context.Context, reqs []driving.IngestRequest) (*driving.BatchIngestResult, error) {
	result := &driving.BatchIngestResult{
		Results: make([]driving.IngestResult, 0, len(reqs)),
	}
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		entry := driving.IngestResult{Path: req.Path}
		doc, err := s.Ingest(ctx, req)
		if err != nil {
			entry.Error = err.Error()
			result.Failed++
			s.logger.Warn("batch ingest file failed",
				"path", req.Path,
				"error", err)
		} else {
			entry.DocumentID = doc.ID
			entry.ChunkCount = doc.ChunkCount
			result.Succeeded++
		}
		result.Results = append(result.Results, entry)
	}
	return result, nil
}

// SupportedExtensions lists the file extensions ingestion accepts
func (s *ingestService) SupportedExtensions() []string {
	return s.registry.Extensions()
}

// buildDocumentChunks runs the chunker over each segment and attaches
// segment metadata to the resulting chunks. Positions are sequential
// across the whole document. Shared by ingestion and reindexing.
func buildDocumentChunks(ch *chunker.Chunker, doc *domain.Document, segments []domain.Segment) []*domain.Chunk {
	var chunks []*domain.Chunk
	position := 0
	now := time.Now()

	for _, seg := range segments {
		for _, span := range ch.Chunk(seg.Text) {
			chunks = append(chunks, &domain.Chunk{
				ID:             uuid.NewString(),
				DocumentID:     doc.ID,
				Content:        span.Text,
				DocType:        doc.DocType,
				SourceFile:     doc.SourceFile,
				Position:       position,
				TokenCount:     span.TokenCount,
				OverBudget:     span.OverBudget,
				Collections:    doc.Collections,
				CreatedAt:      now,
				Page:           seg.Page,
				TimestampStart: seg.TimestampStart,
				TimestampEnd:   seg.TimestampEnd,
				Speaker:        seg.Speaker,
			})
			position++
		}
	}
	return chunks
}
