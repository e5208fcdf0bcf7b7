package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/sercha-core/internal/chunker"
	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// Reindexer re-runs the extraction and embedding pipeline over already
// registered documents. It backs the reindex tasks the worker consumes,
// typically after the embedding model changed.
type Reindexer struct {
	registry  driven.ExtractorRegistry
	chunker   *chunker.Chunker
	gateway   *EmbeddingGateway
	index     driven.VectorIndex
	documents driven.DocumentStore
	logger    *slog.Logger
}

// NewReindexer creates a Reindexer
func NewReindexer(
	registry driven.ExtractorRegistry,
	ch *chunker.Chunker,
	gateway *EmbeddingGateway,
	index driven.VectorIndex,
	documents driven.DocumentStore,
	logger *slog.Logger,
) *Reindexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reindexer{
		registry:  registry,
		chunker:   ch,
		gateway:   gateway,
		index:     index,
		documents: documents,
		logger:    logger,
	}
}

// ReindexDocument re-extracts, re-chunks and re-embeds one document.
// Old chunks are only dropped once the new vectors exist, so queries
// during a reindex see the previous chunk set rather than nothing.
func (r *Reindexer) ReindexDocument(ctx context.Context, documentID string) error {
	doc, err := r.documents.Get(ctx, documentID)
	if err != nil {
		return err
	}

	ext, err := r.registry.ForFile(doc.SourceFile)
	if err != nil {
		return err
	}

	segments, err := ext.Extract(ctx, doc.SourceFile)
	if err != nil {
		return fmt.Errorf("extraction failed for %s: %w", doc.SourceFile, err)
	}

	chunks := buildDocumentChunks(r.chunker, doc, segments)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNoContent, doc.SourceFile)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := r.gateway.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	if err := r.index.DeleteByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("drop old chunks of %s: %w", doc.ID, err)
	}
	for i, c := range chunks {
		if err := r.index.Upsert(ctx, c, vectors[i]); err != nil {
			return fmt.Errorf("index chunk %d of %s: %w", i, doc.SourceFile, err)
		}
	}

	if err := r.documents.UpdateChunkCount(ctx, doc.ID, len(chunks)); err != nil {
		return err
	}

	r.logger.Info("reindexed document",
		"document_id", doc.ID,
		"source_file", doc.SourceFile,
		"chunks", len(chunks))
	return nil
}

// ReindexAll re-embeds every registered document. Documents fail
// independently; the first error is reported after all were attempted.
func (r *Reindexer) ReindexAll(ctx context.Context) error {
	docs, err := r.documents.List(ctx)
	if err != nil {
		return err
	}

	var failed int
	var firstErr error
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.ReindexDocument(ctx, doc.ID); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			r.logger.Error("reindex failed",
				"document_id", doc.ID,
				"source_file", doc.SourceFile,
				"error", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("reindex failed for %d of %d documents: %w", failed, len(docs), firstErr)
	}

	r.logger.Info("reindexed all documents", "documents", len(docs))
	return nil
}
