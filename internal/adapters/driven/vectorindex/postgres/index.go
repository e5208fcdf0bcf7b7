// Package postgres implements the vector index on PostgreSQL with the
// pgvector extension. Chunk metadata is stored alongside the vector so
// a similarity hit needs no second lookup.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/sercha-core/internal/adapters/driven/postgres"
	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*Index)(nil)

// Index is a pgvector-backed chunk index
type Index struct {
	db         *postgres.DB
	dimensions int
}

// NewIndex creates the index and its table. The chunks table is owned
// here rather than in the shared schema because the vector column's
// dimension depends on the configured embedding model.
func NewIndex(ctx context.Context, db *postgres.DB, dimensions int) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: embedding dimensions must be positive", domain.ErrInvalidInput)
	}

	ddl := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS chunks (
				id              TEXT PRIMARY KEY,
				document_id     TEXT NOT NULL,
				content         TEXT NOT NULL,
				doc_type        TEXT NOT NULL,
				source_file     TEXT NOT NULL,
				position        INTEGER NOT NULL,
				token_count     INTEGER NOT NULL,
				over_budget     BOOLEAN NOT NULL DEFAULT FALSE,
				collections     TEXT[] NOT NULL DEFAULT '{}',
				page            INTEGER,
				timestamp_start DOUBLE PRECISION,
				timestamp_end   DOUBLE PRECISION,
				speaker         TEXT NOT NULL DEFAULT '',
				created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				embedding       vector(%d) NOT NULL
			)`, dimensions),
		`CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks (document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_doc_type ON chunks (doc_type)`,
	}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("init chunks table: %w", err)
		}
	}

	return &Index{db: db, dimensions: dimensions}, nil
}

// Dimensions returns the vector dimension the index was created with
func (i *Index) Dimensions() int {
	return i.dimensions
}

// Upsert stores a chunk and its vector, idempotent by chunk ID
func (i *Index) Upsert(ctx context.Context, chunk *domain.Chunk, vector []float32) error {
	if len(vector) != i.dimensions {
		return fmt.Errorf("%w: got %d dimensions, index expects %d",
			domain.ErrVectorDimension, len(vector), i.dimensions)
	}

	query := `
		INSERT INTO chunks (
			id, document_id, content, doc_type, source_file, position,
			token_count, over_budget, collections, page,
			timestamp_start, timestamp_end, speaker, created_at, embedding
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			content = EXCLUDED.content,
			doc_type = EXCLUDED.doc_type,
			source_file = EXCLUDED.source_file,
			position = EXCLUDED.position,
			token_count = EXCLUDED.token_count,
			over_budget = EXCLUDED.over_budget,
			collections = EXCLUDED.collections,
			page = EXCLUDED.page,
			timestamp_start = EXCLUDED.timestamp_start,
			timestamp_end = EXCLUDED.timestamp_end,
			speaker = EXCLUDED.speaker,
			embedding = EXCLUDED.embedding
	`

	_, err := i.db.ExecContext(ctx, query,
		chunk.ID,
		chunk.DocumentID,
		chunk.Content,
		chunk.DocType,
		chunk.SourceFile,
		chunk.Position,
		chunk.TokenCount,
		chunk.OverBudget,
		pq.Array(chunk.Collections),
		chunk.Page,
		chunk.TimestampStart,
		chunk.TimestampEnd,
		chunk.Speaker,
		chunk.CreatedAt,
		pgvector.NewVector(vector),
	)
	if err != nil {
		return fmt.Errorf("upsert chunk: %w", err)
	}
	return nil
}

// Query returns up to k matches ordered by descending cosine similarity.
// pgvector's <=> operator is cosine distance, so similarity is 1 - distance.
func (i *Index) Query(ctx context.Context, vector []float32, k int, filter driven.IndexFilter) ([]driven.IndexMatch, error) {
	if len(vector) != i.dimensions {
		return nil, fmt.Errorf("%w: got %d dimensions, index expects %d",
			domain.ErrVectorDimension, len(vector), i.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}

	query := `
		SELECT id, document_id, content, doc_type, source_file, position,
			   token_count, over_budget, collections, page,
			   timestamp_start, timestamp_end, speaker, created_at,
			   embedding, 1 - (embedding <=> $1) AS similarity
		FROM chunks
	`
	args := []any{pgvector.NewVector(vector)}

	where := ""
	if len(filter.DocTypes) > 0 {
		types := make([]string, len(filter.DocTypes))
		for n, t := range filter.DocTypes {
			types[n] = string(t)
		}
		args = append(args, pq.Array(types))
		where = fmt.Sprintf("WHERE doc_type = ANY($%d)", len(args))
	}
	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		clause := fmt.Sprintf("document_id = $%d", len(args))
		if where == "" {
			where = "WHERE " + clause
		} else {
			where += " AND " + clause
		}
	}

	args = append(args, k)
	query += where + fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var matches []driven.IndexMatch
	for rows.Next() {
		var chunk domain.Chunk
		var page sql.NullInt64
		var tsStart, tsEnd sql.NullFloat64
		var embedding pgvector.Vector
		var score float64
		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.Content,
			&chunk.DocType,
			&chunk.SourceFile,
			&chunk.Position,
			&chunk.TokenCount,
			&chunk.OverBudget,
			pq.Array(&chunk.Collections),
			&page,
			&tsStart,
			&tsEnd,
			&chunk.Speaker,
			&chunk.CreatedAt,
			&embedding,
			&score,
		)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if page.Valid {
			p := int(page.Int64)
			chunk.Page = &p
		}
		if tsStart.Valid {
			chunk.TimestampStart = &tsStart.Float64
		}
		if tsEnd.Valid {
			chunk.TimestampEnd = &tsEnd.Float64
		}
		matches = append(matches, driven.IndexMatch{Chunk: &chunk, Score: score, Vector: embedding.Slice()})
	}
	return matches, rows.Err()
}

// Delete removes a single chunk
func (i *Index) Delete(ctx context.Context, chunkID string) error {
	_, err := i.db.ExecContext(ctx, `DELETE FROM chunks WHERE id = $1`, chunkID)
	if err != nil {
		return fmt.Errorf("delete chunk: %w", err)
	}
	return nil
}

// DeleteByDocument removes all chunks of a document
func (i *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := i.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	return nil
}

// UpdateCollections rewrites collection tags on every chunk of a document
func (i *Index) UpdateCollections(ctx context.Context, documentID string, collections []string) error {
	query := `UPDATE chunks SET collections = $1 WHERE document_id = $2`

	_, err := i.db.ExecContext(ctx, query, pq.Array(collections), documentID)
	if err != nil {
		return fmt.Errorf("update chunk collections: %w", err)
	}
	return nil
}

// Count returns the number of indexed chunks
func (i *Index) Count(ctx context.Context) (int, error) {
	var count int
	err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// Ping verifies the index is reachable
func (i *Index) Ping(ctx context.Context) error {
	return i.db.PingContext(ctx)
}
