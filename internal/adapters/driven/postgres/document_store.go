package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Create inserts a document record
func (s *DocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (id, source_file, doc_type, collections, chunk_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		doc.ID,
		doc.SourceFile,
		doc.DocType,
		pq.Array(doc.Collections),
		doc.ChunkCount,
		doc.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// Get returns a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	query := `
		SELECT id, source_file, doc_type, collections, chunk_count, created_at
		FROM documents
		WHERE id = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// GetBySourceFile returns the document ingested from the given file
func (s *DocumentStore) GetBySourceFile(ctx context.Context, sourceFile string) (*domain.Document, error) {
	query := `
		SELECT id, source_file, doc_type, collections, chunk_count, created_at
		FROM documents
		WHERE source_file = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, sourceFile))
}

// List returns all documents, newest first
func (s *DocumentStore) List(ctx context.Context) ([]*domain.Document, error) {
	query := `
		SELECT id, source_file, doc_type, collections, chunk_count, created_at
		FROM documents
		ORDER BY created_at DESC, id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := s.scanRow(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateCollections replaces a document's collection memberships
func (s *DocumentStore) UpdateCollections(ctx context.Context, id string, collections []string) error {
	query := `UPDATE documents SET collections = $1 WHERE id = $2`

	result, err := s.db.ExecContext(ctx, query, pq.Array(collections), id)
	if err != nil {
		return fmt.Errorf("update collections: %w", err)
	}
	return requireRow(result)
}

// UpdateChunkCount records how many chunks the document produced
func (s *DocumentStore) UpdateChunkCount(ctx context.Context, id string, count int) error {
	query := `UPDATE documents SET chunk_count = $1 WHERE id = $2`

	result, err := s.db.ExecContext(ctx, query, count, id)
	if err != nil {
		return fmt.Errorf("update chunk count: %w", err)
	}
	return requireRow(result)
}

// Delete removes a document record
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireRow(result)
}

// Stats aggregates corpus-wide counts
func (s *DocumentStore) Stats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{
		DocumentsByType: make(map[domain.DocType]int),
	}

	query := `
		SELECT doc_type, COUNT(*), COALESCE(SUM(chunk_count), 0)
		FROM documents
		GROUP BY doc_type
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var docType domain.DocType
		var count, chunks int
		if err := rows.Scan(&docType, &count, &chunks); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.DocumentsByType[docType] = count
		stats.TotalDocuments += count
		stats.TotalChunks += chunks
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	collections, err := s.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	stats.Collections = collections
	stats.TotalCollections = len(collections)

	return stats, nil
}

// ListCollections returns every distinct collection name in use
func (s *DocumentStore) ListCollections(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT unnest(collections)
		FROM documents
		ORDER BY 1
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *DocumentStore) scanOne(row *sql.Row) (*domain.Document, error) {
	doc, err := s.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

func (s *DocumentStore) scanRow(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	err := row.Scan(
		&doc.ID,
		&doc.SourceFile,
		&doc.DocType,
		pq.Array(&doc.Collections),
		&doc.ChunkCount,
		&doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
