package domain

import "time"

// Document represents one ingested file
type Document struct {
	ID          string    `json:"id"`
	SourceFile  string    `json:"source_file"`
	DocType     DocType   `json:"doc_type"`
	Collections []string  `json:"collections,omitempty"`
	ChunkCount  int       `json:"chunk_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Stats holds aggregate workspace counts for observability
type Stats struct {
	TotalDocuments   int             `json:"total_documents"`
	TotalChunks      int             `json:"total_chunks"`
	TotalCollections int             `json:"total_collections"`
	DocumentsByType  map[DocType]int `json:"documents_by_type"`
	Collections      []string        `json:"collections"`
}
