package driving

import (
	"context"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// QueryRequest represents a question against the indexed corpus
type QueryRequest struct {
	Question      string           `json:"question"`
	TopK          int              `json:"top_k,omitempty"`
	MinSimilarity float64          `json:"min_similarity,omitempty"`
	DocTypes      []domain.DocType `json:"doc_types,omitempty"`
	Collections   []string         `json:"collections,omitempty"`
	SessionID     string           `json:"session_id,omitempty"`
	MMR           bool             `json:"mmr,omitempty"`
	MMRLambda     float64          `json:"mmr_lambda,omitempty"`
}

// QueryService answers questions using retrieved document context
type QueryService interface {
	// Query runs the full pipeline and returns the complete answer
	Query(ctx context.Context, req QueryRequest) (*domain.Answer, error)

	// QueryStream runs the pipeline and emits events as they happen:
	// a sources event before the first token, chunk events for each
	// answer fragment, then a terminal done or error event
	QueryStream(ctx context.Context, req QueryRequest) (<-chan domain.QueryEvent, error)

	// Search performs retrieval only, without generation
	Search(ctx context.Context, question string, opts domain.RetrievalOptions) ([]*domain.RetrievedChunk, error)
}
