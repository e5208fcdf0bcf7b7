package domain

import "time"

// RetrievalOptions configures a retrieval request
type RetrievalOptions struct {
	TopK          int       `json:"top_k"`
	MinSimilarity float64   `json:"min_similarity"`
	DocTypes      []DocType `json:"doc_types,omitempty"`
	Collections   []string  `json:"collections,omitempty"`

	// MMR reranks an over-fetched candidate pool for diversity instead
	// of returning the raw nearest neighbours. MMRLambda trades off
	// relevance against diversity; zero means the default of 0.5.
	MMR       bool    `json:"mmr,omitempty"`
	MMRLambda float64 `json:"mmr_lambda,omitempty"`
}

// DefaultRetrievalOptions returns sensible defaults
func DefaultRetrievalOptions() RetrievalOptions {
	return RetrievalOptions{TopK: 5}
}

// RetrievedChunk is an ephemeral, query-scoped retrieval result.
// Never persisted; constructed fresh per query.
type RetrievedChunk struct {
	Chunk      *Chunk  `json:"chunk"`
	Similarity float64 `json:"similarity"`
	Rank       int     `json:"rank"`
}

// Source binds a citation marker to one retrieved chunk. Markers are
// assigned in first-seen context order and never reassigned within a
// response.
type Source struct {
	Index          int      `json:"index"`
	ChunkID        string   `json:"chunk_id"`
	DocumentID     string   `json:"document_id"`
	SourceFile     string   `json:"source_file"`
	DocType        DocType  `json:"doc_type"`
	Similarity     float64  `json:"similarity"`
	Page           *int     `json:"page,omitempty"`
	TimestampStart *float64 `json:"timestamp_start,omitempty"`
	TimestampEnd   *float64 `json:"timestamp_end,omitempty"`
	Speaker        string   `json:"speaker,omitempty"`
}

// FormattedSource is the display form of a Source returned to clients
type FormattedSource struct {
	Index      int     `json:"index"`
	File       string  `json:"file"`
	Type       DocType `json:"type"`
	Similarity float64 `json:"similarity"` // percentage, one decimal
	Location   string  `json:"location,omitempty"`
}

// Validation is the guardrail verdict for a generated response
type Validation struct {
	Valid      bool     `json:"valid"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons,omitempty"`
}

// QueryState tracks the orchestrator state machine for one query
type QueryState string

const (
	QueryStateIdle            QueryState = "idle"
	QueryStateEmbedding       QueryState = "embedding"
	QueryStateRetrieving      QueryState = "retrieving"
	QueryStateContextBuilding QueryState = "context_building"
	QueryStateGenerating      QueryState = "generating"
	QueryStateValidating      QueryState = "validating"
	QueryStateDone            QueryState = "done"
	QueryStateError           QueryState = "error"
)

// QueryEventType identifies a streamed query event
type QueryEventType string

const (
	EventSources QueryEventType = "sources"
	EventChunk   QueryEventType = "chunk"
	EventError   QueryEventType = "error"
	EventDone    QueryEventType = "done"
)

// QueryEvent is one element of a streaming query response. Within one
// query the sources event is delivered exactly once, before any chunk
// event; a terminal error event follows whatever partial chunks were
// already sent (streaming is append-only, nothing is retracted).
type QueryEvent struct {
	Type      QueryEventType    `json:"type"`
	Content   string            `json:"content,omitempty"`
	Sources   []FormattedSource `json:"sources,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorKind string            `json:"error_kind,omitempty"`
	State     QueryState        `json:"-"`
	// Guardrail is set on the done event when validation rejected the
	// streamed text; Content then carries the substitute answer clients
	// must display instead of the chunks already received.
	Guardrail  *Validation `json:"guardrail,omitempty"`
	Confidence *float64    `json:"confidence,omitempty"`
}

// NoInformationAnswer is returned when retrieval comes back empty.
// An empty retrieval is a valid outcome, not a fault.
const NoInformationAnswer = "I couldn't find any relevant information to answer your question."

// GuardrailFallbackAnswer replaces a response that failed validation
const GuardrailFallbackAnswer = "I don't have enough grounded information to answer that reliably."

// Answer is the final, non-streaming query result
type Answer struct {
	Answer     string            `json:"answer"`
	Sources    []FormattedSource `json:"sources"`
	Confidence float64           `json:"confidence"`
	// Guardrail is set when validation failed and the answer was
	// substituted; callers must be able to tell this apart from a
	// normal answer.
	Guardrail *Validation   `json:"guardrail,omitempty"`
	Took      time.Duration `json:"took"`
}
