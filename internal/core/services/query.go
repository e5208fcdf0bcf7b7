package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
)

const (
	defaultEmbedTimeout    = 15 * time.Second
	defaultSearchTimeout   = 10 * time.Second
	defaultGenerateTimeout = 120 * time.Second
)

const ragSystemPrompt = `You are a helpful AI assistant that answers questions based on the provided context.

Rules:
1. Answer ONLY based on the information in the context below
2. If the context doesn't contain relevant information, say "I don't have enough information to answer that"
3. Cite your sources by referencing [Source X] when using information
4. Be concise and accurate
5. Do not make up information`

// Ensure queryService implements QueryService
var _ driving.QueryService = (*queryService)(nil)

// QueryServiceConfig bounds each external call of the pipeline
type QueryServiceConfig struct {
	EmbedTimeout    time.Duration
	SearchTimeout   time.Duration
	GenerateTimeout time.Duration
	Logger          *slog.Logger
}

// queryService orchestrates one query through embedding, retrieval,
// context building, generation and validation. Each call runs its own
// pipeline instance; concurrent queries share nothing mutable beyond
// the vector index and the embedding gateway.
type queryService struct {
	retriever  *Retriever
	citations  *CitationEngine
	guardrails *Guardrails
	llm        driven.LLMService
	sessions   driving.SessionService // optional, nil disables recording

	embedTimeout    time.Duration
	searchTimeout   time.Duration
	generateTimeout time.Duration
	logger          *slog.Logger
}

// NewQueryService creates a QueryService. sessions may be nil when
// session recording is not wanted.
func NewQueryService(
	retriever *Retriever,
	citations *CitationEngine,
	guardrails *Guardrails,
	llm driven.LLMService,
	sessions driving.SessionService,
	cfg QueryServiceConfig,
) driving.QueryService {
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = defaultEmbedTimeout
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = defaultSearchTimeout
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = defaultGenerateTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &queryService{
		retriever:       retriever,
		citations:       citations,
		guardrails:      guardrails,
		llm:             llm,
		sessions:        sessions,
		embedTimeout:    cfg.EmbedTimeout,
		searchTimeout:   cfg.SearchTimeout,
		generateTimeout: cfg.GenerateTimeout,
		logger:          logger,
	}
}

// Query runs the full pipeline and returns the complete answer
func (s *queryService) Query(ctx context.Context, req driving.QueryRequest) (*domain.Answer, error) {
	start := time.Now()
	state := domain.QueryStateIdle

	results, err := s.retrieve(ctx, req, &state)
	if err != nil {
		return nil, classifyGenerationErr(err)
	}

	state = domain.QueryStateContextBuilding
	if len(results) == 0 {
		answer := &domain.Answer{
			Answer:     domain.NoInformationAnswer,
			Sources:    []domain.FormattedSource{},
			Confidence: 0,
			Took:       time.Since(start),
		}
		s.record(ctx, req, answer)
		return answer, nil
	}

	contextText, sources := s.citations.BuildContext(results)

	state = domain.QueryStateGenerating
	genCtx, cancel := context.WithTimeout(ctx, s.generateTimeout)
	defer cancel()

	raw, err := s.llm.Generate(genCtx, ragPrompt(contextText, req.Question), ragSystemPrompt)
	if err != nil {
		return nil, classifyGenerationErr(err)
	}

	state = domain.QueryStateValidating
	validation := s.guardrails.Validate(raw, contextText, req.Question)
	answerText := s.guardrails.Filter(raw)

	answer := &domain.Answer{
		Answer:     answerText,
		Confidence: validation.Confidence,
		Took:       time.Since(start),
	}
	if !validation.Valid {
		s.logger.Warn("guardrail rejected response",
			"reasons", validation.Reasons)
		answer.Answer = domain.GuardrailFallbackAnswer
		answer.Guardrail = &validation
		answer.Sources = []domain.FormattedSource{}
	} else {
		answer.Sources = s.citations.FormatSources(sources, true, answerText)
	}

	state = domain.QueryStateDone
	s.logger.Info("query answered",
		"state", state,
		"sources", len(answer.Sources),
		"confidence", answer.Confidence,
		"took", answer.Took)

	s.record(ctx, req, answer)
	return answer, nil
}

// QueryStream runs the pipeline and emits events as they happen. The
// sources event arrives once, before the first chunk; a terminal done
// or error event always closes the stream. Partial chunks already
// emitted are never retracted.
func (s *queryService) QueryStream(ctx context.Context, req driving.QueryRequest) (<-chan domain.QueryEvent, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	events := make(chan domain.QueryEvent)
	go s.stream(ctx, req, events)
	return events, nil
}

func (s *queryService) stream(ctx context.Context, req driving.QueryRequest, events chan<- domain.QueryEvent) {
	defer close(events)
	state := domain.QueryStateIdle

	emit := func(ev domain.QueryEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		typed := classifyGenerationErr(err)
		emit(domain.QueryEvent{
			Type:      domain.EventError,
			Error:     typed.Error(),
			ErrorKind: errorKind(typed),
			State:     state,
		})
	}

	results, err := s.retrieve(ctx, req, &state)
	if err != nil {
		fail(err)
		return
	}

	state = domain.QueryStateContextBuilding
	if len(results) == 0 {
		if !emit(domain.QueryEvent{Type: domain.EventSources, Sources: []domain.FormattedSource{}}) {
			return
		}
		if !emit(domain.QueryEvent{Type: domain.EventChunk, Content: domain.NoInformationAnswer}) {
			return
		}
		zero := 0.0
		emit(domain.QueryEvent{Type: domain.EventDone, Confidence: &zero})
		s.record(ctx, req, &domain.Answer{
			Answer:  domain.NoInformationAnswer,
			Sources: []domain.FormattedSource{},
		})
		return
	}

	contextText, sources := s.citations.BuildContext(results)

	// Sources go out before the first token so clients can render them
	// while text streams
	if !emit(domain.QueryEvent{
		Type:    domain.EventSources,
		Sources: s.citations.FormatSources(sources, false, ""),
	}) {
		return
	}

	state = domain.QueryStateGenerating
	genCtx, cancel := context.WithTimeout(ctx, s.generateTimeout)
	defer cancel()

	deltas, err := s.llm.GenerateStream(genCtx, ragPrompt(contextText, req.Question), ragSystemPrompt)
	if err != nil {
		fail(err)
		return
	}

	var full strings.Builder
	for delta := range deltas {
		if delta.Err != nil {
			fail(delta.Err)
			return
		}
		if delta.Done {
			break
		}
		full.WriteString(delta.Content)
		if !emit(domain.QueryEvent{Type: domain.EventChunk, Content: delta.Content}) {
			// Caller gone; cancel stops the provider from producing more
			return
		}
	}
	if err := genCtx.Err(); err != nil {
		fail(err)
		return
	}

	state = domain.QueryStateValidating
	raw := full.String()
	validation := s.guardrails.Validate(raw, contextText, req.Question)
	answerText := s.guardrails.Filter(raw)

	confidence := validation.Confidence
	done := domain.QueryEvent{Type: domain.EventDone, Confidence: &confidence}
	answer := &domain.Answer{
		Answer:     answerText,
		Sources:    s.citations.FormatSources(sources, true, answerText),
		Confidence: validation.Confidence,
	}
	if !validation.Valid {
		// The rejected text already streamed; the done event carries the
		// verdict and the substitute answer so clients can replace it
		s.logger.Warn("guardrail rejected streamed response",
			"reasons", validation.Reasons)
		done.Guardrail = &validation
		done.Content = domain.GuardrailFallbackAnswer
		answer.Answer = domain.GuardrailFallbackAnswer
		answer.Guardrail = &validation
		answer.Sources = []domain.FormattedSource{}
	}
	emit(done)

	s.record(ctx, req, answer)
}

// Search performs retrieval only, without generation
func (s *queryService) Search(ctx context.Context, question string, opts domain.RetrievalOptions) ([]*domain.RetrievedChunk, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	searchCtx, cancel := context.WithTimeout(ctx, s.embedTimeout+s.searchTimeout)
	defer cancel()
	return s.retriever.Retrieve(searchCtx, question, opts)
}

// retrieve runs the embedding and retrieving states with their timeouts
func (s *queryService) retrieve(ctx context.Context, req driving.QueryRequest, state *domain.QueryState) ([]*domain.RetrievedChunk, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	opts := domain.RetrievalOptions{
		TopK:          req.TopK,
		MinSimilarity: req.MinSimilarity,
		DocTypes:      req.DocTypes,
		Collections:   req.Collections,
		MMR:           req.MMR,
		MMRLambda:     req.MMRLambda,
	}

	*state = domain.QueryStateEmbedding
	embedCtx, cancelEmbed := context.WithTimeout(ctx, s.embedTimeout)
	defer cancelEmbed()
	vector, err := s.retriever.gateway.EmbedQuery(embedCtx, req.Question)
	if err != nil {
		// A stalled embedding backend is retryable; it must not surface
		// as a generation timeout
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
		}
		return nil, err
	}

	*state = domain.QueryStateRetrieving
	searchCtx, cancelSearch := context.WithTimeout(ctx, s.searchTimeout)
	defer cancelSearch()
	return s.retriever.RetrieveByVector(searchCtx, vector, opts)
}

// record appends the exchange to the request's session, best effort
func (s *queryService) record(ctx context.Context, req driving.QueryRequest, answer *domain.Answer) {
	if s.sessions == nil || req.SessionID == "" {
		return
	}
	if err := s.sessions.Record(ctx, req.SessionID, req.Question, answer); err != nil {
		s.logger.Warn("failed to record session message",
			"session_id", req.SessionID,
			"error", err)
	}
}

func ragPrompt(contextText, question string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", contextText, question)
}

// classifyGenerationErr maps transport failures to the typed errors the
// HTTP boundary translates to status codes
func classifyGenerationErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrGenerationTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", domain.ErrGenerationInterrupted, err)
	default:
		return err
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrGenerationTimeout):
		return "upstream_timeout"
	case errors.Is(err, domain.ErrGenerationInterrupted):
		return "interrupted"
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
