package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// overFetchFactor compensates for post-filter attrition when a doc-type
// or collection filter is active
const overFetchFactor = 3

// Retriever finds the chunks most similar to a query
type Retriever struct {
	gateway *EmbeddingGateway
	index   driven.VectorIndex
	tok     driven.Tokenizer
}

// NewRetriever creates a Retriever
func NewRetriever(gateway *EmbeddingGateway, index driven.VectorIndex, tok driven.Tokenizer) *Retriever {
	return &Retriever{
		gateway: gateway,
		index:   index,
		tok:     tok,
	}
}

// Retrieve embeds the query and returns the topK most similar chunks.
// An empty result is a valid outcome, not an error. Ordering is
// deterministic: descending similarity, ties broken by earlier chunk
// creation time, then by ID.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts domain.RetrievalOptions) ([]*domain.RetrievedChunk, error) {
	if opts.TopK <= 0 {
		opts.TopK = domain.DefaultRetrievalOptions().TopK
	}

	vector, err := r.gateway.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return r.retrieveByVector(ctx, vector, opts)
}

// RetrieveByVector runs the search with an already-computed query vector
func (r *Retriever) RetrieveByVector(ctx context.Context, vector []float32, opts domain.RetrievalOptions) ([]*domain.RetrievedChunk, error) {
	if opts.TopK <= 0 {
		opts.TopK = domain.DefaultRetrievalOptions().TopK
	}
	return r.retrieveByVector(ctx, vector, opts)
}

func (r *Retriever) retrieveByVector(ctx context.Context, vector []float32, opts domain.RetrievalOptions) ([]*domain.RetrievedChunk, error) {
	filterActive := len(opts.DocTypes) > 0 || len(opts.Collections) > 0

	k := opts.TopK
	switch {
	case opts.MMR:
		k = opts.TopK * mmrFetchFactor
	case filterActive:
		k = opts.TopK * overFetchFactor
	}

	matches, err := r.index.Query(ctx, vector, k, driven.IndexFilter{DocTypes: opts.DocTypes})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]*domain.RetrievedChunk, 0, len(matches))
	vectors := make([][]float32, 0, len(matches))
	for _, m := range matches {
		if len(opts.Collections) > 0 && !inAnyCollection(m.Chunk, opts.Collections) {
			continue
		}
		results = append(results, &domain.RetrievedChunk{
			Chunk:      m.Chunk,
			Similarity: m.Score,
		})
		vectors = append(vectors, m.Vector)
	}

	if opts.MMR {
		if selected, ok := r.mmrRerank(results, vectors, opts); ok {
			return selected, nil
		}
	}

	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}

	filtered := results[:0]
	for _, rc := range results {
		if rc.Similarity >= opts.MinSimilarity {
			filtered = append(filtered, rc)
		}
	}
	results = filtered

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if !results[i].Chunk.CreatedAt.Equal(results[j].Chunk.CreatedAt) {
			return results[i].Chunk.CreatedAt.Before(results[j].Chunk.CreatedAt)
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	for i, rc := range results {
		rc.Rank = i + 1
	}
	return results, nil
}

// mmrRerank applies maximal marginal relevance over the candidate pool.
// It reports false when any candidate is missing its stored vector, in
// which case the caller falls back to plain similarity ranking.
func (r *Retriever) mmrRerank(candidates []*domain.RetrievedChunk, vectors [][]float32, opts domain.RetrievalOptions) ([]*domain.RetrievedChunk, bool) {
	for _, v := range vectors {
		if len(v) == 0 {
			return nil, false
		}
	}

	pool := make([]*domain.RetrievedChunk, 0, len(candidates))
	poolVecs := make([][]float32, 0, len(candidates))
	for i, rc := range candidates {
		if rc.Similarity < opts.MinSimilarity {
			continue
		}
		pool = append(pool, rc)
		poolVecs = append(poolVecs, vectors[i])
	}

	lambda := opts.MMRLambda
	if lambda <= 0 || lambda > 1 {
		lambda = defaultMMRLambda
	}

	selected := mmrSelect(pool, poolVecs, lambda, opts.TopK)
	for i, rc := range selected {
		rc.Rank = i + 1
	}
	return selected, true
}

// Context retrieves chunks and joins their contents under a token budget.
// Chunks are appended whole, highest similarity first; a chunk that would
// exceed the budget stops the assembly rather than being truncated.
func (r *Retriever) Context(ctx context.Context, query string, maxTokens int, opts domain.RetrievalOptions) (string, error) {
	results, err := r.Retrieve(ctx, query, opts)
	if err != nil {
		return "", err
	}

	var parts []string
	used := 0
	for _, rc := range results {
		tokens := rc.Chunk.TokenCount
		if tokens == 0 {
			tokens = r.tok.Count(rc.Chunk.Content)
		}
		if maxTokens > 0 && used+tokens > maxTokens {
			break
		}
		parts = append(parts, rc.Chunk.Content)
		used += tokens
	}
	return strings.Join(parts, "\n\n"), nil
}

func inAnyCollection(chunk *domain.Chunk, collections []string) bool {
	for _, c := range collections {
		if chunk.InCollection(c) {
			return true
		}
	}
	return false
}
