package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

const (
	defaultEmbedBatchSize = 32
	defaultEmbedRetries   = 3
	defaultEmbedBackoff   = 500 * time.Millisecond
)

// EmbeddingGatewayConfig tunes batching and retry behaviour
type EmbeddingGatewayConfig struct {
	BatchSize  int
	MaxRetries int
	Backoff    time.Duration
}

// EmbeddingGateway wraps the embedding provider with batching and retries.
// Output order always matches input order, and a batch either fully
// succeeds or fully fails; chunks are never indexed without vectors.
// Stateless, safe for concurrent use.
type EmbeddingGateway struct {
	provider   driven.EmbeddingService
	batchSize  int
	maxRetries int
	backoff    time.Duration
}

// NewEmbeddingGateway creates an EmbeddingGateway with defaults applied
func NewEmbeddingGateway(provider driven.EmbeddingService, cfg EmbeddingGatewayConfig) *EmbeddingGateway {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultEmbedBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultEmbedRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultEmbedBackoff
	}
	return &EmbeddingGateway{
		provider:   provider,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
}

// EmbedQuery embeds a single query string
func (g *EmbeddingGateway) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	var vector []float32
	err := g.withRetry(ctx, func() error {
		v, err := g.provider.EmbedQuery(ctx, query)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// EmbedBatch embeds texts in configured batch sizes, returning vectors in
// input order. Cancellation is honoured between batches.
func (g *EmbeddingGateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += g.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		var result [][]float32
		err := g.withRetry(ctx, func() error {
			v, err := g.provider.Embed(ctx, batch)
			if err != nil {
				return err
			}
			if len(v) != len(batch) {
				return fmt.Errorf("provider returned %d vectors for %d texts", len(v), len(batch))
			}
			result = v
			return nil
		})
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, result...)
	}
	return vectors, nil
}

// Dimensions reports the provider's vector dimensionality
func (g *EmbeddingGateway) Dimensions() int {
	return g.provider.Dimensions()
}

// Model reports the provider's model name
func (g *EmbeddingGateway) Model() string {
	return g.provider.Model()
}

// HealthCheck verifies the provider is reachable
func (g *EmbeddingGateway) HealthCheck(ctx context.Context) error {
	return g.provider.HealthCheck(ctx)
}

func (g *EmbeddingGateway) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	backoff := g.backoff
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		// Cancellation is not retryable
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, lastErr)
}
