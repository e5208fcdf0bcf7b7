package driven

import (
	"context"
)

// Delta is one increment of a streaming generation. After a delta with
// Done or Err set, no further deltas are sent and the channel is closed.
type Delta struct {
	Content string
	Done    bool
	Err     error
}

// LLMService provides text generation via a locally hosted model
type LLMService interface {
	// Generate produces a complete response for the prompt
	Generate(ctx context.Context, prompt, system string) (string, error)

	// GenerateStream produces the response incrementally. Deltas are
	// delivered in generation order; cancelling ctx stops the stream
	// and no further tokens are requested from the provider.
	GenerateStream(ctx context.Context, prompt, system string) (<-chan Delta, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
