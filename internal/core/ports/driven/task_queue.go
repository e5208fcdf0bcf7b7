package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// TaskQueue delivers background tasks to the worker. Tasks are delivered
// at least once: an unacked task is redelivered after its claim expires.
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(ctx context.Context, task *domain.Task) error

	// DequeueWithTimeout blocks up to timeout for the next task, returning
	// nil when the timeout elapses with an empty queue
	DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error)

	// Ack marks a task as successfully processed
	Ack(ctx context.Context, task *domain.Task) error

	// Nack returns a task to the queue for retry
	Nack(ctx context.Context, task *domain.Task) error

	// Ping verifies the queue is reachable
	Ping(ctx context.Context) error

	// Close releases queue resources
	Close() error
}
