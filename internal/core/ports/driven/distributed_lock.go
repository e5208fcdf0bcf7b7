package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates work across instances. The worker uses it
// to ensure a full reindex runs on one instance at a time.
type DistributedLock interface {
	// Acquire attempts to take a named lock with the given TTL,
	// returning false when another instance holds it
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Release releases a named lock if held by this instance
	Release(ctx context.Context, name string) error

	// Extend extends the TTL of a currently held lock
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping verifies the lock backend is reachable
	Ping(ctx context.Context) error
}
