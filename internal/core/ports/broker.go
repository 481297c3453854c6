package ports

import (
	"context"
	"time"
)

// Broker is the external key-value + pub/sub + durable-queue collaborator
// described in spec.md §2 and §6. It is conceptually Redis-equivalent;
// internal/adapter/broker ships an in-process implementation, but any
// store offering atomic INCR, SET-with-TTL, hashes and a durable queue
// satisfies this port.
type Broker interface {
	// Ping reports whether the broker is reachable within ctx's deadline.
	Ping(ctx context.Context) error

	// Set stores value under key with the given TTL (0 disables expiry).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value stored under key, or (nil, false) if absent/expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Incr atomically increments the integer counter stored at key and
	// returns the new value. Keys are created with delta on first use.
	Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// HSet/HGetAll back the small per-job hashes under each job namespace.
	HSet(ctx context.Context, key, field string, value []byte, ttl time.Duration) error
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)

	// Enqueue/Dequeue back the durable task queue used by TaskRuntime.
	Enqueue(ctx context.Context, queue string, payload []byte) error
	Dequeue(ctx context.Context, queue string, wait time.Duration) ([]byte, bool, error)

	// Publish/Subscribe back ephemeral progress and completion signals
	// (e.g. chord-completion events in the refresh-wait fallback, §4.2.5).
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)

	Close() error
}
