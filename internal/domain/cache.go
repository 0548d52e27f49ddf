package domain

import (
	"context"
	"time"
)

// SnapshotCache stores the latest intelligence snapshot so that read-only
// processes (monitor mode, the operator API) see the same state as the
// scanning process.
type SnapshotCache interface {
	Set(ctx context.Context, snap IntelligenceSnapshot) error
	Get(ctx context.Context) (IntelligenceSnapshot, error)
}

// PoolCache mirrors the pool graph's latest reserve state for operator
// queries without touching the graph itself.
type PoolCache interface {
	SetPool(ctx context.Context, pool Pool) error
	GetPool(ctx context.Context, id string) (Pool, error)
	ListPools(ctx context.Context) ([]Pool, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
