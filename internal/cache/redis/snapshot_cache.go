package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ascheung/poolbot/internal/domain"
)

const snapshotTTL = 10 * time.Minute

// snapshotKey holds the latest intelligence snapshot as JSON.
const snapshotKey = "intel:snapshot"

// SnapshotCache implements domain.SnapshotCache using a single Redis key so
// that monitor-mode processes and the operator API read the same snapshot
// the scanning process published.
type SnapshotCache struct {
	rdb *redis.Client
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying()}
}

// Set stores the snapshot with a TTL so a dead producer does not leave an
// arbitrarily old snapshot looking current forever.
func (sc *SnapshotCache) Set(ctx context.Context, snap domain.IntelligenceSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot: %w", err)
	}
	if err := sc.rdb.Set(ctx, snapshotKey, data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot: %w", err)
	}
	return nil
}

// Get retrieves the latest snapshot. It returns domain.ErrNotFound when no
// snapshot has been published (or the last one expired); callers fall back
// to the neutral default.
func (sc *SnapshotCache) Get(ctx context.Context) (domain.IntelligenceSnapshot, error) {
	data, err := sc.rdb.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.IntelligenceSnapshot{}, domain.ErrNotFound
		}
		return domain.IntelligenceSnapshot{}, fmt.Errorf("redis: get snapshot: %w", err)
	}

	var snap domain.IntelligenceSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.IntelligenceSnapshot{}, fmt.Errorf("redis: unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
