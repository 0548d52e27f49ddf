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

const poolTTL = 10 * time.Minute

// PoolCache implements domain.PoolCache by mirroring the latest reserve
// reading per pool, so operator queries never touch the scanning graph.
//
// Key schema:
//
//	pool:{id}   - JSON-serialized Pool
//	pools:index - set of known pool IDs
type PoolCache struct {
	rdb *redis.Client
}

// NewPoolCache creates a PoolCache backed by the given Client.
func NewPoolCache(c *Client) *PoolCache {
	return &PoolCache{rdb: c.Underlying()}
}

func poolKey(id string) string { return "pool:" + id }

const poolIndexKey = "pools:index"

// SetPool stores one pool's latest state and indexes its ID.
func (pc *PoolCache) SetPool(ctx context.Context, pool domain.Pool) error {
	data, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("redis: marshal pool %s: %w", pool.ID, err)
	}

	pipe := pc.rdb.TxPipeline()
	pipe.Set(ctx, poolKey(pool.ID), data, poolTTL)
	pipe.SAdd(ctx, poolIndexKey, pool.ID)
	pipe.Expire(ctx, poolIndexKey, poolTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set pool %s: %w", pool.ID, err)
	}
	return nil
}

// GetPool retrieves one pool by ID. It returns domain.ErrNotFound when the
// key does not exist.
func (pc *PoolCache) GetPool(ctx context.Context, id string) (domain.Pool, error) {
	data, err := pc.rdb.Get(ctx, poolKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Pool{}, domain.ErrNotFound
		}
		return domain.Pool{}, fmt.Errorf("redis: get pool %s: %w", id, err)
	}

	var pool domain.Pool
	if err := json.Unmarshal(data, &pool); err != nil {
		return domain.Pool{}, fmt.Errorf("redis: unmarshal pool %s: %w", id, err)
	}
	return pool, nil
}

// ListPools returns every indexed pool, skipping IDs whose entries expired.
func (pc *PoolCache) ListPools(ctx context.Context) ([]domain.Pool, error) {
	ids, err := pc.rdb.SMembers(ctx, poolIndexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: list pool ids: %w", err)
	}

	pools := make([]domain.Pool, 0, len(ids))
	for _, id := range ids {
		pool, err := pc.GetPool(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

// Compile-time interface check.
var _ domain.PoolCache = (*PoolCache)(nil)
