package domain

import (
	"math/big"
	"time"
)

// Pool is a two-asset constant-product liquidity pool. Reserves are mutated
// only through PoolGraph updates; the fee rate is fixed for the lifetime of
// the pool instance.
type Pool struct {
	ID        string // venue-scoped pool identifier
	Venue     string
	Asset0    AssetKey
	Asset1    AssetKey
	Reserve0  *big.Int
	Reserve1  *big.Int
	FeeBps    uint32
	UpdatedAt time.Time
}

// Other returns the opposite endpoint of the pool, or "" when the given
// asset is not an endpoint.
func (p Pool) Other(asset AssetKey) AssetKey {
	switch asset {
	case p.Asset0:
		return p.Asset1
	case p.Asset1:
		return p.Asset0
	}
	return ""
}

// Has reports whether the asset is one of the pool's endpoints.
func (p Pool) Has(asset AssetKey) bool {
	return asset == p.Asset0 || asset == p.Asset1
}

// PoolReading is a single reserve observation delivered by the pool feed.
type PoolReading struct {
	Venue     string    `json:"venue"`
	PoolID    string    `json:"pool_id"`
	Asset0    AssetKey  `json:"asset_a"`
	Asset1    AssetKey  `json:"asset_b"`
	Reserve0  *big.Int  `json:"reserve_a"`
	Reserve1  *big.Int  `json:"reserve_b"`
	FeeBps    uint32    `json:"fee_bps"`
	Timestamp time.Time `json:"timestamp"`
}
