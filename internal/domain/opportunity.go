package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// OpportunityKind distinguishes cyclic candidates from the two-hop
// cross-venue case.
type OpportunityKind string

const (
	OpportunityCycle      OpportunityKind = "cycle"
	OpportunityCrossVenue OpportunityKind = "cross_venue"
)

// Opportunity is a candidate arbitrage found during one scan tick. The asset
// path is a closed walk: the first and last entries are the base asset.
// Immutable after creation; evaluated exactly once by the decision policy.
type Opportunity struct {
	ID             string          `json:"id"`
	Kind           OpportunityKind `json:"kind"`
	Path           []AssetKey      `json:"path"`
	PoolIDs        []string        `json:"pool_ids"`
	Venues         []string        `json:"venues"`
	Hops           int             `json:"hops"`
	AmountIn       *big.Int        `json:"amount_in"`
	AmountOut      *big.Int        `json:"amount_out"`
	GrossRatio     decimal.Decimal `json:"gross_ratio"`
	NetRatio       decimal.Decimal `json:"net_ratio"`
	SettlementCost decimal.Decimal `json:"settlement_cost"`
	Generation     uint64          `json:"generation"`
	DetectedAt     time.Time       `json:"detected_at"`
}
