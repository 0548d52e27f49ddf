package graph

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ascheung/poolbot/internal/domain"
)

// Graph maintains the reserve state of known liquidity pools as a weighted
// multigraph: assets are nodes, pools are edges. Updates are applied as
// copy-on-write generations so that readers always observe one internally
// consistent state, never a mix of pre- and post-update reserves.
type Graph struct {
	mu        sync.Mutex // serializes Update and RegisterAsset
	gen       atomic.Pointer[generation]
	staleness time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// generation is one immutable version of the graph state. A new generation
// is built on every accepted batch and swapped in atomically.
type generation struct {
	seq       uint64
	assets    map[domain.AssetKey]domain.Asset
	pools     map[string]domain.Pool
	incidence map[domain.AssetKey][]string
	builtAt   time.Time
}

// New creates an empty graph. Pools not refreshed within the staleness
// window are flagged and excluded from quoting, but never deleted.
func New(staleness time.Duration, logger *slog.Logger) *Graph {
	g := &Graph{
		staleness: staleness,
		logger:    logger.With(slog.String("component", "graph")),
		now:       time.Now,
	}
	g.gen.Store(&generation{
		assets:    map[domain.AssetKey]domain.Asset{},
		pools:     map[string]domain.Pool{},
		incidence: map[domain.AssetKey][]string{},
	})
	return g
}

// RegisterAssets adds assets to the registry. Registration is idempotent;
// an already registered key keeps its original definition.
func (g *Graph) RegisterAssets(assets ...domain.Asset) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cur := g.gen.Load()
	next := cur.clone()
	for _, a := range assets {
		key := a.Key()
		if _, ok := next.assets[key]; ok {
			continue
		}
		next.assets[key] = a
	}
	next.seq = cur.seq + 1
	next.builtAt = g.now()
	g.gen.Store(next)
}

// Update applies a batch of reserve readings atomically. The batch is
// validated as a whole first: any malformed reading rejects the entire
// batch and the prior generation is retained. Readings older than the pool
// state already held are skipped individually with a warning, which does
// not fail the batch.
func (g *Graph) Update(batch []domain.PoolReading) error {
	if len(batch) == 0 {
		return fmt.Errorf("graph: empty batch: %w", domain.ErrInvalidBatch)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cur := g.gen.Load()
	for i, r := range batch {
		if err := validateReading(cur, r); err != nil {
			return fmt.Errorf("graph: reading %d (%s): %w", i, r.PoolID, err)
		}
	}

	next := cur.clone()
	applied := 0
	for _, r := range batch {
		if prev, ok := next.pools[r.PoolID]; ok && !r.Timestamp.After(prev.UpdatedAt) {
			g.logger.Warn("stale reading skipped",
				slog.String("pool", r.PoolID),
				slog.Time("reading_ts", r.Timestamp),
				slog.Time("state_ts", prev.UpdatedAt))
			continue
		}
		next.pools[r.PoolID] = domain.Pool{
			ID:        r.PoolID,
			Venue:     r.Venue,
			Asset0:    r.Asset0,
			Asset1:    r.Asset1,
			Reserve0:  new(big.Int).Set(r.Reserve0),
			Reserve1:  new(big.Int).Set(r.Reserve1),
			FeeBps:    r.FeeBps,
			UpdatedAt: r.Timestamp,
		}
		applied++
	}

	next.rebuildIncidence()
	next.seq = cur.seq + 1
	next.builtAt = g.now()
	g.gen.Store(next)

	g.logger.Debug("batch applied",
		slog.Uint64("generation", next.seq),
		slog.Int("readings", len(batch)),
		slog.Int("applied", applied),
		slog.Int("pools", len(next.pools)))
	return nil
}

// Snapshot returns an immutable view of the current generation. Staleness
// is evaluated once at snapshot time so a whole scan sees one consistent
// answer per pool.
func (g *Graph) Snapshot() *Snapshot {
	gen := g.gen.Load()
	now := g.now()

	stale := make(map[string]bool, len(gen.pools))
	for id, p := range gen.pools {
		if g.staleness > 0 && now.Sub(p.UpdatedAt) > g.staleness {
			stale[id] = true
		}
	}
	return &Snapshot{gen: gen, stale: stale, takenAt: now}
}

func validateReading(cur *generation, r domain.PoolReading) error {
	if r.PoolID == "" || r.Venue == "" {
		return domain.ErrInvalidBatch
	}
	if r.Asset0 == r.Asset1 {
		return fmt.Errorf("self-loop pool: %w", domain.ErrInvalidBatch)
	}
	if _, ok := cur.assets[r.Asset0]; !ok {
		return fmt.Errorf("%s: %w", r.Asset0, domain.ErrUnknownAsset)
	}
	if _, ok := cur.assets[r.Asset1]; !ok {
		return fmt.Errorf("%s: %w", r.Asset1, domain.ErrUnknownAsset)
	}
	if r.Reserve0 == nil || r.Reserve1 == nil || r.Reserve0.Sign() < 0 || r.Reserve1.Sign() < 0 {
		return fmt.Errorf("negative or missing reserves: %w", domain.ErrInvalidBatch)
	}
	if r.FeeBps >= bpsDenominator {
		return fmt.Errorf("fee %d bps: %w", r.FeeBps, domain.ErrInvalidBatch)
	}
	if prev, ok := cur.pools[r.PoolID]; ok {
		// A pool's endpoints and fee are fixed for its lifetime.
		if prev.Asset0 != r.Asset0 || prev.Asset1 != r.Asset1 || prev.FeeBps != r.FeeBps {
			return fmt.Errorf("pool identity changed: %w", domain.ErrInvalidBatch)
		}
	}
	return nil
}

func (gen *generation) clone() *generation {
	next := &generation{
		assets:    make(map[domain.AssetKey]domain.Asset, len(gen.assets)),
		pools:     make(map[string]domain.Pool, len(gen.pools)),
		incidence: gen.incidence,
	}
	for k, v := range gen.assets {
		next.assets[k] = v
	}
	for k, v := range gen.pools {
		next.pools[k] = v
	}
	return next
}

func (gen *generation) rebuildIncidence() {
	inc := make(map[domain.AssetKey][]string, len(gen.assets))
	for id, p := range gen.pools {
		inc[p.Asset0] = append(inc[p.Asset0], id)
		inc[p.Asset1] = append(inc[p.Asset1], id)
	}
	gen.incidence = inc
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

// Snapshot is a read-only view of one graph generation.
type Snapshot struct {
	gen     *generation
	stale   map[string]bool
	takenAt time.Time
}

// Generation returns the sequence number of the underlying generation.
func (s *Snapshot) Generation() uint64 { return s.gen.seq }

// TakenAt returns the time the snapshot was taken.
func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

// Asset looks up a registered asset.
func (s *Snapshot) Asset(key domain.AssetKey) (domain.Asset, bool) {
	a, ok := s.gen.assets[key]
	return a, ok
}

// Pool returns the pool by ID along with its staleness flag, regardless of
// staleness, so historical lookups remain possible.
func (s *Snapshot) Pool(id string) (domain.Pool, bool, error) {
	p, ok := s.gen.pools[id]
	if !ok {
		return domain.Pool{}, false, domain.ErrUnknownPool
	}
	return p, s.stale[id], nil
}

// Pools returns every known pool with its staleness flag.
func (s *Snapshot) Pools() ([]domain.Pool, map[string]bool) {
	out := make([]domain.Pool, 0, len(s.gen.pools))
	for _, p := range s.gen.pools {
		out = append(out, p)
	}
	flags := make(map[string]bool, len(s.stale))
	for id, v := range s.stale {
		flags[id] = v
	}
	return out, flags
}

// Neighbors returns the non-stale pools incident to the asset.
func (s *Snapshot) Neighbors(asset domain.AssetKey) []domain.Pool {
	ids := s.gen.incidence[asset]
	out := make([]domain.Pool, 0, len(ids))
	for _, id := range ids {
		if s.stale[id] {
			continue
		}
		out = append(out, s.gen.pools[id])
	}
	return out
}

// QuotePool swaps amountIn of assetIn through one specific pool. Stale
// pools do not quote.
func (s *Snapshot) QuotePool(poolID string, assetIn domain.AssetKey, amountIn *big.Int) (*big.Int, error) {
	p, ok := s.gen.pools[poolID]
	if !ok {
		return nil, fmt.Errorf("graph: quote %s: %w", poolID, domain.ErrUnknownPool)
	}
	if s.stale[poolID] {
		return nil, fmt.Errorf("graph: quote %s: %w", poolID, domain.ErrStaleData)
	}
	out, err := poolOut(p, assetIn, amountIn)
	if err != nil {
		return nil, fmt.Errorf("graph: quote %s: %w", poolID, err)
	}
	return out, nil
}

// Quote swaps amountIn of assetIn for assetOut using the best direct pool
// between the two assets. Fails with ErrInsufficientLiquidity when no
// non-stale pool connects them or reserves cannot cover the swap.
func (s *Snapshot) Quote(assetIn, assetOut domain.AssetKey, amountIn *big.Int) (*big.Int, error) {
	var best *big.Int
	for _, p := range s.Neighbors(assetIn) {
		if p.Other(assetIn) != assetOut {
			continue
		}
		out, err := poolOut(p, assetIn, amountIn)
		if err != nil {
			continue
		}
		if best == nil || out.Cmp(best) > 0 {
			best = out
		}
	}
	if best == nil {
		return nil, fmt.Errorf("graph: quote %s->%s: %w", assetIn, assetOut, domain.ErrInsufficientLiquidity)
	}
	return best, nil
}
