package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ascheung/poolbot/internal/domain"
	"github.com/ascheung/poolbot/internal/graph"
)

// Config configures the cycle scanner. MaxHops bounds the walk length,
// MinProfitRatio is the emission floor on the net profit ratio, and
// ProbeAmount is the notional pushed through each candidate walk in base
// asset units.
type Config struct {
	BaseAssets     []domain.AssetKey
	MaxHops        int
	MinProfitRatio decimal.Decimal
	ProbeAmount    *big.Int
	TickBudget     time.Duration

	// SettlementCost is the per-hop settlement cost estimate in ratio
	// terms; PerVenueSettlementCost overrides it for specific venues.
	SettlementCost         decimal.Decimal
	PerVenueSettlementCost map[string]decimal.Decimal
}

// Scanner enumerates candidate arbitrage cycles over one graph snapshot per
// tick: a bounded depth-first walk from each base asset, closing only when
// the walk returns to its start. Cross-venue candidates are the two-hop
// case with the pools on different venues.
type Scanner struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a scanner.
func New(cfg Config, logger *slog.Logger) *Scanner {
	return &Scanner{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "scanner")),
		now:    time.Now,
	}
}

// Scan walks the snapshot and returns candidates whose net profit ratio
// exceeds the configured floor, ordered by net ratio descending then hop
// count ascending. A tick that exceeds the time budget is abandoned whole:
// partial results are discarded and context.DeadlineExceeded is returned.
func (s *Scanner) Scan(ctx context.Context, snap *graph.Snapshot) ([]domain.Opportunity, error) {
	if s.cfg.TickBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TickBudget)
		defer cancel()
	}

	var out []domain.Opportunity
	for _, base := range s.cfg.BaseAssets {
		found, err := s.scanFrom(ctx, snap, base)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				s.logger.Warn("scan tick abandoned, budget exceeded",
					slog.Uint64("generation", snap.Generation()),
					slog.Duration("budget", s.cfg.TickBudget))
			}
			return nil, err
		}
		out = append(out, found...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].NetRatio.Cmp(out[j].NetRatio); c != 0 {
			return c > 0
		}
		return out[i].Hops < out[j].Hops
	})
	return out, nil
}

// walkState carries one in-progress depth-first walk.
type walkState struct {
	path    []domain.AssetKey
	poolIDs []string
	venues  []string
	amount  *big.Int
}

func (s *Scanner) scanFrom(ctx context.Context, snap *graph.Snapshot, base domain.AssetKey) ([]domain.Opportunity, error) {
	if _, ok := snap.Asset(base); !ok {
		return nil, fmt.Errorf("scanner: base asset %s: %w", base, domain.ErrUnknownAsset)
	}

	var found []domain.Opportunity
	state := walkState{
		path:   []domain.AssetKey{base},
		amount: new(big.Int).Set(s.cfg.ProbeAmount),
	}
	if err := s.walk(ctx, snap, base, state, &found); err != nil {
		return nil, err
	}
	return found, nil
}

func (s *Scanner) walk(ctx context.Context, snap *graph.Snapshot, cur domain.AssetKey, st walkState, found *[]domain.Opportunity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	base := st.path[0]
	hops := len(st.poolIDs)

	for _, p := range snap.Neighbors(cur) {
		if usedPool(st.poolIDs, p.ID) {
			continue
		}
		next := p.Other(cur)

		if next == base {
			if hops < 1 {
				continue
			}
			out, err := snap.QuotePool(p.ID, cur, st.amount)
			if err != nil {
				continue // illiquid edge, prune silently
			}
			nst := st.extend(p, next, out)
			if opp, ok := s.close(snap, nst); ok {
				*found = append(*found, opp)
			}
			continue
		}

		if hops+1 >= s.cfg.MaxHops || visitedAsset(st.path, next) {
			continue
		}
		out, err := snap.QuotePool(p.ID, cur, st.amount)
		if err != nil {
			continue
		}
		if err := s.walk(ctx, snap, next, st.extend(p, next, out), found); err != nil {
			return err
		}
	}
	return nil
}

// close turns a completed walk into an Opportunity when its net ratio
// clears the floor.
func (s *Scanner) close(snap *graph.Snapshot, st walkState) (domain.Opportunity, bool) {
	in := decimal.NewFromBigInt(s.cfg.ProbeAmount, 0)
	out := decimal.NewFromBigInt(st.amount, 0)

	gross := out.Div(in).Sub(decimal.NewFromInt(1))
	cost := s.settlementCost(st.venues)
	net := gross.Sub(cost)

	if net.Cmp(s.cfg.MinProfitRatio) <= 0 {
		return domain.Opportunity{}, false
	}

	kind := domain.OpportunityCycle
	if len(st.poolIDs) == 2 && st.venues[0] != st.venues[1] {
		kind = domain.OpportunityCrossVenue
	}

	return domain.Opportunity{
		ID:             uuid.NewString(),
		Kind:           kind,
		Path:           append([]domain.AssetKey(nil), st.path...),
		PoolIDs:        append([]string(nil), st.poolIDs...),
		Venues:         append([]string(nil), st.venues...),
		Hops:           len(st.poolIDs),
		AmountIn:       new(big.Int).Set(s.cfg.ProbeAmount),
		AmountOut:      new(big.Int).Set(st.amount),
		GrossRatio:     gross,
		NetRatio:       net,
		SettlementCost: cost,
		Generation:     snap.Generation(),
		DetectedAt:     s.now(),
	}, true
}

// settlementCost sums the per-hop cost estimate across the walk's venues.
func (s *Scanner) settlementCost(venues []string) decimal.Decimal {
	total := decimal.Zero
	for _, v := range venues {
		if c, ok := s.cfg.PerVenueSettlementCost[v]; ok {
			total = total.Add(c)
			continue
		}
		total = total.Add(s.cfg.SettlementCost)
	}
	return total
}

func (st walkState) extend(p domain.Pool, next domain.AssetKey, amount *big.Int) walkState {
	return walkState{
		path:    append(append([]domain.AssetKey(nil), st.path...), next),
		poolIDs: append(append([]string(nil), st.poolIDs...), p.ID),
		venues:  append(append([]string(nil), st.venues...), p.Venue),
		amount:  amount,
	}
}

func usedPool(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func visitedAsset(path []domain.AssetKey, a domain.AssetKey) bool {
	for _, v := range path {
		if v == a {
			return true
		}
	}
	return false
}
