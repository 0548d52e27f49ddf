package scanner

import (
	"context"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ascheung/poolbot/internal/domain"
	"github.com/ascheung/poolbot/internal/graph"
)

var (
	wlsk = domain.Asset{Symbol: "WLSK", ChainID: 1, Address: common.BytesToAddress([]byte{0x01}), Decimals: 18}
	ice  = domain.Asset{Symbol: "ICE", ChainID: 1, Address: common.BytesToAddress([]byte{0x02}), Decimals: 18}
	slsk = domain.Asset{Symbol: "SLSK", ChainID: 1, Address: common.BytesToAddress([]byte{0x03}), Decimals: 18}
)

func reading(venue, id string, a0, a1 domain.AssetKey, r0, r1 int64) domain.PoolReading {
	return domain.PoolReading{
		Venue:     venue,
		PoolID:    id,
		Asset0:    a0,
		Asset1:    a1,
		Reserve0:  big.NewInt(r0),
		Reserve1:  big.NewInt(r1),
		FeeBps:    30,
		Timestamp: time.Now(),
	}
}

// triangleGraph builds the three-pool WLSK/ICE/SLSK cycle.
func triangleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New(0, slog.New(slog.DiscardHandler))
	g.RegisterAssets(wlsk, ice, slsk)
	require.NoError(t, g.Update([]domain.PoolReading{
		reading("venue-a", "wlsk-ice", wlsk.Key(), ice.Key(), 1_000_000, 800_000),
		reading("venue-a", "ice-slsk", ice.Key(), slsk.Key(), 500_000, 600_000),
		reading("venue-a", "slsk-wlsk", slsk.Key(), wlsk.Key(), 400_000, 450_000),
	}))
	return g
}

func newScanner(cfg Config) *Scanner {
	return New(cfg, slog.New(slog.DiscardHandler))
}

func TestScanFindsTriangularCycle(t *testing.T) {
	g := triangleGraph(t)
	s := newScanner(Config{
		BaseAssets:     []domain.AssetKey{wlsk.Key()},
		MaxHops:        3,
		MinProfitRatio: decimal.NewFromFloat(0.003),
		ProbeAmount:    big.NewInt(1_000),
	})

	opps, err := s.Scan(context.Background(), g.Snapshot())
	require.NoError(t, err)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, domain.OpportunityCycle, opp.Kind)
	assert.Equal(t, 3, opp.Hops)
	assert.Equal(t, []domain.AssetKey{wlsk.Key(), ice.Key(), slsk.Key(), wlsk.Key()}, opp.Path)
	assert.Equal(t, []string{"wlsk-ice", "ice-slsk", "slsk-wlsk"}, opp.PoolIDs)

	// Compounded rates net of fees give roughly +6% on the probe notional;
	// the losing reverse orientation must not be emitted.
	assert.True(t, opp.NetRatio.GreaterThan(decimal.NewFromFloat(0.003)))
	assert.Equal(t, 1, opp.AmountOut.Cmp(opp.AmountIn))
	assert.NotEmpty(t, opp.ID)
	assert.Equal(t, g.Snapshot().Generation(), opp.Generation)
}

func TestScanRespectsProfitFloor(t *testing.T) {
	g := triangleGraph(t)
	s := newScanner(Config{
		BaseAssets:     []domain.AssetKey{wlsk.Key()},
		MaxHops:        3,
		MinProfitRatio: decimal.NewFromFloat(0.50),
		ProbeAmount:    big.NewInt(1_000),
	})

	opps, err := s.Scan(context.Background(), g.Snapshot())
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestScanSettlementCostReducesNet(t *testing.T) {
	g := triangleGraph(t)

	base := newScanner(Config{
		BaseAssets:     []domain.AssetKey{wlsk.Key()},
		MaxHops:        3,
		MinProfitRatio: decimal.NewFromFloat(0.003),
		ProbeAmount:    big.NewInt(1_000),
	})
	costed := newScanner(Config{
		BaseAssets:     []domain.AssetKey{wlsk.Key()},
		MaxHops:        3,
		MinProfitRatio: decimal.NewFromFloat(0.003),
		ProbeAmount:    big.NewInt(1_000),
		SettlementCost: decimal.NewFromFloat(0.01),
	})

	free, err := base.Scan(context.Background(), g.Snapshot())
	require.NoError(t, err)
	require.Len(t, free, 1)

	paid, err := costed.Scan(context.Background(), g.Snapshot())
	require.NoError(t, err)
	require.Len(t, paid, 1)

	// Three hops at 1% each shave 3% off the net ratio but leave gross alone.
	assert.True(t, paid[0].GrossRatio.Equal(free[0].GrossRatio))
	diff := free[0].NetRatio.Sub(paid[0].NetRatio)
	assert.True(t, diff.Equal(decimal.NewFromFloat(0.03)))

	// A cost large enough to swallow the edge suppresses emission entirely.
	sunk := newScanner(Config{
		BaseAssets:     []domain.AssetKey{wlsk.Key()},
		MaxHops:        3,
		MinProfitRatio: decimal.NewFromFloat(0.003),
		ProbeAmount:    big.NewInt(1_000),
		SettlementCost: decimal.NewFromFloat(0.05),
	})
	none, err := sunk.Scan(context.Background(), g.Snapshot())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestScanCrossVenueTwoHop(t *testing.T) {
	g := graph.New(0, slog.New(slog.DiscardHandler))
	g.RegisterAssets(wlsk, ice)
	require.NoError(t, g.Update([]domain.PoolReading{
		reading("venue-a", "pair-a", wlsk.Key(), ice.Key(), 1_000_000, 800_000),
		reading("venue-b", "pair-b", wlsk.Key(), ice.Key(), 500_000, 600_000),
	}))

	s := newScanner(Config{
		BaseAssets:     []domain.AssetKey{wlsk.Key()},
		MaxHops:        2,
		MinProfitRatio: decimal.NewFromFloat(0.003),
		ProbeAmount:    big.NewInt(1_000),
	})

	opps, err := s.Scan(context.Background(), g.Snapshot())
	require.NoError(t, err)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, domain.OpportunityCrossVenue, opp.Kind)
	assert.Equal(t, 2, opp.Hops)
	assert.ElementsMatch(t, []string{"venue-a", "venue-b"}, opp.Venues)
}

func TestScanOrdersByNetRatioThenHops(t *testing.T) {
	g := graph.New(0, slog.New(slog.DiscardHandler))
	g.RegisterAssets(wlsk, ice, slsk)
	require.NoError(t, g.Update([]domain.PoolReading{
		// Mispriced cross-venue pair plus a profitable triangle.
		reading("venue-a", "pair-a", wlsk.Key(), ice.Key(), 1_000_000, 800_000),
		reading("venue-b", "pair-b", wlsk.Key(), ice.Key(), 500_000, 600_000),
		reading("venue-a", "ice-slsk", ice.Key(), slsk.Key(), 500_000, 600_000),
		reading("venue-a", "slsk-wlsk", slsk.Key(), wlsk.Key(), 400_000, 450_000),
	}))

	s := newScanner(Config{
		BaseAssets:     []domain.AssetKey{wlsk.Key()},
		MaxHops:        3,
		MinProfitRatio: decimal.NewFromFloat(0.003),
		ProbeAmount:    big.NewInt(1_000),
	})

	opps, err := s.Scan(context.Background(), g.Snapshot())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(opps), 2)

	for i := 1; i < len(opps); i++ {
		c := opps[i-1].NetRatio.Cmp(opps[i].NetRatio)
		assert.GreaterOrEqual(t, c, 0)
		if c == 0 {
			assert.LessOrEqual(t, opps[i-1].Hops, opps[i].Hops)
		}
	}
}

func TestScanUnknownBaseAsset(t *testing.T) {
	g := triangleGraph(t)
	ghost := domain.Asset{Symbol: "GHOST", ChainID: 1, Address: common.BytesToAddress([]byte{0x99})}
	s := newScanner(Config{
		BaseAssets:     []domain.AssetKey{ghost.Key()},
		MaxHops:        3,
		MinProfitRatio: decimal.NewFromFloat(0.003),
		ProbeAmount:    big.NewInt(1_000),
	})

	_, err := s.Scan(context.Background(), g.Snapshot())
	assert.ErrorIs(t, err, domain.ErrUnknownAsset)
}

func TestScanTickBudgetAbandonsWhole(t *testing.T) {
	g := triangleGraph(t)
	s := newScanner(Config{
		BaseAssets:     []domain.AssetKey{wlsk.Key()},
		MaxHops:        3,
		MinProfitRatio: decimal.NewFromFloat(0.003),
		ProbeAmount:    big.NewInt(1_000),
		TickBudget:     time.Nanosecond,
	})

	opps, err := s.Scan(context.Background(), g.Snapshot())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, opps)
}
