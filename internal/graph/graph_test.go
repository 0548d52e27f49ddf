package graph

import (
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ascheung/poolbot/internal/domain"
)

func testAsset(symbol string, addr byte) domain.Asset {
	return domain.Asset{
		Symbol:   symbol,
		ChainID:  1,
		Address:  common.BytesToAddress([]byte{addr}),
		Decimals: 18,
	}
}

func testGraph(t *testing.T, staleness time.Duration) (*Graph, map[string]domain.AssetKey) {
	t.Helper()
	g := New(staleness, slog.New(slog.DiscardHandler))

	wlsk := testAsset("WLSK", 0x01)
	ice := testAsset("ICE", 0x02)
	slsk := testAsset("SLSK", 0x03)
	g.RegisterAssets(wlsk, ice, slsk)

	return g, map[string]domain.AssetKey{
		"WLSK": wlsk.Key(),
		"ICE":  ice.Key(),
		"SLSK": slsk.Key(),
	}
}

func reading(id string, a0, a1 domain.AssetKey, r0, r1 int64, ts time.Time) domain.PoolReading {
	return domain.PoolReading{
		Venue:     "venue-a",
		PoolID:    id,
		Asset0:    a0,
		Asset1:    a1,
		Reserve0:  big.NewInt(r0),
		Reserve1:  big.NewInt(r1),
		FeeBps:    30,
		Timestamp: ts,
	}
}

func TestUpdateAndQuoteConsistency(t *testing.T) {
	g, keys := testGraph(t, 0)
	now := time.Now()

	err := g.Update([]domain.PoolReading{
		reading("p1", keys["WLSK"], keys["ICE"], 1_000_000, 800_000, now),
	})
	require.NoError(t, err)

	snap := g.Snapshot()
	out, err := snap.Quote(keys["WLSK"], keys["ICE"], big.NewInt(1_000))
	require.NoError(t, err)

	want, err := amountOut(big.NewInt(1_000), big.NewInt(1_000_000), big.NewInt(800_000), 30)
	require.NoError(t, err)
	assert.Zero(t, out.Cmp(want))
}

func TestUpdateRejectsUnknownAsset(t *testing.T) {
	g, keys := testGraph(t, 0)
	now := time.Now()

	require.NoError(t, g.Update([]domain.PoolReading{
		reading("p1", keys["WLSK"], keys["ICE"], 1_000_000, 800_000, now),
	}))
	before := g.Snapshot()

	// One good reading and one referencing an unregistered asset: the whole
	// batch must be rejected and the prior state retained.
	unknown := testAsset("GHOST", 0x99).Key()
	err := g.Update([]domain.PoolReading{
		reading("p1", keys["WLSK"], keys["ICE"], 900_000, 850_000, now.Add(time.Second)),
		reading("p2", keys["ICE"], unknown, 500_000, 600_000, now.Add(time.Second)),
	})
	require.ErrorIs(t, err, domain.ErrUnknownAsset)

	after := g.Snapshot()
	assert.Equal(t, before.Generation(), after.Generation())

	p, _, err := after.Pool("p1")
	require.NoError(t, err)
	assert.Zero(t, p.Reserve0.Cmp(big.NewInt(1_000_000)))

	_, _, err = after.Pool("p2")
	assert.ErrorIs(t, err, domain.ErrUnknownPool)

	out, err := after.Quote(keys["WLSK"], keys["ICE"], big.NewInt(1_000))
	require.NoError(t, err)
	assert.Equal(t, 1, out.Sign())
}

func TestUpdateRejectsMalformedReadings(t *testing.T) {
	g, keys := testGraph(t, 0)
	now := time.Now()

	cases := []struct {
		name string
		r    domain.PoolReading
	}{
		{"missing pool id", domain.PoolReading{
			Venue: "venue-a", Asset0: keys["WLSK"], Asset1: keys["ICE"],
			Reserve0: big.NewInt(1), Reserve1: big.NewInt(1), Timestamp: now,
		}},
		{"negative reserve", reading("p1", keys["WLSK"], keys["ICE"], -1, 100, now)},
		{"self loop", reading("p1", keys["WLSK"], keys["WLSK"], 100, 100, now)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := g.Update([]domain.PoolReading{tc.r})
			assert.ErrorIs(t, err, domain.ErrInvalidBatch)
		})
	}

	err := g.Update(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidBatch)
}

func TestUpdateSkipsStaleReadingWithoutFailingBatch(t *testing.T) {
	g, keys := testGraph(t, 0)
	now := time.Now()

	require.NoError(t, g.Update([]domain.PoolReading{
		reading("p1", keys["WLSK"], keys["ICE"], 1_000_000, 800_000, now),
	}))

	// An older reading for p1 is skipped; the fresh p2 reading still applies.
	err := g.Update([]domain.PoolReading{
		reading("p1", keys["WLSK"], keys["ICE"], 1, 1, now.Add(-time.Minute)),
		reading("p2", keys["ICE"], keys["SLSK"], 500_000, 600_000, now),
	})
	require.NoError(t, err)

	snap := g.Snapshot()
	p1, _, err := snap.Pool("p1")
	require.NoError(t, err)
	assert.Zero(t, p1.Reserve0.Cmp(big.NewInt(1_000_000)))

	p2, _, err := snap.Pool("p2")
	require.NoError(t, err)
	assert.Zero(t, p2.Reserve1.Cmp(big.NewInt(600_000)))
}

func TestStalePoolExcludedNotDeleted(t *testing.T) {
	g, keys := testGraph(t, time.Minute)
	old := time.Now().Add(-2 * time.Minute)

	require.NoError(t, g.Update([]domain.PoolReading{
		reading("p1", keys["WLSK"], keys["ICE"], 1_000_000, 800_000, old),
	}))

	snap := g.Snapshot()

	// Still visible for historical lookup, flagged stale.
	_, stale, err := snap.Pool("p1")
	require.NoError(t, err)
	assert.True(t, stale)

	// Excluded from traversal and quoting.
	assert.Empty(t, snap.Neighbors(keys["WLSK"]))

	_, err = snap.QuotePool("p1", keys["WLSK"], big.NewInt(1_000))
	assert.ErrorIs(t, err, domain.ErrStaleData)

	_, err = snap.Quote(keys["WLSK"], keys["ICE"], big.NewInt(1_000))
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}

func TestSnapshotIsolation(t *testing.T) {
	g, keys := testGraph(t, 0)
	now := time.Now()

	require.NoError(t, g.Update([]domain.PoolReading{
		reading("p1", keys["WLSK"], keys["ICE"], 1_000_000, 800_000, now),
	}))
	snap := g.Snapshot()

	require.NoError(t, g.Update([]domain.PoolReading{
		reading("p1", keys["WLSK"], keys["ICE"], 2_000_000, 700_000, now.Add(time.Second)),
	}))

	// The earlier snapshot keeps serving its own generation.
	p, _, err := snap.Pool("p1")
	require.NoError(t, err)
	assert.Zero(t, p.Reserve0.Cmp(big.NewInt(1_000_000)))

	fresh := g.Snapshot()
	assert.Greater(t, fresh.Generation(), snap.Generation())
}

func TestNeighborsMultigraph(t *testing.T) {
	g, keys := testGraph(t, 0)
	now := time.Now()

	batch := []domain.PoolReading{
		reading("p1", keys["WLSK"], keys["ICE"], 1_000_000, 800_000, now),
		reading("p2", keys["WLSK"], keys["ICE"], 900_000, 750_000, now),
		reading("p3", keys["WLSK"], keys["SLSK"], 400_000, 450_000, now),
	}
	batch[1].Venue = "venue-b"
	require.NoError(t, g.Update(batch))

	snap := g.Snapshot()
	assert.Len(t, snap.Neighbors(keys["WLSK"]), 3)
	assert.Len(t, snap.Neighbors(keys["ICE"]), 2)
	assert.Len(t, snap.Neighbors(keys["SLSK"]), 1)

	// Quote picks the best of the two parallel WLSK/ICE pools.
	best, err := snap.Quote(keys["WLSK"], keys["ICE"], big.NewInt(10_000))
	require.NoError(t, err)
	viaP1, err := snap.QuotePool("p1", keys["WLSK"], big.NewInt(10_000))
	require.NoError(t, err)
	viaP2, err := snap.QuotePool("p2", keys["WLSK"], big.NewInt(10_000))
	require.NoError(t, err)
	if viaP1.Cmp(viaP2) >= 0 {
		assert.Zero(t, best.Cmp(viaP1))
	} else {
		assert.Zero(t, best.Cmp(viaP2))
	}
}
