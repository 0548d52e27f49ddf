package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ascheung/poolbot/internal/domain"
)

// memLedgerStore is an in-memory LedgerStore double.
type memLedgerStore struct {
	mu      sync.Mutex
	entries []domain.LedgerEntry
}

func (m *memLedgerStore) Append(_ context.Context, entry domain.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memLedgerStore) ListRecent(_ context.Context, limit int) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.LedgerEntry(nil), m.entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memLedgerStore) ListSince(_ context.Context, since time.Time) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range m.entries {
		if !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memLedgerStore) ListBefore(_ context.Context, before time.Time) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range m.entries {
		if e.CreatedAt.Before(before) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memLedgerStore) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.entries)), nil
}

var _ domain.LedgerStore = (*memLedgerStore)(nil)

func testOpp(net float64) domain.Opportunity {
	return domain.Opportunity{
		ID:       "opp-" + decimal.NewFromFloat(net).String(),
		Kind:     domain.OpportunityCycle,
		Hops:     3,
		NetRatio: decimal.NewFromFloat(net),
	}
}

func TestRecordRoundTrip(t *testing.T) {
	store := &memLedgerStore{}
	svc := NewLedgerService(store, nil, nil, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	verdict := domain.Verdict{
		Action:     domain.ActionExecute,
		Multiplier: decimal.NewFromInt(1),
		Reason:     "neutral intelligence, profit-driven execution",
		NetRatio:   decimal.NewFromFloat(0.05),
	}
	snap := domain.NeutralSnapshot()

	entry, err := svc.Record(ctx, testOpp(0.05), snap, verdict)
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)

	// Every recorded verdict is retrievable unchanged via Recent and Since.
	recent, err := svc.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, entry, recent[0])

	since, err := svc.Since(ctx, entry.CreatedAt.Add(-time.Second))
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, entry, since[0])

	none, err := svc.Since(ctx, entry.CreatedAt.Add(time.Second))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecentOrderedAscending(t *testing.T) {
	store := &memLedgerStore{}
	svc := NewLedgerService(store, nil, nil, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Record(ctx, testOpp(0.01*float64(i+1)), domain.NeutralSnapshot(), domain.Verdict{
			Action:     domain.ActionSkip,
			Multiplier: decimal.Zero,
			Reason:     "below profit floor",
		})
		require.NoError(t, err)
	}

	entries, err := svc.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].CreatedAt.Before(entries[i-1].CreatedAt))
	}

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
}

func TestStatsCounters(t *testing.T) {
	store := &memLedgerStore{}
	svc := NewLedgerService(store, nil, nil, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	record := func(action domain.Action, net float64, mult float64) {
		_, err := svc.Record(ctx, testOpp(net), domain.NeutralSnapshot(), domain.Verdict{
			Action:     action,
			Multiplier: decimal.NewFromFloat(mult),
			Reason:     "test",
		})
		require.NoError(t, err)
	}

	record(domain.ActionExecute, 0.05, 1)
	record(domain.ActionExecuteReduced, 0.10, 0.4)
	record(domain.ActionSkip, 0.001, 0)

	stats := svc.Stats()
	assert.EqualValues(t, 3, stats.Evaluated)
	assert.EqualValues(t, 1, stats.Executed)
	assert.EqualValues(t, 1, stats.Reduced)
	assert.EqualValues(t, 1, stats.Skipped)
	// 0.05*1 + 0.10*0.4 = 0.09; the skip contributes nothing.
	assert.True(t, stats.SimulatedProfit.Equal(decimal.NewFromFloat(0.09)))
	assert.False(t, stats.LastEvaluatedAt.IsZero())
}
