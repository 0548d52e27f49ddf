package intel

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ascheung/poolbot/internal/domain"
)

func newAggregator() *Aggregator {
	return New(Config{
		Window:              time.Hour,
		ConfidenceLowMax:    0.40,
		ConfidenceHighMin:   0.70,
		RegulatoryThreshold: 3,
	}, slog.New(slog.DiscardHandler))
}

func TestCurrentSnapshotNeutralDefault(t *testing.T) {
	a := newAggregator()

	snap := a.CurrentSnapshot()
	assert.Zero(t, snap.Sentiment)
	assert.Equal(t, domain.ConfidenceLow, snap.ConfidenceLabel)
	assert.Empty(t, snap.RiskFlags)
}

func TestCurrentSnapshotIdempotentBetweenRefreshes(t *testing.T) {
	a := newAggregator()
	now := time.Now()

	a.AddNews(domain.NewsItem{Timestamp: now, Polarity: 0.5, Weight: 2})
	a.AddQuotes(domain.MarketQuote{MarketID: "m1", YesProbability: 0.8, Volume: 100, Timestamp: now})
	a.Refresh(context.Background())

	first := a.CurrentSnapshot()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, a.CurrentSnapshot())
	}

	// Buffering more items must not change the published snapshot until the
	// next refresh.
	a.AddNews(domain.NewsItem{Timestamp: now, Polarity: -1, Weight: 100})
	assert.Equal(t, first, a.CurrentSnapshot())

	a.Refresh(context.Background())
	assert.NotEqual(t, first, a.CurrentSnapshot())
}

func TestRefreshCancelledContextLeavesSnapshotUntouched(t *testing.T) {
	a := newAggregator()
	now := time.Now()

	a.AddNews(domain.NewsItem{Timestamp: now, Polarity: 0.5, Weight: 2})
	first := a.Refresh(context.Background())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	// A shutdown-time refresh neither rebuilds nor replaces the snapshot.
	a.AddNews(domain.NewsItem{Timestamp: now, Polarity: -1, Weight: 100})
	got := a.Refresh(cancelled)
	assert.Equal(t, first, got)
	assert.Equal(t, first, a.CurrentSnapshot())

	// And before any refresh, it degrades to the neutral default.
	b := newAggregator()
	assert.Equal(t, domain.NeutralSnapshot(), b.Refresh(cancelled))
}

func TestSentimentVolumeWeightedAndClipped(t *testing.T) {
	a := newAggregator()
	now := time.Now()

	a.AddNews(
		domain.NewsItem{Timestamp: now, Polarity: 1, Weight: 3},
		domain.NewsItem{Timestamp: now, Polarity: -1, Weight: 1},
	)
	snap := a.Refresh(context.Background())
	assert.InDelta(t, 0.5, snap.Sentiment, 1e-9)

	// Weightless items count as weight 1.
	b := newAggregator()
	b.AddNews(
		domain.NewsItem{Timestamp: now, Polarity: 0.4},
		domain.NewsItem{Timestamp: now, Polarity: 0.8},
	)
	snap = b.Refresh(context.Background())
	assert.InDelta(t, 0.6, snap.Sentiment, 1e-9)
}

func TestConfidenceBuckets(t *testing.T) {
	cases := []struct {
		prob float64
		want domain.ConfidenceLabel
	}{
		{0.10, domain.ConfidenceLow},
		{0.39, domain.ConfidenceLow},
		{0.40, domain.ConfidenceMedium},
		{0.70, domain.ConfidenceMedium},
		{0.71, domain.ConfidenceHigh},
		{0.95, domain.ConfidenceHigh},
	}
	for _, tc := range cases {
		a := newAggregator()
		a.AddQuotes(domain.MarketQuote{MarketID: "m", YesProbability: tc.prob, Volume: 10, Timestamp: time.Now()})
		snap := a.Refresh(context.Background())
		assert.Equal(t, tc.want, snap.ConfidenceLabel, "prob %.2f", tc.prob)
	}
}

func TestConfidenceVolumeWeighted(t *testing.T) {
	a := newAggregator()
	now := time.Now()

	a.AddQuotes(
		domain.MarketQuote{MarketID: "m1", YesProbability: 0.9, Volume: 900, Timestamp: now},
		domain.MarketQuote{MarketID: "m2", YesProbability: 0.1, Volume: 100, Timestamp: now},
	)
	snap := a.Refresh(context.Background())
	assert.InDelta(t, 0.82, snap.Confidence, 1e-9)
	assert.Equal(t, domain.ConfidenceHigh, snap.ConfidenceLabel)
}

func TestRegulatoryFlagThreshold(t *testing.T) {
	a := newAggregator()
	now := time.Now()

	a.AddNews(
		domain.NewsItem{Timestamp: now, Polarity: -0.5, Regulatory: true},
		domain.NewsItem{Timestamp: now, Polarity: -0.3, Regulatory: true},
	)
	snap := a.Refresh(context.Background())
	assert.Empty(t, snap.RiskFlags)
	assert.Equal(t, 2, snap.EvidenceCount)

	a.AddNews(domain.NewsItem{Timestamp: now, Polarity: -0.7, Regulatory: true})
	snap = a.Refresh(context.Background())
	require.Len(t, snap.RiskFlags, 1)
	assert.True(t, snap.HasFlag(domain.RiskRegulatory))
	assert.Equal(t, 3, snap.EvidenceCount)
}

func TestWindowPrunesOldItems(t *testing.T) {
	a := newAggregator()
	now := time.Now()

	a.AddNews(
		domain.NewsItem{Timestamp: now.Add(-2 * time.Hour), Polarity: -1, Weight: 100},
		domain.NewsItem{Timestamp: now, Polarity: 0.5, Weight: 1},
	)
	a.AddQuotes(
		domain.MarketQuote{MarketID: "old", YesProbability: 0.9, Volume: 1000, Timestamp: now.Add(-2 * time.Hour)},
		domain.MarketQuote{MarketID: "new", YesProbability: 0.5, Volume: 10, Timestamp: now},
	)

	snap := a.Refresh(context.Background())
	assert.InDelta(t, 0.5, snap.Sentiment, 1e-9)
	assert.InDelta(t, 0.5, snap.Confidence, 1e-9)
	assert.Equal(t, 1, snap.NewsCount)
	assert.Equal(t, 1, snap.MarketCount)
}

func TestKeywordClassifier(t *testing.T) {
	c := DefaultKeywordClassifier()

	pol, reg := c.Classify("Exchange announces major partnership and listing", nil)
	assert.Greater(t, pol, 0.0)
	assert.False(t, reg)

	pol, reg = c.Classify("Protocol hack triggers selloff", nil)
	assert.Less(t, pol, 0.0)
	assert.False(t, reg)

	pol, reg = c.Classify("SEC enforcement action against venue", []string{"regulation"})
	assert.True(t, reg)
	assert.LessOrEqual(t, pol, 1.0)

	// Stacked keywords clip at the bounds.
	pol, _ = c.Classify("hack exploit rug depeg selloff bearish", nil)
	assert.Equal(t, -1.0, pol)
}
