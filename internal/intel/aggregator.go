package intel

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ascheung/poolbot/internal/domain"
)

// Config configures the aggregator. Window bounds how far back news items
// and market quotes contribute; the confidence thresholds split the
// volume-weighted yes-probability into the three buckets; the regulatory
// threshold is the minimum count of matching items that raises the flag.
type Config struct {
	Window              time.Duration
	ConfidenceLowMax    float64
	ConfidenceHighMin   float64
	RegulatoryThreshold int
}

// Aggregator merges the news-sentiment and prediction-market streams into
// one snapshot per refresh. Merging is a pure function of the buffered
// stream state, so the same snapshot serves every opportunity evaluated
// within its validity window.
type Aggregator struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex // guards the stream buffers
	news   []domain.NewsItem
	quotes []domain.MarketQuote

	snap atomic.Pointer[domain.IntelligenceSnapshot]
}

// New creates an aggregator with empty stream buffers. Until the first
// Refresh completes, CurrentSnapshot returns the neutral default.
func New(cfg Config, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "intel")),
		now:    time.Now,
	}
}

// AddNews buffers classified news items for the next refresh.
func (a *Aggregator) AddNews(items ...domain.NewsItem) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.news = append(a.news, items...)
}

// AddQuotes buffers prediction-market quotes for the next refresh.
func (a *Aggregator) AddQuotes(quotes ...domain.MarketQuote) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.quotes = append(a.quotes, quotes...)
}

// CurrentSnapshot returns the latest completed snapshot. It never blocks:
// before the first refresh it returns the neutral default rather than
// failing, and repeated calls between refreshes return identical values.
func (a *Aggregator) CurrentSnapshot() domain.IntelligenceSnapshot {
	if s := a.snap.Load(); s != nil {
		return *s
	}
	return domain.NeutralSnapshot()
}

// Refresh prunes the stream buffers to the window and publishes a new
// snapshot. It runs on its own cadence, independent of scan ticks. When ctx
// is already cancelled, the buffers and the published snapshot are left
// untouched and the current snapshot is returned.
func (a *Aggregator) Refresh(ctx context.Context) domain.IntelligenceSnapshot {
	if ctx.Err() != nil {
		return a.CurrentSnapshot()
	}

	now := a.now()
	cutoff := now.Add(-a.cfg.Window)

	a.mu.Lock()
	a.news = pruneNews(a.news, cutoff)
	a.quotes = pruneQuotes(a.quotes, cutoff)
	news := append([]domain.NewsItem(nil), a.news...)
	quotes := append([]domain.MarketQuote(nil), a.quotes...)
	a.mu.Unlock()

	snap := a.merge(news, quotes, now)
	a.snap.Store(&snap)

	a.logger.Debug("snapshot refreshed",
		slog.Float64("sentiment", snap.Sentiment),
		slog.Float64("confidence", snap.Confidence),
		slog.String("confidence_label", string(snap.ConfidenceLabel)),
		slog.Int("risk_flags", len(snap.RiskFlags)),
		slog.Int("news", snap.NewsCount),
		slog.Int("markets", snap.MarketCount))
	return snap
}

// merge computes the snapshot from the pruned stream state.
func (a *Aggregator) merge(news []domain.NewsItem, quotes []domain.MarketQuote, now time.Time) domain.IntelligenceSnapshot {
	snap := domain.IntelligenceSnapshot{
		ConfidenceLabel: domain.ConfidenceLow,
		NewsCount:       len(news),
		MarketCount:     len(quotes),
		GeneratedAt:     now,
	}

	// Volume-weighted mean polarity, clipped to [-1, 1]. Items without a
	// weight count as weight 1 so a weightless feed still scores.
	var polaritySum, weightSum float64
	regulatory := 0
	for _, n := range news {
		w := n.Weight
		if w <= 0 {
			w = 1
		}
		polaritySum += n.Polarity * w
		weightSum += w
		if n.Regulatory {
			regulatory++
		}
	}
	if weightSum > 0 {
		snap.Sentiment = clip(polaritySum/weightSum, -1, 1)
	}

	// Volume-weighted mean of yes-probabilities, bucketed by thresholds.
	var probSum, volSum float64
	for _, q := range quotes {
		v := q.Volume
		if v <= 0 {
			v = 1
		}
		probSum += q.YesProbability * v
		volSum += v
	}
	if volSum > 0 {
		snap.Confidence = probSum / volSum
		snap.ConfidenceLabel = bucketConfidence(snap.Confidence, a.cfg.ConfidenceLowMax, a.cfg.ConfidenceHighMin)
	}

	snap.EvidenceCount = regulatory
	if a.cfg.RegulatoryThreshold > 0 && regulatory >= a.cfg.RegulatoryThreshold {
		snap.RiskFlags = []domain.RiskFlag{domain.RiskRegulatory}
	}
	return snap
}

func pruneNews(items []domain.NewsItem, cutoff time.Time) []domain.NewsItem {
	out := items[:0]
	for _, n := range items {
		if n.Timestamp.After(cutoff) {
			out = append(out, n)
		}
	}
	return out
}

func pruneQuotes(quotes []domain.MarketQuote, cutoff time.Time) []domain.MarketQuote {
	out := quotes[:0]
	for _, q := range quotes {
		if q.Timestamp.After(cutoff) {
			out = append(out, q)
		}
	}
	return out
}
