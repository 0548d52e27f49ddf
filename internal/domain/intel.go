package domain

import "time"

// ConfidenceLabel buckets prediction-market confidence.
type ConfidenceLabel string

const (
	ConfidenceLow    ConfidenceLabel = "low_confidence"
	ConfidenceMedium ConfidenceLabel = "medium_confidence"
	ConfidenceHigh   ConfidenceLabel = "high_confidence"
)

// RiskFlag names a condition detected by the intelligence aggregator.
type RiskFlag string

const (
	RiskRegulatory RiskFlag = "regulatory_risk"
)

// NewsItem is a classified news item delivered by the sentiment feed.
// Polarity is in [-1, 1]; Weight is the feed's volume/importance weight.
type NewsItem struct {
	Timestamp  time.Time `json:"timestamp"`
	Polarity   float64   `json:"polarity"`
	Weight     float64   `json:"weight"`
	Topics     []string  `json:"topic_tags"`
	Regulatory bool      `json:"is_regulatory"`
}

// MarketQuote is a prediction-market observation delivered by the
// prediction-market feed.
type MarketQuote struct {
	MarketID       string    `json:"market_id"`
	YesProbability float64   `json:"yes_probability"`
	Volume         float64   `json:"volume"`
	RelevanceTags  []string  `json:"relevance_tags"`
	Timestamp      time.Time `json:"timestamp"`
}

// IntelligenceSnapshot is the merged intelligence state at one refresh.
// Snapshots are immutable; the decision policy always reads the most recent
// completed one.
type IntelligenceSnapshot struct {
	Sentiment       float64         `json:"sentiment"`
	Confidence      float64         `json:"confidence"`
	ConfidenceLabel ConfidenceLabel `json:"confidence_label"`
	RiskFlags       []RiskFlag      `json:"risk_flags"`
	EvidenceCount   int             `json:"evidence_count"`
	NewsCount       int             `json:"news_count"`
	MarketCount     int             `json:"market_count"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

// NeutralSnapshot is returned before the first aggregation completes.
func NeutralSnapshot() IntelligenceSnapshot {
	return IntelligenceSnapshot{
		Sentiment:       0,
		Confidence:      0,
		ConfidenceLabel: ConfidenceLow,
	}
}

// HasFlag reports whether the snapshot carries the given risk flag.
func (s IntelligenceSnapshot) HasFlag(flag RiskFlag) bool {
	for _, f := range s.RiskFlags {
		if f == flag {
			return true
		}
	}
	return false
}
