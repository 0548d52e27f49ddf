package policy

import (
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ascheung/poolbot/internal/domain"
)

func defaultConfig() Config {
	return Config{
		MinProfitRatio:   decimal.NewFromFloat(0.003),
		BullishThreshold: 0.3,
		ReductionFactor:  decimal.NewFromFloat(0.6),
		BoostFactor:      decimal.NewFromFloat(0.25),
		MinMultiplier:    decimal.NewFromFloat(0.1),
		MaxMultiplier:    decimal.NewFromFloat(2.0),
	}
}

func newPolicy(cfg Config) *Policy {
	return New(cfg, slog.New(slog.DiscardHandler))
}

func opp(netRatio float64) domain.Opportunity {
	return domain.Opportunity{ID: "opp-1", NetRatio: decimal.NewFromFloat(netRatio)}
}

func riskySnap() domain.IntelligenceSnapshot {
	return domain.IntelligenceSnapshot{
		Sentiment:       0.9,
		ConfidenceLabel: domain.ConfidenceHigh,
		RiskFlags:       []domain.RiskFlag{domain.RiskRegulatory},
	}
}

func TestBelowFloorSkipsRegardlessOfIntel(t *testing.T) {
	p := newPolicy(defaultConfig())

	snaps := []domain.IntelligenceSnapshot{
		domain.NeutralSnapshot(),
		riskySnap(),
		{Sentiment: 0.9, ConfidenceLabel: domain.ConfidenceHigh},
	}
	for _, snap := range snaps {
		v := p.Evaluate(opp(0.001), snap)
		assert.Equal(t, domain.ActionSkip, v.Action)
		assert.Equal(t, ReasonBelowFloor, v.Reason)
		assert.True(t, v.Multiplier.IsZero())
	}
}

func TestRiskFlagDominatesBullishSignal(t *testing.T) {
	p := newPolicy(defaultConfig())

	// Arbitrarily high profit with a strong bullish signal: the risk flag
	// still wins and the multiplier never exceeds 1 - reductionFactor.
	v := p.Evaluate(opp(10.0), riskySnap())
	assert.Equal(t, domain.ActionExecuteReduced, v.Action)
	assert.Equal(t, ReasonRegulatory, v.Reason)
	assert.True(t, v.Multiplier.Equal(decimal.NewFromFloat(0.4)))
}

func TestBullishHighConfidenceBoosts(t *testing.T) {
	p := newPolicy(defaultConfig())

	snap := domain.IntelligenceSnapshot{Sentiment: 0.5, ConfidenceLabel: domain.ConfidenceHigh}
	v := p.Evaluate(opp(0.05), snap)
	assert.Equal(t, domain.ActionExecute, v.Action)
	assert.Equal(t, ReasonBullish, v.Reason)
	assert.True(t, v.Multiplier.Equal(decimal.NewFromFloat(1.25)))
}

func TestBullishNeedsBothSentimentAndConfidence(t *testing.T) {
	p := newPolicy(defaultConfig())

	// High sentiment, medium confidence: falls through to neutral.
	v := p.Evaluate(opp(0.05), domain.IntelligenceSnapshot{Sentiment: 0.8, ConfidenceLabel: domain.ConfidenceMedium})
	assert.Equal(t, ReasonNeutral, v.Reason)
	assert.True(t, v.Multiplier.Equal(decimal.NewFromInt(1)))

	// High confidence, weak sentiment: same.
	v = p.Evaluate(opp(0.05), domain.IntelligenceSnapshot{Sentiment: 0.2, ConfidenceLabel: domain.ConfidenceHigh})
	assert.Equal(t, ReasonNeutral, v.Reason)
}

func TestNeutralDefaultExecutesAtOne(t *testing.T) {
	p := newPolicy(defaultConfig())

	v := p.Evaluate(opp(0.05), domain.NeutralSnapshot())
	assert.Equal(t, domain.ActionExecute, v.Action)
	assert.Equal(t, ReasonNeutral, v.Reason)
	assert.True(t, v.Multiplier.Equal(decimal.NewFromInt(1)))
}

func TestBoostClampedToCeiling(t *testing.T) {
	cfg := defaultConfig()
	cfg.BoostFactor = decimal.NewFromFloat(5.0)
	p := newPolicy(cfg)

	snap := domain.IntelligenceSnapshot{Sentiment: 0.5, ConfidenceLabel: domain.ConfidenceHigh}
	v := p.Evaluate(opp(0.05), snap)
	assert.Equal(t, domain.ActionExecute, v.Action)
	assert.True(t, v.Multiplier.Equal(cfg.MaxMultiplier))
}

func TestReducedBelowFloorDegradesToSkip(t *testing.T) {
	cfg := defaultConfig()
	cfg.ReductionFactor = decimal.NewFromFloat(0.95) // 0.05 < MinMultiplier 0.1
	p := newPolicy(cfg)

	v := p.Evaluate(opp(0.05), riskySnap())
	assert.Equal(t, domain.ActionSkip, v.Action)
	assert.Equal(t, ReasonMultiplierGone, v.Reason)
	assert.True(t, v.Multiplier.IsZero())
}

func TestVerdictCarriesReasoningTrace(t *testing.T) {
	p := newPolicy(defaultConfig())

	snap := riskySnap()
	v := p.Evaluate(opp(0.05), snap)
	assert.True(t, v.NetRatio.Equal(decimal.NewFromFloat(0.05)))
	assert.Equal(t, snap.Sentiment, v.Sentiment)
	assert.Equal(t, snap.ConfidenceLabel, v.ConfidenceLabel)
	assert.Equal(t, snap.RiskFlags, v.RiskFlags)
}

func TestTableIsTotal(t *testing.T) {
	p := newPolicy(defaultConfig())

	ratios := []float64{-0.5, 0, 0.001, 0.003, 0.05, 10}
	sentiments := []float64{-1, 0, 0.3, 1}
	labels := []domain.ConfidenceLabel{domain.ConfidenceLow, domain.ConfidenceMedium, domain.ConfidenceHigh}
	flags := [][]domain.RiskFlag{nil, {domain.RiskRegulatory}}

	for _, r := range ratios {
		for _, s := range sentiments {
			for _, l := range labels {
				for _, f := range flags {
					v := p.Evaluate(opp(r), domain.IntelligenceSnapshot{
						Sentiment: s, ConfidenceLabel: l, RiskFlags: f,
					})
					assert.Contains(t, []domain.Action{
						domain.ActionExecute, domain.ActionExecuteReduced, domain.ActionSkip,
					}, v.Action)
					assert.NotEmpty(t, v.Reason)
				}
			}
		}
	}
}
