package policy

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ascheung/poolbot/internal/domain"
)

// Reason strings carried on verdicts.
const (
	ReasonBelowFloor     = "below profit floor"
	ReasonRegulatory     = "regulatory risk overrides profit"
	ReasonBullish        = "confirmed bullish signal"
	ReasonNeutral        = "neutral intelligence, profit-driven execution"
	ReasonMultiplierGone = "multiplier clamped below economic floor"
)

// Config configures the decision table. All thresholds come from
// configuration, never hardcoded at call sites.
type Config struct {
	MinProfitRatio   decimal.Decimal
	BullishThreshold float64
	ReductionFactor  decimal.Decimal
	BoostFactor      decimal.Decimal
	MinMultiplier    decimal.Decimal
	MaxMultiplier    decimal.Decimal
}

// Policy maps (opportunity, snapshot) pairs to verdicts through an ordered
// decision table, first match wins. The table is deterministic and total.
type Policy struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a policy.
func New(cfg Config, logger *slog.Logger) *Policy {
	return &Policy{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "policy")),
	}
}

// Evaluate applies the decision table:
//
//  1. net profit ratio below the floor          -> SKIP
//  2. risk flags present                        -> EXECUTE_REDUCED, 1 - reduction
//  3. bullish sentiment with high confidence    -> EXECUTE, 1 + boost
//  4. otherwise                                 -> EXECUTE, multiplier 1
//
// The multiplier is clamped to [MinMultiplier, MaxMultiplier]; a multiplier
// that falls below the floor degrades the verdict to SKIP.
func (p *Policy) Evaluate(opp domain.Opportunity, snap domain.IntelligenceSnapshot) domain.Verdict {
	v := domain.Verdict{
		NetRatio:        opp.NetRatio,
		Sentiment:       snap.Sentiment,
		ConfidenceLabel: snap.ConfidenceLabel,
		RiskFlags:       snap.RiskFlags,
	}

	one := decimal.NewFromInt(1)

	switch {
	case opp.NetRatio.LessThan(p.cfg.MinProfitRatio):
		v.Action = domain.ActionSkip
		v.Multiplier = decimal.Zero
		v.Reason = ReasonBelowFloor
		return v

	case len(snap.RiskFlags) > 0:
		v.Action = domain.ActionExecuteReduced
		v.Multiplier = one.Sub(p.cfg.ReductionFactor)
		v.Reason = ReasonRegulatory

	case snap.Sentiment >= p.cfg.BullishThreshold && snap.ConfidenceLabel == domain.ConfidenceHigh:
		v.Action = domain.ActionExecute
		v.Multiplier = one.Add(p.cfg.BoostFactor)
		v.Reason = ReasonBullish

	default:
		v.Action = domain.ActionExecute
		v.Multiplier = one
		v.Reason = ReasonNeutral
	}

	return p.clamp(v)
}

// clamp caps the multiplier at the ceiling and degrades verdicts whose
// multiplier falls below the economic floor to SKIP.
func (p *Policy) clamp(v domain.Verdict) domain.Verdict {
	if v.Multiplier.GreaterThan(p.cfg.MaxMultiplier) {
		v.Multiplier = p.cfg.MaxMultiplier
	}
	if v.Multiplier.LessThan(p.cfg.MinMultiplier) {
		p.logger.Debug("verdict degraded to skip",
			slog.String("reason", v.Reason),
			slog.String("multiplier", v.Multiplier.String()))
		v.Action = domain.ActionSkip
		v.Multiplier = decimal.Zero
		v.Reason = ReasonMultiplierGone
	}
	return v
}
