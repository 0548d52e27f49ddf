package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the decision policy's output class for one opportunity.
type Action string

const (
	ActionExecute        Action = "EXECUTE"
	ActionExecuteReduced Action = "EXECUTE_REDUCED"
	ActionSkip           Action = "SKIP"
)

// Verdict is the policy's decision for one opportunity, carrying the
// reasoning trace that produced it. Immutable once emitted.
type Verdict struct {
	Action          Action          `json:"action"`
	Multiplier      decimal.Decimal `json:"multiplier"`
	Reason          string          `json:"reason"`
	NetRatio        decimal.Decimal `json:"net_ratio"`
	Sentiment       float64         `json:"sentiment"`
	ConfidenceLabel ConfidenceLabel `json:"confidence_label"`
	RiskFlags       []RiskFlag      `json:"risk_flags"`
}

// Executable reports whether the verdict calls for any execution at all.
func (v Verdict) Executable() bool {
	return v.Action == ActionExecute || v.Action == ActionExecuteReduced
}

// LedgerEntry ties an evaluated opportunity to the snapshot and verdict that
// judged it. Append-only, never mutated or deleted.
type LedgerEntry struct {
	ID          string               `json:"id"`
	Opportunity Opportunity          `json:"opportunity"`
	Snapshot    IntelligenceSnapshot `json:"snapshot"`
	Verdict     Verdict              `json:"verdict"`
	CreatedAt   time.Time            `json:"created_at"`
}
