package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ascheung/poolbot/internal/domain"
)

// LedgerStats are running counters over the life of the process, surfaced
// through the status endpoint and periodic log lines.
type LedgerStats struct {
	Evaluated        int64           `json:"evaluated"`
	Executed         int64           `json:"executed"`
	Reduced          int64           `json:"reduced"`
	Skipped          int64           `json:"skipped"`
	SimulatedProfit  decimal.Decimal `json:"simulated_profit"`
	LastEvaluatedAt  time.Time       `json:"last_evaluated_at"`
}

// LedgerService owns the append-only opportunity ledger. Appends are
// serialized here so the store never sees concurrent writes; the ledger
// records and lists, it performs no analysis.
type LedgerService struct {
	store  domain.LedgerStore
	bus    domain.SignalBus
	audit  domain.AuditStore
	logger *slog.Logger

	mu    sync.Mutex // serializes appends and stats
	stats LedgerStats
}

// NewLedgerService creates a LedgerService. bus and audit may be nil in
// stripped-down deployments; recording still works without them.
func NewLedgerService(store domain.LedgerStore, bus domain.SignalBus, audit domain.AuditStore, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		store:  store,
		bus:    bus,
		audit:  audit,
		logger: logger.With(slog.String("component", "ledger")),
		stats:  LedgerStats{SimulatedProfit: decimal.Zero},
	}
}

// Record appends one evaluated opportunity with the snapshot and verdict
// that judged it, then publishes the verdict on the signal bus for the
// execution collaborator.
func (s *LedgerService) Record(ctx context.Context, opp domain.Opportunity, snap domain.IntelligenceSnapshot, verdict domain.Verdict) (domain.LedgerEntry, error) {
	entry := domain.LedgerEntry{
		ID:          uuid.NewString(),
		Opportunity: opp,
		Snapshot:    snap,
		Verdict:     verdict,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Append(ctx, entry); err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("ledger_service: append: %w", err)
	}
	s.count(entry)

	if s.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":      "verdict",
			"entry_id":   entry.ID,
			"opp_id":     opp.ID,
			"action":     verdict.Action,
			"multiplier": verdict.Multiplier,
			"net_ratio":  opp.NetRatio,
			"reason":     verdict.Reason,
			"kind":       opp.Kind,
			"path":       opp.Path,
			"pool_ids":   opp.PoolIDs,
			"venues":     opp.Venues,
			"amount_in":  opp.AmountIn.String(),
			"generation": opp.Generation,
		})
		if err := s.bus.Publish(ctx, "verdicts", evt); err != nil {
			s.logger.WarnContext(ctx, "publish verdict failed",
				slog.String("entry_id", entry.ID),
				slog.String("error", err.Error()))
		}
	}

	if s.audit != nil {
		if err := s.audit.Log(ctx, "opportunity_evaluated", map[string]any{
			"entry_id":  entry.ID,
			"opp_id":    opp.ID,
			"action":    string(verdict.Action),
			"reason":    verdict.Reason,
			"net_ratio": opp.NetRatio.String(),
			"hops":      opp.Hops,
		}); err != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("entry_id", entry.ID),
				slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "opportunity recorded",
		slog.String("entry_id", entry.ID),
		slog.String("action", string(verdict.Action)),
		slog.String("net_ratio", opp.NetRatio.String()),
		slog.Int("hops", opp.Hops))
	return entry, nil
}

// Recent returns up to n entries ordered by timestamp ascending.
func (s *LedgerService) Recent(ctx context.Context, n int) ([]domain.LedgerEntry, error) {
	entries, err := s.store.ListRecent(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("ledger_service: list recent: %w", err)
	}
	return entries, nil
}

// Since returns entries at or after the timestamp, ordered ascending.
func (s *LedgerService) Since(ctx context.Context, t time.Time) ([]domain.LedgerEntry, error) {
	entries, err := s.store.ListSince(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("ledger_service: list since: %w", err)
	}
	return entries, nil
}

// Count returns the total number of ledger entries.
func (s *LedgerService) Count(ctx context.Context) (int64, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger_service: count: %w", err)
	}
	return n, nil
}

// Stats returns a copy of the running counters.
func (s *LedgerService) Stats() LedgerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// count updates the running counters under s.mu.
func (s *LedgerService) count(entry domain.LedgerEntry) {
	s.stats.Evaluated++
	s.stats.LastEvaluatedAt = entry.CreatedAt
	switch entry.Verdict.Action {
	case domain.ActionExecute:
		s.stats.Executed++
	case domain.ActionExecuteReduced:
		s.stats.Reduced++
	case domain.ActionSkip:
		s.stats.Skipped++
	}
	if entry.Verdict.Executable() {
		// Simulated profit: net ratio scaled by the sizing multiplier.
		s.stats.SimulatedProfit = s.stats.SimulatedProfit.
			Add(entry.Opportunity.NetRatio.Mul(entry.Verdict.Multiplier))
	}
}
