// Package executor consumes verdicts from the signal bus and hands
// executable ones off to the downstream execution collaborator via a durable
// stream. It performs no trading itself.
package executor

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ascheung/poolbot/internal/domain"
)

const (
	// verdictsChannel is the pub/sub channel the ledger service publishes to.
	verdictsChannel = "verdicts"

	// executionStream is the durable stream read by the execution collaborator.
	executionStream = "executions"

	// handoffLimitKey is the shared rate-limit key for stream hand-offs.
	handoffLimitKey = "executor:handoff"
)

// VerdictEvent mirrors the JSON published on the verdicts channel.
type VerdictEvent struct {
	Event      string          `json:"event"`
	EntryID    string          `json:"entry_id"`
	OppID      string          `json:"opp_id"`
	Action     domain.Action   `json:"action"`
	Multiplier decimal.Decimal `json:"multiplier"`
	NetRatio   decimal.Decimal `json:"net_ratio"`
	Reason     string          `json:"reason"`
	Kind       string          `json:"kind"`
	Path       []string        `json:"path"`
	PoolIDs    []string        `json:"pool_ids"`
	Venues     []string        `json:"venues"`
	AmountIn   string          `json:"amount_in"`
	Generation uint64          `json:"generation"`
}

// ExecutionOrder is the hand-off record appended to the execution stream.
type ExecutionOrder struct {
	OrderID    string          `json:"order_id"`
	EntryID    string          `json:"entry_id"`
	OppID      string          `json:"opp_id"`
	Action     domain.Action   `json:"action"`
	Multiplier decimal.Decimal `json:"multiplier"`
	NetRatio   decimal.Decimal `json:"net_ratio"`
	Kind       string          `json:"kind"`
	Path       []string        `json:"path"`
	PoolIDs    []string        `json:"pool_ids"`
	Venues     []string        `json:"venues"`
	AmountIn   string          `json:"amount_in"`
	Generation uint64          `json:"generation"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Executor reads verdict events from the signal bus, applies deduplication,
// and appends executable verdicts to the execution stream. In dry-run mode
// orders are logged but never appended.
type Executor struct {
	bus     domain.SignalBus
	dedup   *Dedup
	dryRun  bool
	limiter domain.RateLimiter
	logger  *slog.Logger

	cleanupInterval time.Duration
}

// NewExecutor creates an Executor reading from the given bus.
func NewExecutor(bus domain.SignalBus, dryRun bool, logger *slog.Logger) *Executor {
	return &Executor{
		bus:             bus,
		dedup:           NewDedup(2 * time.Minute),
		dryRun:          dryRun,
		logger:          logger.With(slog.String("component", "executor")),
		cleanupInterval: 30 * time.Second,
	}
}

// WithRateLimiter paces hand-offs through the shared sliding-window limiter
// so bursts of simultaneous opportunities reach the execution collaborator at
// a bounded rate. Must be called before Run.
func (e *Executor) WithRateLimiter(limiter domain.RateLimiter) *Executor {
	e.limiter = limiter
	return e
}

// Run starts the executor's main loop. It processes verdicts until the
// context is cancelled.
func (e *Executor) Run(ctx context.Context) error {
	ch, err := e.bus.Subscribe(ctx, verdictsChannel)
	if err != nil {
		return err
	}

	e.logger.Info("executor started", slog.Bool("dry_run", e.dryRun))
	defer e.logger.Info("executor stopped")

	cleanupTicker := time.NewTicker(e.cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case data, ok := <-ch:
			if !ok {
				return nil
			}
			e.process(ctx, data)

		case <-cleanupTicker.C:
			e.dedup.Cleanup()
		}
	}
}

// process handles a single verdict event through dedup and hand-off.
func (e *Executor) process(ctx context.Context, data []byte) {
	var ev VerdictEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		e.logger.Debug("verdict event unparseable",
			slog.Int("payload_len", len(data)),
			slog.String("error", err.Error()))
		return
	}
	if ev.Event != "verdict" || ev.OppID == "" {
		return
	}

	log := e.logger.With(
		slog.String("opp_id", ev.OppID),
		slog.String("action", string(ev.Action)),
	)

	// 1. Only executable verdicts leave the process.
	if ev.Action != domain.ActionExecute && ev.Action != domain.ActionExecuteReduced {
		log.Debug("verdict not executable, dropping")
		return
	}

	// 2. Deduplication. The same opportunity can be re-detected on
	// consecutive scan ticks; only the first verdict is handed off.
	if e.dedup.IsDuplicate(ev.OppID) {
		log.Debug("verdict deduplicated, skipping")
		return
	}

	order := ExecutionOrder{
		OrderID:    uuid.NewString(),
		EntryID:    ev.EntryID,
		OppID:      ev.OppID,
		Action:     ev.Action,
		Multiplier: ev.Multiplier,
		NetRatio:   ev.NetRatio,
		Kind:       ev.Kind,
		Path:       ev.Path,
		PoolIDs:    ev.PoolIDs,
		Venues:     ev.Venues,
		AmountIn:   ev.AmountIn,
		Generation: ev.Generation,
		CreatedAt:  time.Now().UTC(),
	}

	if e.dryRun {
		log.Info("dry run, order not handed off",
			slog.String("order_id", order.OrderID),
			slog.String("net_ratio", order.NetRatio.String()),
			slog.String("multiplier", order.Multiplier.String()))
		return
	}

	// 3. Pace hand-offs when a limiter is wired. A cancelled wait means the
	// process is shutting down; the verdict is dropped, not queued.
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, handoffLimitKey); err != nil {
			log.Warn("hand-off pacing interrupted",
				slog.String("order_id", order.OrderID),
				slog.String("error", err.Error()))
			return
		}
	}

	payload, err := json.Marshal(order)
	if err != nil {
		log.Error("marshal execution order failed", slog.String("error", err.Error()))
		return
	}
	if err := e.bus.StreamAppend(ctx, executionStream, payload); err != nil {
		log.Error("execution hand-off failed",
			slog.String("order_id", order.OrderID),
			slog.String("error", err.Error()))
		return
	}

	log.Info("order handed off",
		slog.String("order_id", order.OrderID),
		slog.String("net_ratio", order.NetRatio.String()),
		slog.String("multiplier", order.Multiplier.String()))
}

// SetDedupTTL replaces the dedup instance with a new one using the given TTL.
// Must be called before Run.
func (e *Executor) SetDedupTTL(ttl time.Duration) {
	e.dedup = NewDedup(ttl)
}
