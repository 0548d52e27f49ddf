package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ascheung/poolbot/internal/domain"
)

// Event types understood by the notifier filter.
const (
	EventVerdictExecuted = "verdict_executed"
	EventRiskFlagChanged = "risk_flag_changed"
	EventFeedDown        = "feed_down"
	EventError           = "error"
)

// Alerter translates engine events into operator notifications. It tracks
// the last seen risk flag set so flag transitions alert once instead of on
// every snapshot refresh.
type Alerter struct {
	notifier *Notifier
	logger   *slog.Logger

	mu        sync.Mutex
	lastFlags map[domain.RiskFlag]bool
}

// NewAlerter creates an Alerter delivering through the given notifier.
func NewAlerter(notifier *Notifier, logger *slog.Logger) *Alerter {
	return &Alerter{
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "alerter")),
		lastFlags: make(map[domain.RiskFlag]bool),
	}
}

// VerdictRecorded notifies when an opportunity is cleared for execution.
// Skips are silent.
func (a *Alerter) VerdictRecorded(ctx context.Context, entry domain.LedgerEntry) {
	if !entry.Verdict.Executable() {
		return
	}

	path := make([]string, len(entry.Opportunity.Path))
	for i, k := range entry.Opportunity.Path {
		path[i] = string(k)
	}

	title := fmt.Sprintf("Opportunity %s", entry.Verdict.Action)
	message := fmt.Sprintf(
		"path: %s\nnet ratio: %s\nmultiplier: %s\nreason: %s",
		strings.Join(path, " -> "),
		entry.Opportunity.NetRatio.String(),
		entry.Verdict.Multiplier.String(),
		entry.Verdict.Reason,
	)

	if err := a.notifier.Notify(ctx, EventVerdictExecuted, title, message); err != nil {
		a.logger.WarnContext(ctx, "verdict notification failed",
			slog.String("entry_id", entry.ID),
			slog.String("error", err.Error()))
	}
}

// SnapshotRefreshed notifies when the risk flag set changes between
// consecutive snapshots.
func (a *Alerter) SnapshotRefreshed(ctx context.Context, snap domain.IntelligenceSnapshot) {
	current := make(map[domain.RiskFlag]bool, len(snap.RiskFlags))
	for _, f := range snap.RiskFlags {
		current[f] = true
	}

	a.mu.Lock()
	var raised, cleared []string
	for f := range current {
		if !a.lastFlags[f] {
			raised = append(raised, string(f))
		}
	}
	for f := range a.lastFlags {
		if !current[f] {
			cleared = append(cleared, string(f))
		}
	}
	a.lastFlags = current
	a.mu.Unlock()

	if len(raised) == 0 && len(cleared) == 0 {
		return
	}

	var parts []string
	if len(raised) > 0 {
		parts = append(parts, "raised: "+strings.Join(raised, ", "))
	}
	if len(cleared) > 0 {
		parts = append(parts, "cleared: "+strings.Join(cleared, ", "))
	}

	if err := a.notifier.Notify(ctx, EventRiskFlagChanged, "Risk flags changed", strings.Join(parts, "\n")); err != nil {
		a.logger.WarnContext(ctx, "risk flag notification failed",
			slog.String("error", err.Error()))
	}
}

// FeedDown notifies that a feed connection was lost.
func (a *Alerter) FeedDown(ctx context.Context, feed string, cause error) {
	message := fmt.Sprintf("feed: %s\ncause: %v", feed, cause)
	if err := a.notifier.Notify(ctx, EventFeedDown, "Feed disconnected", message); err != nil {
		a.logger.WarnContext(ctx, "feed notification failed",
			slog.String("feed", feed),
			slog.String("error", err.Error()))
	}
}
