package notify

import (
	"context"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ascheung/poolbot/internal/domain"
)

type captureSender struct {
	titles   []string
	messages []string
}

func (c *captureSender) Send(ctx context.Context, title, message string) error {
	c.titles = append(c.titles, title)
	c.messages = append(c.messages, message)
	return nil
}

func (c *captureSender) Name() string { return "capture" }

func testAlerter(events []string) (*Alerter, *captureSender) {
	sender := &captureSender{}
	logger := slog.New(slog.DiscardHandler)
	n := NewNotifier([]Sender{sender}, events, logger)
	return NewAlerter(n, logger), sender
}

func executableEntry() domain.LedgerEntry {
	return domain.LedgerEntry{
		ID: "entry-1",
		Opportunity: domain.Opportunity{
			ID:       "opp-1",
			Path:     []domain.AssetKey{"wlsk", "ice", "wlsk"},
			NetRatio: decimal.RequireFromString("0.063"),
		},
		Verdict: domain.Verdict{
			Action:     domain.ActionExecute,
			Multiplier: decimal.NewFromInt(1),
			Reason:     "neutral intelligence, profit-driven execution",
		},
	}
}

func TestVerdictRecordedNotifiesExecutable(t *testing.T) {
	a, sender := testAlerter(nil)

	a.VerdictRecorded(context.Background(), executableEntry())

	require.Len(t, sender.titles, 1)
	assert.Contains(t, sender.titles[0], "EXECUTE")
	assert.Contains(t, sender.messages[0], "wlsk -> ice -> wlsk")
	assert.Contains(t, sender.messages[0], "0.063")
}

func TestVerdictRecordedSilentOnSkip(t *testing.T) {
	a, sender := testAlerter(nil)

	entry := executableEntry()
	entry.Verdict.Action = domain.ActionSkip

	a.VerdictRecorded(context.Background(), entry)

	assert.Empty(t, sender.titles)
}

func TestSnapshotRefreshedAlertsOnlyOnTransition(t *testing.T) {
	a, sender := testAlerter(nil)
	ctx := context.Background()

	flagged := domain.IntelligenceSnapshot{RiskFlags: []domain.RiskFlag{domain.RiskRegulatory}}
	clean := domain.IntelligenceSnapshot{}

	a.SnapshotRefreshed(ctx, clean)
	assert.Empty(t, sender.titles)

	a.SnapshotRefreshed(ctx, flagged)
	require.Len(t, sender.titles, 1)
	assert.Contains(t, sender.messages[0], "raised: regulatory_risk")

	// Same flag set again: no new alert.
	a.SnapshotRefreshed(ctx, flagged)
	assert.Len(t, sender.titles, 1)

	a.SnapshotRefreshed(ctx, clean)
	require.Len(t, sender.titles, 2)
	assert.Contains(t, sender.messages[1], "cleared: regulatory_risk")
}

func TestNotifierEventFilter(t *testing.T) {
	a, sender := testAlerter([]string{EventRiskFlagChanged})

	// verdict_executed is not in the allowed list.
	a.VerdictRecorded(context.Background(), executableEntry())
	assert.Empty(t, sender.titles)

	a.SnapshotRefreshed(context.Background(), domain.IntelligenceSnapshot{
		RiskFlags: []domain.RiskFlag{domain.RiskRegulatory},
	})
	assert.Len(t, sender.titles, 1)
}
