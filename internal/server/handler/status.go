package handler

import (
	"net/http"
	"time"

	"github.com/ascheung/poolbot/internal/service"
)

// StatusHandler serves the engine status for operator dashboards.
type StatusHandler struct {
	mode      string
	dryRun    bool
	startedAt time.Time

	stats      func() service.LedgerStats
	generation func() uint64
}

// NewStatusHandler creates a StatusHandler. stats and generation are read on
// every request; either may be nil.
func NewStatusHandler(mode string, dryRun bool, startedAt time.Time, stats func() service.LedgerStats, generation func() uint64) *StatusHandler {
	return &StatusHandler{
		mode:       mode,
		dryRun:     dryRun,
		startedAt:  startedAt,
		stats:      stats,
		generation: generation,
	}
}

// GetStatus responds with the current mode, uptime, graph generation, and
// running ledger counters.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"mode":           h.mode,
		"dry_run":        h.dryRun,
		"started_at":     h.startedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if h.generation != nil {
		body["graph_generation"] = h.generation()
	}
	if h.stats != nil {
		body["stats"] = h.stats()
	}
	writeJSON(w, http.StatusOK, body)
}
