package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ascheung/poolbot/internal/domain"
)

// LedgerReader defines the methods the ledger handler requires.
type LedgerReader interface {
	Recent(ctx context.Context, n int) ([]domain.LedgerEntry, error)
	Since(ctx context.Context, t time.Time) ([]domain.LedgerEntry, error)
	Count(ctx context.Context) (int64, error)
}

// LedgerHandler serves the opportunity ledger HTTP endpoints.
type LedgerHandler struct {
	ledger LedgerReader
	logger *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler with the given reader and logger.
func NewLedgerHandler(ledger LedgerReader, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, logger: logger}
}

// listLedgerResponse wraps the list responses.
type listLedgerResponse struct {
	Entries []domain.LedgerEntry `json:"entries"`
	Count   int                  `json:"count"`
}

// ListRecent returns the most recent ledger entries, oldest first.
// GET /api/ledger/recent?limit=50
func (h *LedgerHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	entries, err := h.ledger.Recent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list ledger failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list ledger entries")
		return
	}

	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, listLedgerResponse{Entries: entries, Count: len(entries)})
}

// ListSince returns entries recorded at or after the given timestamp.
// GET /api/ledger/since?t=2026-08-25T00:00:00Z
func (h *LedgerHandler) ListSince(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("t")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter t")
		return
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "t must be RFC 3339")
		return
	}

	entries, err := h.ledger.Since(r.Context(), t)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list ledger since failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list ledger entries")
		return
	}

	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, listLedgerResponse{Entries: entries, Count: len(entries)})
}

// GetCount returns the total number of ledger entries.
// GET /api/ledger/count
func (h *LedgerHandler) GetCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.ledger.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: ledger count failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count ledger entries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}
