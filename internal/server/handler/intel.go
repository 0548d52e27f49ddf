package handler

import (
	"net/http"

	"github.com/ascheung/poolbot/internal/domain"
)

// SnapshotSource provides the latest intelligence snapshot.
type SnapshotSource interface {
	CurrentSnapshot() domain.IntelligenceSnapshot
}

// IntelHandler serves the intelligence snapshot endpoint.
type IntelHandler struct {
	source SnapshotSource
}

// NewIntelHandler creates an IntelHandler reading from the given source.
func NewIntelHandler(source SnapshotSource) *IntelHandler {
	return &IntelHandler{source: source}
}

// GetSnapshot returns the most recent completed intelligence snapshot. Before
// the first refresh this is the neutral default.
// GET /api/intel/snapshot
func (h *IntelHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.CurrentSnapshot())
}
