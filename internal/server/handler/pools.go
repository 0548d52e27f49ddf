package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ascheung/poolbot/internal/domain"
)

// PoolsHandler serves the mirrored pool state endpoints.
type PoolsHandler struct {
	pools  domain.PoolCache
	logger *slog.Logger
}

// NewPoolsHandler creates a PoolsHandler backed by the given cache.
func NewPoolsHandler(pools domain.PoolCache, logger *slog.Logger) *PoolsHandler {
	return &PoolsHandler{pools: pools, logger: logger}
}

// poolResponse is the wire shape for one pool. Reserves are decimal strings
// since they routinely exceed JSON number precision.
type poolResponse struct {
	ID        string `json:"id"`
	Venue     string `json:"venue"`
	AssetA    string `json:"asset_a"`
	AssetB    string `json:"asset_b"`
	ReserveA  string `json:"reserve_a"`
	ReserveB  string `json:"reserve_b"`
	FeeBps    uint32 `json:"fee_bps"`
	UpdatedAt string `json:"updated_at"`
}

func toPoolResponse(p domain.Pool) poolResponse {
	resp := poolResponse{
		ID:        p.ID,
		Venue:     p.Venue,
		AssetA:    string(p.Asset0),
		AssetB:    string(p.Asset1),
		FeeBps:    p.FeeBps,
		UpdatedAt: p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if p.Reserve0 != nil {
		resp.ReserveA = p.Reserve0.String()
	}
	if p.Reserve1 != nil {
		resp.ReserveB = p.Reserve1.String()
	}
	return resp
}

// ListPools returns every pool currently mirrored in the cache.
// GET /api/pools
func (h *PoolsHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.pools.ListPools(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list pools failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list pools")
		return
	}

	resp := make([]poolResponse, 0, len(pools))
	for _, p := range pools {
		resp = append(resp, toPoolResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"pools": resp, "count": len(resp)})
}

// GetPool returns one pool by ID.
// GET /api/pools/{id}
func (h *PoolsHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing pool id")
		return
	}

	pool, err := h.pools.GetPool(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "pool not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get pool failed",
			slog.String("pool_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get pool")
		return
	}
	writeJSON(w, http.StatusOK, toPoolResponse(pool))
}
