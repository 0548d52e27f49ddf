// Package server exposes the operator HTTP + WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ascheung/poolbot/internal/domain"
	"github.com/ascheung/poolbot/internal/server/handler"
	"github.com/ascheung/poolbot/internal/server/middleware"
	"github.com/ascheung/poolbot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// Rate limiting. Applied only when Limiter is non-nil.
	Limiter         domain.RateLimiter
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Optional handlers may be nil; their routes are simply not registered.
type Handlers struct {
	Health  *handler.HealthHandler
	Status  *handler.StatusHandler
	Ledger  *handler.LedgerHandler
	Intel   *handler.IntelHandler
	Pools   *handler.PoolsHandler
	Audit   *handler.AuditHandler
	Archive *handler.ArchiveHandler
}

// Server is the headless HTTP + WebSocket API server for the decision engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (rate limiting, auth, logging, CORS) and attaches
// the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Engine status.
	if handlers.Status != nil {
		mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	}

	// Opportunity ledger.
	if handlers.Ledger != nil {
		mux.HandleFunc("GET /api/ledger/recent", handlers.Ledger.ListRecent)
		mux.HandleFunc("GET /api/ledger/since", handlers.Ledger.ListSince)
		mux.HandleFunc("GET /api/ledger/count", handlers.Ledger.GetCount)
	}

	// Intelligence snapshot.
	if handlers.Intel != nil {
		mux.HandleFunc("GET /api/intel/snapshot", handlers.Intel.GetSnapshot)
	}

	// Mirrored pool state.
	if handlers.Pools != nil {
		mux.HandleFunc("GET /api/pools", handlers.Pools.ListPools)
		mux.HandleFunc("GET /api/pools/{id}", handlers.Pools.GetPool)
	}

	// Audit log.
	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.List)
	}

	// Cold-storage archive browser.
	if handlers.Archive != nil {
		mux.HandleFunc("GET /api/archive", handlers.Archive.ListObjects)
		mux.HandleFunc("GET /api/archive/object", handlers.Archive.GetObject)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply rate limiting when a limiter is configured.
	if cfg.Limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, window)(h)
	}

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
