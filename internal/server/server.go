// Package server exposes the resolution protocol over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/quorumlabs/adjudicator/internal/domain"
	"github.com/quorumlabs/adjudicator/internal/server/handler"
	"github.com/quorumlabs/adjudicator/internal/server/middleware"
	"github.com/quorumlabs/adjudicator/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimiter, when non-nil, throttles each client IP to RateLimit
	// requests per RateWindow.
	RateLimiter domain.RateLimiter
	RateLimit   int
	RateWindow  time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health      *handler.HealthHandler
	Status      *handler.StatusHandler
	Resolutions *handler.ResolutionHandler
	Stakes      *handler.StakeHandler
	Evidence    *handler.EvidenceHandler
	Votes       *handler.VoteHandler
	Disputes    *handler.DisputeHandler
	Claims      *handler.ClaimHandler
	Journal     *handler.JournalHandler

	// Archive is optional; evidence document routes are skipped when nil.
	Archive *handler.EvidenceArchiveHandler
}

// Server is the headless HTTP + WebSocket API for the protocol.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer registers all routes on a ServeMux, wraps it in the middleware
// chain, and returns the server ready to Start.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Operator surfaces.
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	mux.HandleFunc("GET /api/metrics", handlers.Status.GetMetrics)

	// Proposal lifecycle.
	mux.HandleFunc("POST /api/resolutions/{market}/commit", handlers.Resolutions.Commit)
	mux.HandleFunc("POST /api/resolutions/{market}/propose", handlers.Resolutions.Propose)
	mux.HandleFunc("POST /api/resolutions/{market}/commits/{committer}/slash", handlers.Resolutions.SlashCommit)
	mux.HandleFunc("GET /api/resolutions/{market}", handlers.Resolutions.Get)
	mux.HandleFunc("POST /api/resolutions/{market}/finalize", handlers.Resolutions.Finalize)

	// Staking.
	mux.HandleFunc("POST /api/resolutions/{market}/support", handlers.Stakes.Support)
	mux.HandleFunc("POST /api/resolutions/{market}/oppose", handlers.Stakes.Oppose)
	mux.HandleFunc("GET /api/resolutions/{market}/stakes/{addr}", handlers.Stakes.Get)

	// Evidence challenges.
	mux.HandleFunc("POST /api/resolutions/{market}/challenges", handlers.Evidence.Challenge)
	mux.HandleFunc("POST /api/resolutions/{market}/challenges/{index}/resolve", handlers.Evidence.Resolve)

	// Delegate voting.
	mux.HandleFunc("POST /api/resolutions/{market}/votes/commit", handlers.Votes.Commit)
	mux.HandleFunc("POST /api/resolutions/{market}/votes/reveal", handlers.Votes.Reveal)
	mux.HandleFunc("POST /api/resolutions/{market}/votes/{delegate}/slash", handlers.Votes.Slash)

	// Disputes.
	mux.HandleFunc("GET /api/resolutions/{market}/disputes", handlers.Disputes.List)
	mux.HandleFunc("GET /api/resolutions/{market}/disputes/bond", handlers.Disputes.Bond)
	mux.HandleFunc("POST /api/resolutions/{market}/disputes", handlers.Disputes.File)
	mux.HandleFunc("POST /api/resolutions/{market}/disputes/{index}/support", handlers.Disputes.Support)
	mux.HandleFunc("POST /api/resolutions/{market}/disputes/{index}/endorse", handlers.Disputes.Endorse)

	// Claims.
	mux.HandleFunc("POST /api/resolutions/{market}/claims/resolution", handlers.Claims.Resolution)
	mux.HandleFunc("POST /api/resolutions/{market}/claims/opposition", handlers.Claims.Opposition)
	mux.HandleFunc("POST /api/resolutions/{market}/disputes/{index}/claim", handlers.Claims.Dispute)
	mux.HandleFunc("POST /api/resolutions/{market}/disputes/{index}/reclaim", handlers.Claims.Reclaim)

	// Evidence document store, registered only when object storage is wired.
	if handlers.Archive != nil {
		mux.HandleFunc("PUT /api/evidence/{hash}", handlers.Archive.Upload)
		mux.HandleFunc("GET /api/evidence/{hash}", handlers.Archive.Fetch)
	}

	// Audit surfaces.
	mux.HandleFunc("GET /api/journal", handlers.Journal.List)
	mux.HandleFunc("GET /api/journal/{market}", handlers.Journal.ListByMarket)
	mux.HandleFunc("GET /api/archive/resolutions", handlers.Journal.ListFinalized)

	// WebSocket event stream.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if cfg.RateLimiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
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

// Start listens for HTTP requests. It blocks until the server errors or is
// shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
