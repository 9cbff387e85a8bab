package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/quorumlabs/adjudicator/internal/cache/redis"
	"github.com/quorumlabs/adjudicator/internal/server"
	"github.com/quorumlabs/adjudicator/internal/server/handler"
	"github.com/quorumlabs/adjudicator/internal/server/ws"
	"github.com/quorumlabs/adjudicator/internal/service"
)

// Per-IP request budget for the HTTP API.
const (
	apiRateLimit  = 120
	apiRateWindow = time.Minute
)

// ServerMode runs the HTTP API and the WebSocket event stream.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	return g.Wait()
}

// FinalizerMode runs only the background finalization sweeper.
func (a *App) FinalizerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting finalizer mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startFinalizer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the HTTP API, the WebSocket event stream, and the finalizer
// in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	if a.cfg.Finalizer.Enabled {
		a.startFinalizer(ctx, g, deps)
	}
	return g.Wait()
}

// startServer adds the HTTP server and the WebSocket hub to the errgroup.
// The server is shut down gracefully when the context is cancelled.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Channel:   redis.EventChannel,
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(a.logger),
		Status:      handler.NewStatusHandler(a.cfg.Mode, deps.Engine, deps.Treasury),
		Resolutions: handler.NewResolutionHandler(deps.Engine, a.logger),
		Stakes:      handler.NewStakeHandler(deps.Engine, a.logger),
		Evidence:    handler.NewEvidenceHandler(deps.Engine, a.logger),
		Votes:       handler.NewVoteHandler(deps.Engine, a.logger),
		Disputes:    handler.NewDisputeHandler(deps.Engine, a.logger),
		Claims:      handler.NewClaimHandler(deps.Engine, a.logger),
		Journal:     handler.NewJournalHandler(deps.Journal, deps.Archive, a.logger),
	}
	if deps.Evidence != nil {
		handlers.Archive = handler.NewEvidenceArchiveHandler(deps.Evidence, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimiter: deps.RateLimiter,
		RateLimit:   apiRateLimit,
		RateWindow:  apiRateWindow,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startFinalizer adds the finalization sweeper to the errgroup.
func (a *App) startFinalizer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	fin := service.NewFinalizer(
		deps.Engine,
		deps.LockManager,
		common.HexToAddress(a.cfg.Manager),
		a.cfg.Finalizer.PollInterval.Duration,
		a.logger,
	)
	g.Go(func() error {
		return fin.Run(ctx)
	})
}
