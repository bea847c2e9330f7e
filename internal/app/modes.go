package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/cryptowallet/internal/pipeline"
	"github.com/alanyoungcy/cryptowallet/internal/server"
	"github.com/alanyoungcy/cryptowallet/internal/server/handler"
)

// shutdownTimeout bounds how long in-flight HTTP requests may take to finish.
const shutdownTimeout = 5 * time.Second

// ServerMode serves the HTTP API without running any background pipeline.
// POST /refresh answers 503 in this mode.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, nil)
	return ignoreCanceled(g.Wait())
}

// RefreshMode runs the price refresher and the archiver without the HTTP API.
func (a *App) RefreshMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting refresh mode")

	if deps.Refresher == nil && deps.Archiver == nil {
		return errors.New("app: refresh mode needs refresh.enabled or archive.enabled")
	}
	return ignoreCanceled(a.newOrchestrator(deps).Run(ctx))
}

// FullMode runs the HTTP API and the background pipelines in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	orch := a.newOrchestrator(deps)
	g.Go(func() error {
		return orch.Run(ctx)
	})

	var trigger handler.RefreshTrigger
	if deps.Refresher != nil {
		trigger = deps.Refresher
	}
	a.startHTTPServer(ctx, g, deps, trigger)

	return ignoreCanceled(g.Wait())
}

func (a *App) newOrchestrator(deps *Dependencies) *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(
		deps.Refresher,
		deps.Archiver,
		a.cfg.Refresh.EffectiveInterval(),
		a.cfg.Archive.Cron,
		a.logger.With(slog.String("component", "orchestrator")),
	)
}

// startHTTPServer registers the server goroutine and its shutdown watcher on g.
// trigger is nil when the refresher does not run in this process.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, trigger handler.RefreshTrigger) {
	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		TrustProxy:      a.cfg.Server.TrustProxy,
		RateLimiter:     deps.RateLimiter,
		RateLimit:       a.cfg.RateLimit.Requests,
		RateLimitWindow: a.cfg.RateLimit.Window.Duration,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(deps.Health, a.logger),
		Wallets: handler.NewWalletHandler(deps.Wallets, a.logger),
		Prices:  handler.NewPriceHandler(deps.Wallets, a.logger),
		Refresh: handler.NewRefreshHandler(trigger, a.logger),
	}, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
