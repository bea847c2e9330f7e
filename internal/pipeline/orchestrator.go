package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator manages the background pipeline goroutines: the price
// refresher and, when configured, the price-history archiver.
type Orchestrator struct {
	refresher       *PriceRefresher
	archiver        *Archiver
	refreshInterval time.Duration
	archiveCron     string
	logger          *slog.Logger
}

// NewOrchestrator creates a new Orchestrator. refresher and archiver may each
// be nil to disable that sub-pipeline.
func NewOrchestrator(
	refresher *PriceRefresher,
	archiver *Archiver,
	refreshInterval time.Duration,
	archiveCron string,
	logger *slog.Logger,
) *Orchestrator {
	if archiveCron == "" {
		archiveCron = DefaultArchiveCron
	}
	return &Orchestrator{
		refresher:       refresher,
		archiver:        archiver,
		refreshInterval: refreshInterval,
		archiveCron:     archiveCron,
		logger:          logger,
	}
}

// Run starts the sub-pipelines in an errgroup and blocks until ctx is
// cancelled or one of them fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Bool("refresh", o.refresher != nil),
		slog.Duration("refresh_interval", o.refreshInterval),
		slog.Bool("archive", o.archiver != nil),
		slog.String("archive_cron", o.archiveCron),
	)

	g, ctx := errgroup.WithContext(ctx)

	if o.refresher != nil {
		g.Go(func() error {
			err := o.refresher.RunLoop(ctx, o.refreshInterval)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("price refresher: %w", err)
		})
	}

	if o.archiver != nil {
		g.Go(func() error {
			err := o.archiver.RunCron(ctx, o.archiveCron)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
