package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/cryptowallet/internal/domain"
)

// DefaultArchiveCron runs the archiver at 03:00 UTC on the first of each month.
const DefaultArchiveCron = "0 3 1 * *"

// Archiver exports price history older than the retention window to cold
// storage.
type Archiver struct {
	blob          domain.Archiver
	retentionDays int
	now           func() time.Time
	logger        *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(blob domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		blob:          blob,
		retentionDays: retentionDays,
		now:           time.Now,
		logger:        logger,
	}
}

// Run executes a single archive run and returns the number of exported
// records.
func (a *Archiver) Run(ctx context.Context) (int64, error) {
	cutoff := a.now().UTC().AddDate(0, 0, -a.retentionDays)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	n, err := a.blob.ArchivePriceHistory(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("archiving price history before %s: %w", cutoff.Format(time.DateOnly), err)
	}

	a.logger.Info("archive run complete", slog.Int64("price_history_archived", n))
	return n, nil
}

// RunCron runs the archiver on a 5-field cron schedule (evaluated in UTC)
// until the context is cancelled.
func (a *Archiver) RunCron(ctx context.Context, expr string) error {
	sched, err := parseCron(expr)
	if err != nil {
		return fmt.Errorf("parsing cron expression %q: %w", expr, err)
	}
	a.logger.Info("archiver cron started", slog.String("cron", expr))

	for {
		next, err := sched.next(a.now().UTC())
		if err != nil {
			return fmt.Errorf("cron %q: %w", expr, err)
		}

		wait := time.Until(next)
		a.logger.Debug("archiver waiting for next run",
			slog.Time("next_run", next),
			slog.Duration("wait", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if _, err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
