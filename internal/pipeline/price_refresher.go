package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/cryptowallet/internal/domain"
)

// DefaultPoolSize is the number of symbols refreshed concurrently per batch.
const DefaultPoolSize = 3

// ErrCycleInProgress is returned by RunCycle when another cycle is running.
var ErrCycleInProgress = errors.New("pipeline: refresh cycle already in progress")

// PriceRefresher periodically fetches the current price of every held symbol,
// appends it to the price history and propagates it to every asset holding
// the symbol.
type PriceRefresher struct {
	assets   domain.AssetStore
	history  domain.PriceHistoryStore
	market   domain.MarketData
	poolSize int
	running  atomic.Bool
	trigger  chan struct{}
	now      func() time.Time
	logger   *slog.Logger
}

// NewPriceRefresher creates a PriceRefresher. A non-positive poolSize falls
// back to DefaultPoolSize.
func NewPriceRefresher(
	assets domain.AssetStore,
	history domain.PriceHistoryStore,
	market domain.MarketData,
	poolSize int,
	logger *slog.Logger,
) *PriceRefresher {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	return &PriceRefresher{
		assets:   assets,
		history:  history,
		market:   market,
		poolSize: poolSize,
		trigger:  make(chan struct{}, 1),
		now:      time.Now,
		logger:   logger,
	}
}

// Running reports whether a cycle is currently executing.
func (r *PriceRefresher) Running() bool {
	return r.running.Load()
}

// Trigger requests an out-of-schedule cycle. It never blocks; it returns false
// if a request is already pending.
func (r *PriceRefresher) Trigger() bool {
	select {
	case r.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunLoop runs a cycle immediately, then on every tick of interval and on
// every Trigger, until the context is cancelled. Cycles run on the loop
// goroutine, so ticks that fire during a cycle are dropped.
func (r *PriceRefresher) RunLoop(ctx context.Context, interval time.Duration) error {
	r.runAndLog(ctx, "startup")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("price refresher loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.runAndLog(ctx, "schedule")
		case <-r.trigger:
			r.runAndLog(ctx, "manual")
		}
	}
}

func (r *PriceRefresher) runAndLog(ctx context.Context, reason string) {
	report, err := r.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, ErrCycleInProgress) {
			r.logger.Warn("refresh cycle skipped", slog.String("reason", reason))
			return
		}
		r.logger.Error("refresh cycle failed",
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return
	}
	if len(report.Symbols) == 0 {
		r.logger.Debug("refresh cycle found no symbols", slog.String("reason", reason))
		return
	}
	r.logger.Info("refresh cycle complete",
		slog.String("reason", reason),
		slog.Int("symbols", len(report.Symbols)),
		slog.Int("batches", report.Batches),
		slog.Int("updated", len(report.Updated)),
		slog.Any("failed", report.Failed),
		slog.Int64("assets_touched", report.AssetsTouched),
		slog.Duration("duration", report.Duration),
	)
}

// RunCycle executes one refresh cycle. Symbols are processed in batches of
// poolSize; every symbol of a batch completes before the next batch starts.
// A failure for one symbol is logged and does not affect the others.
func (r *PriceRefresher) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		return domain.CycleReport{}, ErrCycleInProgress
	}
	defer r.running.Store(false)

	report := domain.CycleReport{StartedAt: r.now()}

	symbols, err := r.assets.DistinctSymbols(ctx)
	if err != nil {
		return report, fmt.Errorf("pipeline: list symbols: %w", err)
	}
	report.Symbols = symbols
	if len(symbols) == 0 {
		report.Duration = time.Since(report.StartedAt)
		return report, nil
	}

	var mu sync.Mutex
	for _, batch := range partition(symbols, r.poolSize) {
		if ctx.Err() != nil {
			break
		}
		report.Batches++

		var g errgroup.Group
		g.SetLimit(len(batch))
		for _, symbol := range batch {
			g.Go(func() error {
				touched, err := r.refreshSymbol(ctx, symbol)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					r.logger.Error("price refresh failed",
						slog.String("symbol", symbol),
						slog.String("error", err.Error()),
					)
					report.Failed = append(report.Failed, symbol)
					return nil
				}
				report.Updated = append(report.Updated, symbol)
				report.AssetsTouched += touched
				return nil
			})
		}
		_ = g.Wait()
	}

	report.Duration = time.Since(report.StartedAt)
	return report, nil
}

func (r *PriceRefresher) refreshSymbol(ctx context.Context, symbol string) (int64, error) {
	price, err := r.market.CurrentPrice(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("fetch price: %w", err)
	}
	// Asset prices are kept at two decimals, half-up.
	price = price.Round(domain.PriceScale)

	if _, err := r.history.Append(ctx, domain.PriceHistoryRecord{
		Symbol:    symbol,
		Price:     price,
		Timestamp: r.now().UTC(),
	}); err != nil {
		return 0, fmt.Errorf("append history: %w", err)
	}

	touched, err := r.assets.UpdatePriceBySymbol(ctx, symbol, price)
	if err != nil {
		return 0, fmt.Errorf("update assets: %w", err)
	}
	r.logger.Debug("price refreshed",
		slog.String("symbol", symbol),
		slog.String("price", price.String()),
		slog.Int64("assets", touched),
	)
	return touched, nil
}

// partition splits symbols into consecutive batches of at most size.
func partition(symbols []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	batches := make([][]string, 0, (len(symbols)+size-1)/size)
	for start := 0; start < len(symbols); start += size {
		end := min(start+size, len(symbols))
		batches = append(batches, symbols[start:end])
	}
	return batches
}
