package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MarketData is the external price source.
type MarketData interface {
	// CurrentPrice returns the spot price of symbol. It fails with
	// KindAssetNotFound when the provider has no such symbol and with
	// KindUpstreamUnavailable on transport or server failures.
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	// HistoricalPrice returns the daily price of symbol on date. It never
	// fails; ok is false when no price could be obtained.
	HistoricalPrice(ctx context.Context, symbol string, date time.Time) (price decimal.Decimal, ok bool)
}
