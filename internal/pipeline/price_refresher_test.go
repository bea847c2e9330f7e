package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/cryptowallet/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAssets holds per-symbol asset prices and embeds domain.AssetStore so only the
// methods the refresher uses need implementing.
type fakeAssets struct {
	domain.AssetStore
	mu     sync.Mutex
	order  []string
	prices map[string][]decimal.Decimal
}

func newFakeAssets(holdings map[string]int, order ...string) *fakeAssets {
	f := &fakeAssets{order: order, prices: map[string][]decimal.Decimal{}}
	for sym, n := range holdings {
		f.prices[sym] = make([]decimal.Decimal, n)
	}
	return f
}

func (f *fakeAssets) DistinctSymbols(context.Context) ([]string, error) {
	return f.order, nil
}

func (f *fakeAssets) UpdatePriceBySymbol(_ context.Context, symbol string, price decimal.Decimal) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.prices[symbol] {
		f.prices[symbol][i] = price
	}
	return int64(len(f.prices[symbol])), nil
}

func (f *fakeAssets) priceOf(symbol string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prices[symbol][0]
}

type fakeHistory struct {
	domain.PriceHistoryStore
	mu      sync.Mutex
	records []domain.PriceHistoryRecord
}

func (f *fakeHistory) Append(_ context.Context, rec domain.PriceHistoryRecord) (domain.PriceHistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = int64(len(f.records) + 1)
	f.records = append(f.records, rec)
	return rec, nil
}

// fakeMarket records the start and end of every price fetch.
type fakeMarket struct {
	domain.MarketData
	mu       sync.Mutex
	prices   map[string]decimal.Decimal
	delays   map[string]time.Duration
	events   []string
	inFlight int
	peak     int
	block    chan struct{}
}

func (m *fakeMarket) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	m.mu.Lock()
	m.events = append(m.events, "start "+symbol)
	m.inFlight++
	m.peak = max(m.peak, m.inFlight)
	m.mu.Unlock()

	if m.block != nil {
		<-m.block
	}
	time.Sleep(m.delays[symbol])

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
	m.events = append(m.events, "end "+symbol)
	p, ok := m.prices[symbol]
	if !ok {
		return decimal.Zero, domain.NewError(domain.KindUpstreamUnavailable, "market data unavailable for %s", symbol)
	}
	return p, nil
}

func (m *fakeMarket) indexOf(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.events {
		if e == event {
			return i
		}
	}
	return -1
}

func TestPartition(t *testing.T) {
	assert.Equal(t, [][]string{{"BTC", "ETH"}, {"ADA"}}, partition([]string{"BTC", "ETH", "ADA"}, 2))
	assert.Equal(t, [][]string{{"A", "B", "C"}}, partition([]string{"A", "B", "C"}, 3))
	assert.Empty(t, partition(nil, 3))
}

func TestRunCycle_BatchBarrier(t *testing.T) {
	assets := newFakeAssets(map[string]int{"BTC": 1, "ETH": 1, "ADA": 1}, "BTC", "ETH", "ADA")
	market := &fakeMarket{
		prices: map[string]decimal.Decimal{
			"BTC": decimal.NewFromInt(30000),
			"ETH": decimal.NewFromInt(2000),
			"ADA": decimal.NewFromInt(1),
		},
		delays: map[string]time.Duration{"ETH": 50 * time.Millisecond},
	}
	r := NewPriceRefresher(assets, &fakeHistory{}, market, 2, discardLogger())

	report, err := r.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Batches)
	assert.ElementsMatch(t, []string{"BTC", "ETH", "ADA"}, report.Updated)
	assert.LessOrEqual(t, market.peak, 2)

	adaStart := market.indexOf("start ADA")
	assert.Greater(t, adaStart, market.indexOf("end BTC"))
	assert.Greater(t, adaStart, market.indexOf("end ETH"))
}

func TestRunCycle_FailureIsolation(t *testing.T) {
	assets := newFakeAssets(map[string]int{"BTC": 2, "ETH": 1, "ADA": 1}, "BTC", "ETH", "ADA")
	original := decimal.NewFromInt(1900)
	assets.prices["ETH"][0] = original
	history := &fakeHistory{}
	market := &fakeMarket{prices: map[string]decimal.Decimal{
		"BTC": decimal.NewFromInt(30000),
		"ADA": decimal.RequireFromString("0.45"),
	}}
	r := NewPriceRefresher(assets, history, market, 2, discardLogger())

	report, err := r.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ETH"}, report.Failed)
	assert.ElementsMatch(t, []string{"BTC", "ADA"}, report.Updated)
	assert.Equal(t, int64(3), report.AssetsTouched)

	require.Len(t, history.records, 2)
	var symbols []string
	for _, rec := range history.records {
		symbols = append(symbols, rec.Symbol)
	}
	assert.ElementsMatch(t, []string{"BTC", "ADA"}, symbols)

	assert.True(t, assets.priceOf("BTC").Equal(decimal.NewFromInt(30000)))
	assert.True(t, assets.priceOf("ADA").Equal(decimal.RequireFromString("0.45")))
	assert.True(t, assets.priceOf("ETH").Equal(original))
}

func TestRunCycle_RoundsPriceToTwoDecimals(t *testing.T) {
	assets := newFakeAssets(map[string]int{"ADA": 1}, "ADA")
	history := &fakeHistory{}
	market := &fakeMarket{prices: map[string]decimal.Decimal{
		"ADA": decimal.RequireFromString("0.456789"),
	}}
	r := NewPriceRefresher(assets, history, market, 1, discardLogger())

	_, err := r.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "0.46", assets.priceOf("ADA").String())
	require.Len(t, history.records, 1)
	assert.Equal(t, "0.46", history.records[0].Price.String())
}

func TestRunCycle_NoSymbols(t *testing.T) {
	market := &fakeMarket{}
	r := NewPriceRefresher(newFakeAssets(nil), &fakeHistory{}, market, 3, discardLogger())

	report, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Batches)
	assert.Empty(t, market.events)
}

func TestRunCycle_SkipIfBusy(t *testing.T) {
	assets := newFakeAssets(map[string]int{"BTC": 1}, "BTC")
	market := &fakeMarket{
		prices: map[string]decimal.Decimal{"BTC": decimal.NewFromInt(1)},
		block:  make(chan struct{}),
	}
	r := NewPriceRefresher(assets, &fakeHistory{}, market, 3, discardLogger())

	done := make(chan error, 1)
	go func() {
		_, err := r.RunCycle(context.Background())
		done <- err
	}()

	require.Eventually(t, r.Running, time.Second, 5*time.Millisecond)
	_, err := r.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)

	close(market.block)
	require.NoError(t, <-done)
	assert.False(t, r.Running())
}

func TestTrigger_NonBlocking(t *testing.T) {
	r := NewPriceRefresher(newFakeAssets(nil), &fakeHistory{}, &fakeMarket{}, 0, discardLogger())

	assert.Equal(t, DefaultPoolSize, r.poolSize)
	assert.True(t, r.Trigger())
	assert.False(t, r.Trigger())
}

func TestRunLoop_ProcessesTrigger(t *testing.T) {
	assets := newFakeAssets(map[string]int{"BTC": 1}, "BTC")
	history := &fakeHistory{}
	market := &fakeMarket{prices: map[string]decimal.Decimal{"BTC": decimal.NewFromInt(5)}}
	r := NewPriceRefresher(assets, history, market, 1, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.RunLoop(ctx, time.Hour) }()

	count := func() int {
		history.mu.Lock()
		defer history.mu.Unlock()
		return len(history.records)
	}
	require.Eventually(t, func() bool { return count() == 1 }, time.Second, 5*time.Millisecond)
	r.Trigger()
	require.Eventually(t, func() bool { return count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
