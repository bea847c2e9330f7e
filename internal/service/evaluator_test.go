package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/cryptowallet/internal/domain"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestEvaluator(m *MockMarketData) *Evaluator {
	return NewEvaluator(m, func() time.Time { return fixedNow }, discardLogger())
}

func TestEvaluate_WorkedExample(t *testing.T) {
	ctx := context.Background()
	market := new(MockMarketData)
	market.On("CurrentPrice", ctx, "BTC").Return(dec("30000"), nil)
	market.On("CurrentPrice", ctx, "ADA").Return(dec("50"), nil)

	res, err := newTestEvaluator(market).Evaluate(ctx, []domain.EvaluationInput{
		{Symbol: "BTC", Quantity: dec("1"), ClaimedValue: dec("30000")},
		{Symbol: "ADA", Quantity: dec("100"), ClaimedValue: dec("40")},
	}, time.Time{})

	require.NoError(t, err)
	assert.Equal(t, "35000.00", res.Total.StringFixed(2))
	assert.Equal(t, "ADA", res.BestAsset)
	assert.Equal(t, "12400.00", res.BestPerformance.StringFixed(2))
	assert.Equal(t, "BTC", res.WorstAsset)
	assert.Equal(t, "0.00", res.WorstPerformance.StringFixed(2))
	market.AssertExpectations(t)
}

func TestEvaluate_EmptyRejectedBeforeFetch(t *testing.T) {
	market := new(MockMarketData)

	_, err := newTestEvaluator(market).Evaluate(context.Background(), nil, time.Time{})

	require.ErrorIs(t, err, domain.ErrEmptyAssetList)
	assert.Equal(t, domain.KindWalletGeneric, domain.KindOf(err))
	market.AssertNotCalled(t, "CurrentPrice", mock.Anything, mock.Anything)
	market.AssertNotCalled(t, "HistoricalPrice", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluate_ZeroClaimedValue(t *testing.T) {
	ctx := context.Background()
	market := new(MockMarketData)
	market.On("CurrentPrice", ctx, "ETH").Return(dec("2000"), nil)

	res, err := newTestEvaluator(market).Evaluate(ctx, []domain.EvaluationInput{
		{Symbol: "ETH", Quantity: dec("2"), ClaimedValue: decimal.Zero},
	}, fixedNow)

	require.NoError(t, err)
	assert.True(t, res.BestPerformance.IsZero())
	assert.True(t, res.WorstPerformance.IsZero())
	assert.Equal(t, "4000.00", res.Total.StringFixed(2))
}

func TestEvaluate_HistoricalDateUsesHistory(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	market := new(MockMarketData)
	market.On("HistoricalPrice", ctx, "BTC", day).Return(dec("45000.555"), true)

	res, err := newTestEvaluator(market).Evaluate(ctx, []domain.EvaluationInput{
		{Symbol: "BTC", Quantity: dec("0.5"), ClaimedValue: dec("20000")},
	}, day)

	require.NoError(t, err)
	// 0.5 * 45000.555 = 22500.2775
	assert.Equal(t, "22500.28", res.Total.StringFixed(2))
	// (22500.2775 - 20000) * 100 / 20000 = 12.5013875 -> 12.5014 -> 12.50
	assert.Equal(t, "12.50", res.BestPerformance.StringFixed(2))
	market.AssertNotCalled(t, "CurrentPrice", mock.Anything, mock.Anything)
}

func TestEvaluate_MissingHistoricalPrice(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	market := new(MockMarketData)
	market.On("HistoricalPrice", ctx, "BTC", day).Return(dec("40000"), true)
	market.On("HistoricalPrice", ctx, "XYZ", day).Return(decimal.Zero, false)

	_, err := newTestEvaluator(market).Evaluate(ctx, []domain.EvaluationInput{
		{Symbol: "BTC", Quantity: dec("1"), ClaimedValue: dec("1")},
		{Symbol: "XYZ", Quantity: dec("1"), ClaimedValue: dec("1")},
	}, day)

	require.Error(t, err)
	assert.Equal(t, domain.KindNoPriceData, domain.KindOf(err))
	assert.Equal(t, "no price data available for XYZ on 2024-01-02", domain.MessageOf(err, ""))
}

func TestEvaluate_CurrentPriceErrors(t *testing.T) {
	ctx := context.Background()
	in := []domain.EvaluationInput{{Symbol: "BTC", Quantity: dec("1"), ClaimedValue: dec("1")}}

	t.Run("unknown symbol is missing data", func(t *testing.T) {
		market := new(MockMarketData)
		market.On("CurrentPrice", ctx, "BTC").
			Return(decimal.Zero, domain.NewError(domain.KindAssetNotFound, "asset not found: BTC"))

		_, err := newTestEvaluator(market).Evaluate(ctx, in, time.Time{})
		assert.Equal(t, domain.KindNoPriceData, domain.KindOf(err))
	})

	t.Run("upstream failure propagates", func(t *testing.T) {
		market := new(MockMarketData)
		market.On("CurrentPrice", ctx, "BTC").
			Return(decimal.Zero, domain.NewError(domain.KindUpstreamUnavailable, "down"))

		_, err := newTestEvaluator(market).Evaluate(ctx, in, time.Time{})
		assert.Equal(t, domain.KindUpstreamUnavailable, domain.KindOf(err))
	})
}

func TestEvaluate_TiesKeepFirst(t *testing.T) {
	ctx := context.Background()
	market := new(MockMarketData)
	market.On("CurrentPrice", ctx, "BTC").Return(dec("10"), nil)
	market.On("CurrentPrice", ctx, "ETH").Return(dec("10"), nil)

	res, err := newTestEvaluator(market).Evaluate(ctx, []domain.EvaluationInput{
		{Symbol: "BTC", Quantity: dec("1"), ClaimedValue: dec("5")},
		{Symbol: "ETH", Quantity: dec("1"), ClaimedValue: dec("5")},
	}, time.Time{})

	require.NoError(t, err)
	assert.Equal(t, "BTC", res.BestAsset)
	assert.Equal(t, "BTC", res.WorstAsset)
	assert.Equal(t, "100.00", res.BestPerformance.StringFixed(2))
}

func TestPerformance_RoundsHalfUp(t *testing.T) {
	// (2 - 3) * 100 / 3 = -33.33333... -> -33.3333
	assert.Equal(t, "-33.3333", performance(dec("2"), dec("3")).String())
	// (1 - 0.00016) * 100 / 0.00016 = 624900
	assert.Equal(t, "624900", performance(dec("1"), dec("0.00016")).String())
}
