package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cryptowallet/internal/domain"
)

// performanceScale is the precision of the intermediate percentage division.
const performanceScale = 4

var hundred = decimal.NewFromInt(100)

// Evaluator reconciles caller-claimed asset values against reference-date
// prices.
type Evaluator struct {
	market domain.MarketData
	now    func() time.Time
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator. now may be nil, in which case time.Now
// is used.
func NewEvaluator(market domain.MarketData, now func() time.Time, logger *slog.Logger) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{
		market: market,
		now:    now,
		logger: logger,
	}
}

type scoredInput struct {
	symbol      string
	reference   decimal.Decimal
	performance decimal.Decimal
}

// Evaluate computes the total reference value of inputs and the best and
// worst performing entries. A zero referenceDate means today (UTC). Prices are
// fetched sequentially; the first missing price aborts the evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, inputs []domain.EvaluationInput, referenceDate time.Time) (domain.EvaluationResult, error) {
	if len(inputs) == 0 {
		return domain.EvaluationResult{}, domain.ErrEmptyAssetList
	}

	today := utcDay(e.now())
	day := today
	if !referenceDate.IsZero() {
		day = utcDay(referenceDate)
	}
	live := day.Equal(today)

	scored := make([]scoredInput, 0, len(inputs))
	for _, in := range inputs {
		price, err := e.referencePrice(ctx, in.Symbol, day, live)
		if err != nil {
			return domain.EvaluationResult{}, err
		}
		ref := in.Quantity.Mul(price)
		scored = append(scored, scoredInput{
			symbol:      in.Symbol,
			reference:   ref,
			performance: performance(ref, in.ClaimedValue),
		})
	}

	res := domain.EvaluationResult{Total: decimal.Zero}
	best, worst := scored[0], scored[0]
	for _, s := range scored {
		res.Total = res.Total.Add(s.reference)
		if s.performance.GreaterThan(best.performance) {
			best = s
		}
		if s.performance.LessThan(worst.performance) {
			worst = s
		}
	}

	res.Total = res.Total.Round(domain.PriceScale)
	res.BestAsset = best.symbol
	res.BestPerformance = best.performance.Round(domain.PriceScale)
	res.WorstAsset = worst.symbol
	res.WorstPerformance = worst.performance.Round(domain.PriceScale)

	e.logger.DebugContext(ctx, "evaluator: wallet evaluated",
		slog.Int("assets", len(inputs)),
		slog.String("date", day.Format(time.DateOnly)),
		slog.String("total", res.Total.String()),
	)
	return res, nil
}

func (e *Evaluator) referencePrice(ctx context.Context, symbol string, day time.Time, live bool) (decimal.Decimal, error) {
	noData := func(cause error) error {
		return domain.WrapError(domain.KindNoPriceData, cause,
			"no price data available for %s on %s", symbol, day.Format(time.DateOnly))
	}

	if !live {
		price, ok := e.market.HistoricalPrice(ctx, symbol, day)
		if !ok {
			return decimal.Zero, noData(nil)
		}
		return price, nil
	}

	price, err := e.market.CurrentPrice(ctx, symbol)
	if err != nil {
		if domain.KindOf(err) == domain.KindAssetNotFound {
			return decimal.Zero, noData(err)
		}
		return decimal.Zero, err
	}
	return price, nil
}

// performance is the percentage change from claimed to reference, divided at
// four decimals half-up. A zero claim yields zero.
func performance(reference, claimed decimal.Decimal) decimal.Decimal {
	if claimed.IsZero() {
		return decimal.Zero
	}
	return reference.Sub(claimed).Mul(hundred).DivRound(claimed, performanceScale)
}

func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
