// Package portfolio combines per-ticker price series into a portfolio snapshot.
package portfolio

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/cache"
	"github.com/trogers1052/portfolio-tracker/internal/marketdata"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// SeriesFetcher returns the price series of one ticker
type SeriesFetcher interface {
	Fetch(ctx context.Context, ticker models.Ticker, start, end time.Time) (*marketdata.Result, error)
}

// Classifier maps a ticker to its sector and asset class
type Classifier interface {
	Classify(ctx context.Context, ticker models.Ticker) models.Classification
}

// BudgetReporter reports the provider calls left today
type BudgetReporter interface {
	Remaining(ctx context.Context) int
}

// Aggregator builds portfolio snapshots
type Aggregator struct {
	fetcher    SeriesFetcher
	classifier Classifier
	budget     BudgetReporter
}

// NewAggregator creates an Aggregator
func NewAggregator(fetcher SeriesFetcher, classifier Classifier) *Aggregator {
	return &Aggregator{fetcher: fetcher, classifier: classifier}
}

// WithBudget makes snapshots report the remaining rate budget
func (a *Aggregator) WithBudget(b BudgetReporter) *Aggregator {
	a.budget = b
	return a
}

type fetched struct {
	holding models.Holding
	result  *marketdata.Result
	err     error
}

// Aggregate values holdings over [start, end]. Per-ticker staleness is reported
// in the snapshot; a ticker with no data at all fails the whole aggregation.
func (a *Aggregator) Aggregate(ctx context.Context, holdings []models.Holding, start, end time.Time) (*models.PortfolioSnapshot, error) {
	start, end = models.Day(start), models.Day(end)
	if len(holdings) == 0 {
		return nil, &AggregationError{Reason: ReasonNoHoldings}
	}
	if end.Before(start) {
		return nil, &AggregationError{Reason: ReasonInvalidRange}
	}

	results := a.fetchAll(ctx, holdings, start, end)
	for _, r := range results {
		if r.err != nil {
			return nil, aggregationError(r.holding.Ticker, r.err)
		}
		if r.result.Series.Len() == 0 {
			return nil, &AggregationError{Ticker: r.holding.Ticker, Reason: ReasonNoData}
		}
	}

	snap := &models.PortfolioSnapshot{Start: start, End: end}
	snap.Series, snap.PartialDates = valueSeries(results, start, end)
	snap.Positions, snap.TotalValue = a.positions(ctx, results, start, end)
	snap.SectorAllocation = allocate(snap.Positions, snap.TotalValue, func(p models.PositionSummary) string { return p.Sector })
	snap.AssetClassAllocation = allocate(snap.Positions, snap.TotalValue, func(p models.PositionSummary) string { return p.AssetClass })
	snap.Metrics = seriesMetrics(snap.Series)

	for _, r := range results {
		if r.result.Stale {
			snap.StaleTickers = append(snap.StaleTickers, r.holding.Ticker)
		}
	}
	if a.budget != nil {
		snap.RateBudgetRemaining = a.budget.Remaining(ctx)
	}

	log.Printf("[INFO] aggregated %d holdings over %s..%s: value %s, %d partial dates, %d stale tickers",
		len(holdings), start.Format(models.DateLayout), end.Format(models.DateLayout),
		snap.TotalValue.StringFixed(2), len(snap.PartialDates), len(snap.StaleTickers))
	return snap, nil
}

// fetchAll fetches every holding concurrently; results keep the holdings order
func (a *Aggregator) fetchAll(ctx context.Context, holdings []models.Holding, start, end time.Time) []fetched {
	results := make([]fetched, len(holdings))
	var wg sync.WaitGroup
	for i, h := range holdings {
		wg.Add(1)
		go func(i int, h models.Holding) {
			defer wg.Done()
			res, err := a.fetcher.Fetch(ctx, h.Ticker, start, end)
			results[i] = fetched{holding: h, result: res, err: err}
		}(i, h)
	}
	wg.Wait()
	return results
}

func aggregationError(ticker models.Ticker, err error) error {
	var fe *marketdata.FetchError
	switch {
	case errors.As(err, &fe):
		return &AggregationError{Ticker: ticker, Reason: fe.Reason, Err: err}
	case errors.Is(err, cache.ErrCacheUnavailable):
		return &AggregationError{Ticker: ticker, Reason: ReasonCacheUnavailable, Err: err}
	default:
		return &AggregationError{Ticker: ticker, Reason: ReasonInternal, Err: err}
	}
}

// valueSeries sums shares x close over the union of dates in [start, end].
// A ticker without a point on a date is left out of that date's sum.
func valueSeries(results []fetched, start, end time.Time) ([]models.ValuePoint, []time.Time) {
	closes := make([]map[time.Time]decimal.Decimal, len(results))
	dates := map[time.Time]struct{}{}
	for i, r := range results {
		closes[i] = make(map[time.Time]decimal.Decimal, r.result.Series.Len())
		for _, p := range r.result.Series.Between(start, end).Points {
			closes[i][p.Date] = p.Close
			dates[p.Date] = struct{}{}
		}
	}

	ordered := make([]time.Time, 0, len(dates))
	for d := range dates {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	series := make([]models.ValuePoint, 0, len(ordered))
	var partial []time.Time
	for _, d := range ordered {
		vp := models.ValuePoint{Date: d, Value: decimal.Zero}
		for i, r := range results {
			c, ok := closes[i][d]
			if !ok {
				vp.Missing = append(vp.Missing, r.holding.Ticker)
				continue
			}
			vp.Value = vp.Value.Add(c.Mul(decimal.NewFromInt(r.holding.Shares)))
		}
		if len(vp.Missing) > 0 {
			vp.Partial = true
			partial = append(partial, d)
		}
		series = append(series, vp)
	}
	return series, partial
}

// positions values each holding at its latest close on or before end
func (a *Aggregator) positions(ctx context.Context, results []fetched, start, end time.Time) ([]models.PositionSummary, decimal.Decimal) {
	out := make([]models.PositionSummary, 0, len(results))
	total := decimal.Zero
	for _, r := range results {
		h := r.holding
		class := a.classify(ctx, h.Ticker)
		pos := models.PositionSummary{
			Ticker:     h.Ticker,
			Name:       class.Name,
			Sector:     class.Sector,
			AssetClass: class.AssetClass,
			Shares:     h.Shares,
			Stale:      r.result.Stale,
		}

		if latest, ok := r.result.Series.LatestOnOrBefore(end); ok {
			pos.LatestClose = latest.Close
			pos.LatestDate = latest.Date
			pos.Value = latest.Close.Mul(decimal.NewFromInt(h.Shares))
		}

		inRange := r.result.Series.Between(start, end).Points
		prices := make([]decimal.Decimal, len(inRange))
		for i, p := range inRange {
			prices[i] = p.Close
		}
		pos.TotalReturn = totalReturn(prices)
		pos.Volatility = volatility(prices)

		total = total.Add(pos.Value)
		out = append(out, pos)
	}

	for i := range out {
		out[i].Weight = percentOf(out[i].Value, total)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Value.Equal(out[j].Value) {
			return out[i].Value.GreaterThan(out[j].Value)
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out, total
}

func (a *Aggregator) classify(ctx context.Context, t models.Ticker) models.Classification {
	var c models.Classification
	if a.classifier != nil {
		c = a.classifier.Classify(ctx, t)
	}
	if c.Sector == "" {
		c.Sector = models.SectorUnknown
	}
	if c.AssetClass == "" {
		c.AssetClass = models.AssetClassUnknown
	}
	return c
}

// allocate groups position values by key, largest group first
func allocate(positions []models.PositionSummary, total decimal.Decimal, key func(models.PositionSummary) string) []models.Allocation {
	sums := map[string]decimal.Decimal{}
	for _, p := range positions {
		k := key(p)
		sums[k] = sums[k].Add(p.Value)
	}

	out := make([]models.Allocation, 0, len(sums))
	for name, v := range sums {
		out = append(out, models.Allocation{Name: name, Value: v, Percent: percentOf(v, total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Value.Equal(out[j].Value) {
			return out[i].Value.GreaterThan(out[j].Value)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func seriesMetrics(series []models.ValuePoint) models.PortfolioMetrics {
	values := make([]decimal.Decimal, len(series))
	for i, vp := range series {
		values[i] = vp.Value
	}
	m := models.PortfolioMetrics{
		TotalReturn: totalReturn(values),
		Volatility:  volatility(values),
		MaxDrawdown: maxDrawdown(values),
		TradingDays: len(values),
	}
	if len(values) > 0 {
		m.InitialValue = values[0]
		m.FinalValue = values[len(values)-1]
	}
	return m
}
