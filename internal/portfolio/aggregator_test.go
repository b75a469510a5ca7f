package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/portfolio-tracker/internal/cache"
	"github.com/trogers1052/portfolio-tracker/internal/marketdata"
	"github.com/trogers1052/portfolio-tracker/internal/models"
	"github.com/trogers1052/portfolio-tracker/internal/ratelimit"
)

// stubFetcher serves fixed results per ticker
type stubFetcher struct {
	results   map[models.Ticker]*marketdata.Result
	errs      map[models.Ticker]error
	untrimmed bool
}

func (s *stubFetcher) Fetch(_ context.Context, t models.Ticker, start, end time.Time) (*marketdata.Result, error) {
	if err, ok := s.errs[t]; ok {
		return nil, err
	}
	r, ok := s.results[t]
	if !ok {
		return nil, fmt.Errorf("unexpected ticker %s", t)
	}
	out := *r
	if !s.untrimmed {
		out.Series = r.Series.Between(start, end)
	}
	return &out, nil
}

type mapClassifier map[models.Ticker]models.Classification

func (m mapClassifier) Classify(_ context.Context, t models.Ticker) models.Classification {
	return m[t]
}

type fixedBudget int

func (b fixedBudget) Remaining(context.Context) int { return int(b) }

func day(s string) time.Time {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func series(t models.Ticker, closes map[string]string) models.TimeSeries {
	var points []models.PricePoint
	for d, c := range closes {
		points = append(points, models.PricePoint{Date: day(d), Close: decimal.RequireFromString(c)})
	}
	return models.NewTimeSeries(t, points)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var classes = mapClassifier{
	"AAPL": {Name: "Apple Inc.", Sector: "Technology", AssetClass: models.AssetClassEquity},
	"MSFT": {Name: "Microsoft Corp.", Sector: "Technology", AssetClass: models.AssetClassEquity},
	"XOM":  {Name: "Exxon Mobil", Sector: "Energy", AssetClass: models.AssetClassEquity},
	"SPY":  {Name: "SPDR S&P 500 ETF", Sector: "Broad Market", AssetClass: models.AssetClassETF},
}

func warmFetcher() *stubFetcher {
	return &stubFetcher{results: map[models.Ticker]*marketdata.Result{
		"AAPL": {Source: marketdata.SourceCache, Series: series("AAPL", map[string]string{
			"2024-01-01": "100", "2024-01-02": "102", "2024-01-03": "101", "2024-01-04": "105", "2024-01-05": "110",
		})},
		"MSFT": {Source: marketdata.SourceCache, Series: series("MSFT", map[string]string{
			"2024-01-01": "200", "2024-01-02": "198", "2024-01-03": "202", "2024-01-04": "204", "2024-01-05": "200",
		})},
	}}
}

func TestAggregateHandComputedValues(t *testing.T) {
	agg := NewAggregator(warmFetcher(), classes).WithBudget(fixedBudget(15))
	holdings := []models.Holding{{Ticker: "AAPL", Shares: 10}, {Ticker: "MSFT", Shares: 5}}

	snap, err := agg.Aggregate(context.Background(), holdings, day("2024-01-01"), day("2024-01-05"))
	require.NoError(t, err)

	expected := []string{"2000", "2010", "2020", "2070", "2100"}
	require.Len(t, snap.Series, len(expected))
	for i, want := range expected {
		assert.True(t, snap.Series[i].Value.Equal(dec(want)), "day %d: got %s want %s", i, snap.Series[i].Value, want)
		assert.False(t, snap.Series[i].Partial)
	}
	assert.Equal(t, day("2024-01-01"), snap.Series[0].Date)
	assert.Empty(t, snap.PartialDates)
	assert.Empty(t, snap.StaleTickers)
	assert.False(t, snap.Stale())

	assert.True(t, snap.TotalValue.Equal(dec("2100")))
	assert.True(t, snap.Metrics.InitialValue.Equal(dec("2000")))
	assert.True(t, snap.Metrics.FinalValue.Equal(dec("2100")))
	assert.True(t, snap.Metrics.TotalReturn.Equal(dec("0.05")))
	assert.True(t, snap.Metrics.MaxDrawdown.IsZero())
	assert.True(t, snap.Metrics.Volatility.IsPositive())
	assert.Equal(t, 5, snap.Metrics.TradingDays)
	assert.Equal(t, 15, snap.RateBudgetRemaining)

	require.Len(t, snap.Positions, 2)
	assert.Equal(t, models.Ticker("AAPL"), snap.Positions[0].Ticker)
	assert.True(t, snap.Positions[0].Value.Equal(dec("1100")))
	assert.True(t, snap.Positions[0].Weight.Equal(dec("52.38")))
	assert.True(t, snap.Positions[0].TotalReturn.Equal(dec("0.1")))
	assert.Equal(t, day("2024-01-05"), snap.Positions[0].LatestDate)
	assert.True(t, snap.Positions[1].Weight.Equal(dec("47.62")))

	require.Len(t, snap.SectorAllocation, 1)
	assert.Equal(t, "Technology", snap.SectorAllocation[0].Name)
	assert.True(t, snap.SectorAllocation[0].Percent.Equal(dec("100")))
}

func TestAggregateIsIdempotent(t *testing.T) {
	agg := NewAggregator(warmFetcher(), classes)
	holdings := []models.Holding{{Ticker: "MSFT", Shares: 5}, {Ticker: "AAPL", Shares: 10}}

	first, err := agg.Aggregate(context.Background(), holdings, day("2024-01-01"), day("2024-01-05"))
	require.NoError(t, err)
	second, err := agg.Aggregate(context.Background(), holdings, day("2024-01-01"), day("2024-01-05"))
	require.NoError(t, err)

	assertSameSnapshot(t, first, second)
}

func assertSameSnapshot(t *testing.T, a, b *models.PortfolioSnapshot) {
	t.Helper()
	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(ja), string(jb))
}

func TestAggregatePartialDates(t *testing.T) {
	f := &stubFetcher{results: map[models.Ticker]*marketdata.Result{
		"AAPL": {Series: series("AAPL", map[string]string{"2024-01-02": "100", "2024-01-03": "101"})},
		"MSFT": {Series: series("MSFT", map[string]string{"2024-01-02": "200"})},
	}}
	agg := NewAggregator(f, classes)

	snap, err := agg.Aggregate(context.Background(),
		[]models.Holding{{Ticker: "AAPL", Shares: 1}, {Ticker: "MSFT", Shares: 1}},
		day("2024-01-01"), day("2024-01-05"))
	require.NoError(t, err)

	require.Len(t, snap.Series, 2)
	assert.True(t, snap.Series[0].Value.Equal(dec("300")))
	assert.False(t, snap.Series[0].Partial)

	// MSFT is excluded from Jan 3, not counted as zero
	assert.True(t, snap.Series[1].Value.Equal(dec("101")))
	assert.True(t, snap.Series[1].Partial)
	assert.Equal(t, []models.Ticker{"MSFT"}, snap.Series[1].Missing)
	assert.Equal(t, []time.Time{day("2024-01-03")}, snap.PartialDates)

	// MSFT still valued at its latest close
	assert.True(t, snap.TotalValue.Equal(dec("301")))
}

func TestAggregateStaleTickerIsFlaggedNotFatal(t *testing.T) {
	f := warmFetcher()
	f.results["MSFT"].Stale = true
	f.results["MSFT"].Partial = true
	f.results["MSFT"].Source = marketdata.SourceStaleCache

	snap, err := NewAggregator(f, classes).Aggregate(context.Background(),
		[]models.Holding{{Ticker: "AAPL", Shares: 10}, {Ticker: "MSFT", Shares: 5}},
		day("2024-01-01"), day("2024-01-05"))
	require.NoError(t, err)

	assert.Equal(t, []models.Ticker{"MSFT"}, snap.StaleTickers)
	assert.True(t, snap.Stale())
	for _, p := range snap.Positions {
		assert.Equal(t, p.Ticker == "MSFT", p.Stale)
	}
}

func TestAggregateAllocation(t *testing.T) {
	f := &stubFetcher{results: map[models.Ticker]*marketdata.Result{
		"AAPL": {Series: series("AAPL", map[string]string{"2024-01-05": "100"})},
		"XOM":  {Series: series("XOM", map[string]string{"2024-01-05": "100"})},
		"SPY":  {Series: series("SPY", map[string]string{"2024-01-05": "200"})},
		"ZZZ":  {Series: series("ZZZ", map[string]string{"2024-01-05": "50"})},
	}}
	snap, err := NewAggregator(f, classes).Aggregate(context.Background(), []models.Holding{
		{Ticker: "AAPL", Shares: 3}, {Ticker: "XOM", Shares: 1}, {Ticker: "SPY", Shares: 1}, {Ticker: "ZZZ", Shares: 2},
	}, day("2024-01-01"), day("2024-01-05"))
	require.NoError(t, err)

	// total 300 + 100 + 200 + 100 = 700
	assert.True(t, snap.TotalValue.Equal(dec("700")))

	sectors := map[string]string{}
	for _, a := range snap.SectorAllocation {
		sectors[a.Name] = a.Percent.String()
	}
	assert.Equal(t, map[string]string{
		"Technology":         "42.86",
		"Broad Market":       "28.57",
		"Energy":             "14.29",
		models.SectorUnknown: "14.29",
	}, sectors)
	assert.Equal(t, "Technology", snap.SectorAllocation[0].Name)

	classesPct := map[string]string{}
	for _, a := range snap.AssetClassAllocation {
		classesPct[a.Name] = a.Percent.String()
	}
	assert.Equal(t, "57.14", classesPct[models.AssetClassEquity])
	assert.Equal(t, "28.57", classesPct[models.AssetClassETF])
	assert.Equal(t, "14.29", classesPct[models.AssetClassUnknown])
}

func TestAggregateUsesLatestCloseOnOrBeforeEnd(t *testing.T) {
	f := &stubFetcher{untrimmed: true, results: map[models.Ticker]*marketdata.Result{
		// a stale fallback may carry only a point before the range
		"AAPL": {Stale: true, Partial: true, Series: series("AAPL", map[string]string{"2023-12-29": "192.53"})},
		"MSFT": {Series: series("MSFT", map[string]string{"2024-01-02": "370.87"})},
	}}

	snap, err := NewAggregator(f, classes).Aggregate(context.Background(),
		[]models.Holding{{Ticker: "AAPL", Shares: 2}, {Ticker: "MSFT", Shares: 1}},
		day("2024-01-02"), day("2024-01-05"))
	require.NoError(t, err)

	// the value series never reaches outside the range
	require.Len(t, snap.Series, 1)
	assert.Equal(t, day("2024-01-02"), snap.Series[0].Date)
	assert.Equal(t, []models.Ticker{"AAPL"}, snap.Series[0].Missing)

	var aapl models.PositionSummary
	for _, p := range snap.Positions {
		if p.Ticker == "AAPL" {
			aapl = p
		}
	}
	assert.Equal(t, day("2023-12-29"), aapl.LatestDate)
	assert.True(t, aapl.Value.Equal(dec("385.06")))
	assert.True(t, snap.TotalValue.Equal(dec("755.93")))
	assert.Equal(t, []models.Ticker{"AAPL"}, snap.StaleTickers)
}

func TestAggregateTickerWithoutDataFails(t *testing.T) {
	f := warmFetcher()
	f.results["GOOG"] = &marketdata.Result{Series: models.TimeSeries{Ticker: "GOOG"}}

	snap, err := NewAggregator(f, classes).Aggregate(context.Background(),
		[]models.Holding{{Ticker: "AAPL", Shares: 1}, {Ticker: "GOOG", Shares: 1}},
		day("2024-01-01"), day("2024-01-05"))

	var aggErr *AggregationError
	require.True(t, errors.As(err, &aggErr))
	assert.Equal(t, ReasonNoData, aggErr.Reason)
	assert.Equal(t, models.Ticker("GOOG"), aggErr.Ticker)
	assert.Nil(t, snap)
}

func TestAggregateFetchFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{"rate limit", &marketdata.FetchError{Ticker: "GOOG", Reason: marketdata.ReasonRateLimitExhausted}, marketdata.ReasonRateLimitExhausted},
		{"provider", &marketdata.FetchError{Ticker: "GOOG", Reason: marketdata.ReasonProviderError}, marketdata.ReasonProviderError},
		{"timeout", &marketdata.FetchError{Ticker: "GOOG", Reason: marketdata.ReasonTimeout}, marketdata.ReasonTimeout},
		{"cache", fmt.Errorf("failed to read cache: %w", &cache.UnavailableError{Op: "range", Err: errors.New("eof")}), ReasonCacheUnavailable},
		{"other", errors.New("boom"), ReasonInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := warmFetcher()
			f.errs = map[models.Ticker]error{"GOOG": tt.err}

			_, err := NewAggregator(f, classes).Aggregate(context.Background(),
				[]models.Holding{{Ticker: "AAPL", Shares: 10}, {Ticker: "GOOG", Shares: 1}},
				day("2024-01-01"), day("2024-01-05"))

			var aggErr *AggregationError
			require.True(t, errors.As(err, &aggErr))
			assert.Equal(t, tt.reason, aggErr.Reason)
			assert.Equal(t, models.Ticker("GOOG"), aggErr.Ticker)
			assert.True(t, errors.Is(err, tt.err))
		})
	}
}

func TestAggregateRejectsEmptyInput(t *testing.T) {
	agg := NewAggregator(warmFetcher(), classes)

	_, err := agg.Aggregate(context.Background(), nil, day("2024-01-01"), day("2024-01-05"))
	var aggErr *AggregationError
	require.True(t, errors.As(err, &aggErr))
	assert.Equal(t, ReasonNoHoldings, aggErr.Reason)

	_, err = agg.Aggregate(context.Background(), []models.Holding{{Ticker: "AAPL", Shares: 1}}, day("2024-01-05"), day("2024-01-01"))
	require.True(t, errors.As(err, &aggErr))
	assert.Equal(t, ReasonInvalidRange, aggErr.Reason)
}

// The next tests run the real fetch layer over an in-memory cache.

func cachedFetcher(t *testing.T, now time.Time, budget *ratelimit.Budget) (*marketdata.Fetcher, *cache.MemoryStore) {
	t.Helper()
	clock := func() time.Time { return now }
	store := cache.NewMemoryStore(cache.Policy{}).WithClock(clock)
	f := marketdata.NewFetcher(store, budget, noProvider{}, time.Second).WithClock(clock)
	return f, store
}

type noProvider struct{}

func (noProvider) Name() string { return "none" }

func (noProvider) DailySeries(context.Context, models.Ticker, marketdata.OutputSize) ([]models.PricePoint, error) {
	return nil, errors.New("provider must not be called")
}

func seed(t *testing.T, store *cache.MemoryStore, ticker models.Ticker, closes map[string]string) {
	t.Helper()
	payloads := map[time.Time][]byte{}
	for d, c := range closes {
		data, err := marketdata.EncodePoint(models.PricePoint{Date: day(d), Close: dec(c)})
		require.NoError(t, err)
		payloads[day(d)] = data
	}
	require.NoError(t, store.PutBatch(ticker, payloads))
}

func TestAggregateFromWarmCache(t *testing.T) {
	now := time.Date(2024, 1, 5, 20, 0, 0, 0, time.UTC)
	budget := ratelimit.NewBudget(15, nil).WithClock(func() time.Time { return now })
	f, store := cachedFetcher(t, now, budget)

	seed(t, store, "AAPL", map[string]string{
		"2024-01-01": "100", "2024-01-02": "102", "2024-01-03": "101", "2024-01-04": "105", "2024-01-05": "110",
	})
	seed(t, store, "MSFT", map[string]string{
		"2024-01-01": "200", "2024-01-02": "198", "2024-01-03": "202", "2024-01-04": "204", "2024-01-05": "200",
	})

	agg := NewAggregator(f, classes).WithBudget(budget)
	holdings := []models.Holding{{Ticker: "AAPL", Shares: 10}, {Ticker: "MSFT", Shares: 5}}

	first, err := agg.Aggregate(context.Background(), holdings, day("2024-01-01"), day("2024-01-05"))
	require.NoError(t, err)
	second, err := agg.Aggregate(context.Background(), holdings, day("2024-01-01"), day("2024-01-05"))
	require.NoError(t, err)

	assertSameSnapshot(t, first, second)
	assert.True(t, first.Series[3].Value.Equal(dec("2070")))
	assert.Equal(t, 15, first.RateBudgetRemaining)
}

func TestAggregateExhaustedBudgetWithUncachedTicker(t *testing.T) {
	now := time.Date(2024, 1, 5, 20, 0, 0, 0, time.UTC)
	budget := ratelimit.NewBudget(15, nil).WithClock(func() time.Time { return now })
	for i := 0; i < 15; i++ {
		require.True(t, budget.TryAcquire(context.Background()))
	}
	f, store := cachedFetcher(t, now, budget)
	seed(t, store, "AAPL", map[string]string{
		"2024-01-01": "100", "2024-01-02": "102", "2024-01-03": "101", "2024-01-04": "105", "2024-01-05": "110",
	})

	_, err := NewAggregator(f, classes).Aggregate(context.Background(),
		[]models.Holding{{Ticker: "AAPL", Shares: 10}, {Ticker: "GOOG", Shares: 2}},
		day("2024-01-01"), day("2024-01-05"))

	var aggErr *AggregationError
	require.True(t, errors.As(err, &aggErr))
	assert.Equal(t, marketdata.ReasonRateLimitExhausted, aggErr.Reason)
	assert.Equal(t, models.Ticker("GOOG"), aggErr.Ticker)
}
