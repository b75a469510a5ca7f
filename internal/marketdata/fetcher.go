// Package marketdata serves daily price series from the local cache and falls
// back to the rate-limited external provider when the cache is not fresh.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/trogers1052/portfolio-tracker/internal/cache"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// Source says where the points of a Result came from
type Source string

const (
	SourceCache      Source = "cache"
	SourceProvider   Source = "provider"
	SourceStaleCache Source = "stale_cache"
)

// Result is the outcome of one Fetch
type Result struct {
	Series models.TimeSeries `json:"series"`
	// Partial and Stale are set when a refresh was needed but could not happen
	Partial bool   `json:"partial"`
	Stale   bool   `json:"stale"`
	Source  Source `json:"source"`
	// Reason explains a stale fallback
	Reason string `json:"reason,omitempty"`
}

// Limiter is the daily call budget shared by every fetch
type Limiter interface {
	TryAcquire(ctx context.Context) bool
	Remaining(ctx context.Context) int
	Exhaust(ctx context.Context)
}

// Publisher receives notifications about provider calls. Implementations must
// not block for long; publish failures are logged and ignored.
type Publisher interface {
	PublishMarketData(ctx context.Context, event models.MarketDataEvent) error
}

// Fetcher is the caching data-fetch layer
type Fetcher struct {
	store     cache.Store
	limiter   Limiter
	provider  Provider
	publisher Publisher
	timeout   time.Duration
	now       func() time.Time

	locksMu sync.Mutex
	locks   map[models.Ticker]*sync.Mutex
}

// NewFetcher creates a Fetcher. timeout bounds each provider call.
func NewFetcher(store cache.Store, limiter Limiter, provider Provider, timeout time.Duration) *Fetcher {
	return &Fetcher{
		store:    store,
		limiter:  limiter,
		provider: provider,
		timeout:  timeout,
		now:      time.Now,
		locks:    make(map[models.Ticker]*sync.Mutex),
	}
}

// WithPublisher attaches an event publisher
func (f *Fetcher) WithPublisher(p Publisher) *Fetcher {
	f.publisher = p
	return f
}

// WithClock replaces the time source
func (f *Fetcher) WithClock(now func() time.Time) *Fetcher {
	f.now = now
	return f
}

// Fetch returns the series of ticker within [start, end]. Gaps are left absent.
// Storage faults are returned as cache.ErrCacheUnavailable and never treated as
// a miss. A *FetchError is returned only when no data at all can be served.
func (f *Fetcher) Fetch(ctx context.Context, ticker models.Ticker, start, end time.Time) (*Result, error) {
	start, end = models.Day(start), models.Day(end)
	if end.Before(start) {
		return nil, fmt.Errorf("invalid range for %s: end %s before start %s",
			ticker, end.Format(models.DateLayout), start.Format(models.DateLayout))
	}

	// One refresh per ticker at a time; a concurrent caller sees the fresh sync instead of spending budget again.
	unlock := f.lock(ticker)
	defer unlock()

	entries, err := f.store.Range(ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache for %s: %w", ticker, err)
	}

	refresh, err := f.needsRefresh(ticker, start, end, entries)
	if err != nil {
		return nil, err
	}
	if !refresh {
		series, err := decodeEntries(ticker, entries, nil)
		if err != nil {
			return nil, err
		}
		return &Result{Series: series, Source: SourceCache}, nil
	}

	if !f.limiter.TryAcquire(ctx) {
		return f.fallback(ticker, end, entries, ReasonRateLimitExhausted, nil)
	}

	size := outputSizeFor(start, models.Day(f.now()))
	points, err := f.callProvider(ctx, ticker, size)
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			fe = &FetchError{Ticker: ticker, Reason: ReasonProviderError, Err: err}
		}
		log.Printf("[WARN] provider call for %s failed: %v", ticker, fe)
		if fe.Reason == ReasonRateLimitExhausted {
			f.limiter.Exhaust(ctx)
			f.publish(ctx, models.MarketDataEvent{EventType: models.EventBudgetExhausted, Symbol: string(ticker)})
		}
		if errors.Is(fe, ErrUnknownSymbol) {
			return nil, f.evict(ctx, ticker, fe)
		}
		return f.fallback(ticker, end, entries, fe.Reason, fe.Err)
	}

	if err := f.persist(ticker, points, size); err != nil {
		return nil, err
	}

	// Keep only cached points that are still fresh; provider points override them.
	series, err := decodeEntries(ticker, entries, f.store.Fresh)
	if err != nil {
		return nil, err
	}
	merged := models.NewTimeSeries(ticker, append(series.Points, points...)).Between(start, end)
	return &Result{Series: merged, Source: SourceProvider}, nil
}

// Warm fetches each ticker over [start, end] and reports how many were served
// without error. Failures are logged and do not stop the run.
func (f *Fetcher) Warm(ctx context.Context, tickers []models.Ticker, start, end time.Time) int {
	ok := 0
	for _, t := range tickers {
		if ctx.Err() != nil {
			break
		}
		res, err := f.Fetch(ctx, t, start, end)
		if err != nil {
			log.Printf("[WARN] cache warm for %s failed: %v", t, err)
			continue
		}
		log.Printf("[INFO] cache warm for %s: %d points from %s", t, res.Series.Len(), res.Source)
		ok++
	}
	return ok
}

// needsRefresh is true when some requested day up to today has no fresh entry
// and the ticker was not already synced within the freshness window.
func (f *Fetcher) needsRefresh(ticker models.Ticker, start, end time.Time, entries []*models.CacheEntry) (bool, error) {
	last := end
	if today := models.Day(f.now()); today.Before(last) {
		last = today
	}
	if last.Before(start) {
		return false, nil
	}

	fresh := make(map[time.Time]bool, len(entries))
	for _, e := range entries {
		if f.store.Fresh(e.FetchedAt) {
			fresh[e.Date] = true
		}
	}

	covered := true
	for d := start; !d.After(last); d = d.AddDate(0, 0, 1) {
		if !fresh[d] {
			covered = false
			break
		}
	}
	if covered {
		return false, nil
	}

	// Days the provider had no bar for (weekends, holidays) are never cached,
	// so a fresh sync that reached back to start means the provider was
	// already asked today.
	rec, found, err := f.store.Sync(ticker)
	if err != nil {
		return false, fmt.Errorf("failed to read sync record for %s: %w", ticker, err)
	}
	if found && f.store.Fresh(rec.SyncedAt) && syncCovers(rec, start) {
		return false, nil
	}
	return true, nil
}

// syncCovers reports whether the series returned by the recorded call reaches
// back to start. A compact call only covers its own span.
func syncCovers(rec *models.SyncRecord, start time.Time) bool {
	if rec.Full {
		return true
	}
	return rec.Points > 0 && !start.Before(rec.FirstDate)
}

func (f *Fetcher) callProvider(ctx context.Context, ticker models.Ticker, size OutputSize) ([]models.PricePoint, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	log.Printf("[INFO] calling %s for %s (%s), %d calls left today",
		f.provider.Name(), ticker, size, f.limiter.Remaining(ctx))

	points, err := f.provider.DailySeries(ctx, ticker, size)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, &FetchError{Ticker: ticker, Reason: ReasonTimeout, Err: err}
	}
	return points, err
}

// persist writes every returned point and the sync record
func (f *Fetcher) persist(ticker models.Ticker, points []models.PricePoint, size OutputSize) error {
	payloads := make(map[time.Time][]byte, len(points))
	series := models.NewTimeSeries(ticker, points)
	for _, p := range series.Points {
		data, err := EncodePoint(p)
		if err != nil {
			return err
		}
		payloads[p.Date] = data
	}
	if err := f.store.PutBatch(ticker, payloads); err != nil {
		return fmt.Errorf("failed to write %s to cache: %w", ticker, err)
	}

	rec := &models.SyncRecord{
		Ticker:   ticker,
		SyncedAt: f.now().UTC(),
		Points:   series.Len(),
		Full:     size == OutputFull || series.Len() < compactPoints,
	}
	if n := series.Len(); n > 0 {
		rec.FirstDate = series.Points[0].Date
		rec.LastDate = series.Points[n-1].Date
	}
	if err := f.store.RecordSync(rec); err != nil {
		return fmt.Errorf("failed to record sync for %s: %w", ticker, err)
	}

	log.Printf("[INFO] cached %d points for %s", series.Len(), ticker)
	f.publish(context.Background(), models.MarketDataEvent{
		EventType: models.EventSeriesRefreshed,
		Symbol:    string(ticker),
		Points:    rec.Points,
		FirstDate: formatDate(rec.FirstDate),
		LastDate:  formatDate(rec.LastDate),
	})
	return nil
}

// fallback serves whatever is cached for ticker, fresh or not. With nothing
// cached in range it falls back to the latest point on or before end.
func (f *Fetcher) fallback(ticker models.Ticker, end time.Time, entries []*models.CacheEntry, reason string, cause error) (*Result, error) {
	if len(entries) == 0 {
		latest, found, err := f.store.Latest(ticker, end)
		if err != nil {
			return nil, fmt.Errorf("failed to read latest cache entry for %s: %w", ticker, err)
		}
		if !found {
			return nil, &FetchError{Ticker: ticker, Reason: reason, Err: cause}
		}
		entries = []*models.CacheEntry{latest}
	}

	series, err := decodeEntries(ticker, entries, nil)
	if err != nil {
		return nil, err
	}
	log.Printf("[WARN] serving %d stale cached points for %s (%s)", series.Len(), ticker, reason)
	return &Result{Series: series, Partial: true, Stale: true, Source: SourceStaleCache, Reason: reason}, nil
}

// evict drops everything cached for a ticker the provider does not know, so
// stale points of a delisted or mistyped symbol are never served again
func (f *Fetcher) evict(ctx context.Context, ticker models.Ticker, cause *FetchError) error {
	n, err := f.store.Evict(ticker)
	if err != nil {
		return fmt.Errorf("failed to evict %s from cache: %w", ticker, err)
	}
	log.Printf("[WARN] %s is unknown to %s, evicted %d cached points", ticker, f.provider.Name(), n)
	f.publish(ctx, models.MarketDataEvent{EventType: models.EventSymbolEvicted, Symbol: string(ticker), Points: int(n)})
	return cause
}

func (f *Fetcher) publish(ctx context.Context, event models.MarketDataEvent) {
	if f.publisher == nil {
		return
	}
	event.Timestamp = f.now().UTC()
	event.Remaining = f.limiter.Remaining(ctx)
	if err := f.publisher.PublishMarketData(ctx, event); err != nil {
		log.Printf("[WARN] failed to publish %s for %s: %v", event.EventType, event.Symbol, err)
	}
}

func (f *Fetcher) lock(ticker models.Ticker) func() {
	f.locksMu.Lock()
	m, ok := f.locks[ticker]
	if !ok {
		m = &sync.Mutex{}
		f.locks[ticker] = m
	}
	f.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}

// decodeEntries decodes cached entries; keep, when set, filters by fetch time
func decodeEntries(ticker models.Ticker, entries []*models.CacheEntry, keep func(time.Time) bool) (models.TimeSeries, error) {
	points := make([]models.PricePoint, 0, len(entries))
	for _, e := range entries {
		if keep != nil && !keep(e.FetchedAt) {
			continue
		}
		p, err := DecodeEntry(e)
		if err != nil {
			return models.TimeSeries{}, err
		}
		points = append(points, p)
	}
	return models.NewTimeSeries(ticker, points), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(models.DateLayout)
}
