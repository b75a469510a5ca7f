package sectors

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/trogers1052/portfolio-tracker/internal/database"
	"github.com/trogers1052/portfolio-tracker/internal/marketdata"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// OverviewTTL is how long a fetched profile is used before it is refreshed
const OverviewTTL = 7 * 24 * time.Hour

// OverviewSource fetches a ticker's profile from the market data provider
type OverviewSource interface {
	Overview(ctx context.Context, ticker models.Ticker) (models.Classification, error)
}

// OverviewRepository stores fetched profiles
type OverviewRepository interface {
	UpsertOverview(o *models.Overview) error
	GetOverview(symbol string) (*models.Overview, error)
}

// Limiter is the provider call budget shared with price fetches
type Limiter interface {
	TryAcquire(ctx context.Context) bool
	Exhaust(ctx context.Context)
}

// Resolver classifies tickers from provider profiles refreshed weekly. Every
// refresh is charged to the daily call budget. When no profile can be had the
// static Table answers. Tickers listed in a sector map file always use the file.
type Resolver struct {
	table   *Table
	source  OverviewSource
	repo    OverviewRepository
	limiter Limiter
	ttl     time.Duration
	now     func() time.Time

	// serializes refreshes so concurrent snapshots never pay twice for one ticker
	mu sync.Mutex
}

// NewResolver creates a Resolver that answers from table alone until
// WithOverviews is called
func NewResolver(table *Table) *Resolver {
	return &Resolver{table: table, ttl: OverviewTTL, now: time.Now}
}

// WithOverviews enables provider profiles
func (r *Resolver) WithOverviews(source OverviewSource, repo OverviewRepository, limiter Limiter) *Resolver {
	r.source = source
	r.repo = repo
	r.limiter = limiter
	return r
}

// WithClock replaces the time source
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Classify returns the classification of ticker. It never fails: storage and
// provider faults are logged and the static table is used instead.
func (r *Resolver) Classify(ctx context.Context, ticker models.Ticker) models.Classification {
	if r.source == nil || r.table.Overridden(ticker) {
		return r.table.Classify(ticker)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cached, err := r.repo.GetOverview(string(ticker))
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		log.Printf("[WARN] failed to read profile of %s, using sector table: %v", ticker, err)
		return r.table.Classify(ticker)
	}
	if cached != nil && r.now().Sub(cached.FetchedAt) < r.ttl {
		return r.merge(ticker, cached)
	}

	if fetched, ok := r.refresh(ctx, ticker); ok {
		return r.merge(ticker, fetched)
	}
	if cached != nil {
		return r.merge(ticker, cached)
	}
	return r.table.Classify(ticker)
}

// refresh fetches and stores a new profile if the budget allows a call
func (r *Resolver) refresh(ctx context.Context, ticker models.Ticker) (*models.Overview, bool) {
	if !r.limiter.TryAcquire(ctx) {
		log.Printf("[INFO] no rate budget left to refresh profile of %s", ticker)
		return nil, false
	}

	c, err := r.source.Overview(ctx, ticker)
	switch {
	case errors.Is(err, marketdata.ErrUnknownSymbol):
		// remembered as an empty profile so the budget is not spent on it again this week
		c = models.Classification{}
	case err != nil:
		var fe *marketdata.FetchError
		if errors.As(err, &fe) && fe.Reason == marketdata.ReasonRateLimitExhausted {
			r.limiter.Exhaust(ctx)
		}
		log.Printf("[WARN] failed to fetch profile of %s: %v", ticker, err)
		return nil, false
	}

	o := &models.Overview{Ticker: ticker, Classification: c, FetchedAt: r.now().UTC()}
	if err := r.repo.UpsertOverview(o); err != nil {
		log.Printf("[WARN] failed to store profile of %s: %v", ticker, err)
	}
	log.Printf("[INFO] refreshed profile of %s: sector %q, asset class %q", ticker, c.Sector, c.AssetClass)
	return o, true
}

// merge fills what the profile lacks from the table
func (r *Resolver) merge(ticker models.Ticker, o *models.Overview) models.Classification {
	base := r.table.Classify(ticker)
	if o.Empty() {
		return base
	}

	c := o.Classification
	if c.Name == "" {
		c.Name = base.Name
	}
	if c.Sector == "" {
		c.Sector = base.Sector
	}
	if c.AssetClass == "" || c.AssetClass == models.AssetClassUnknown {
		c.AssetClass = base.AssetClass
	}
	return c
}
