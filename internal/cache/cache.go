// Package cache stores raw market data payloads keyed by ticker and date and
// decides whether a stored payload is still fresh.
package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// ErrCacheUnavailable marks storage faults. Callers must not treat it as a miss.
var ErrCacheUnavailable = errors.New("cache unavailable")

// UnavailableError wraps the storage fault behind a failed cache operation
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("cache unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCacheUnavailable) match
func (e *UnavailableError) Is(target error) bool { return target == ErrCacheUnavailable }

func unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}

// Store is the durable (ticker, date) -> payload cache
type Store interface {
	// Get returns the entry for the exact key; found is false when absent
	Get(ticker models.Ticker, date time.Time) (entry *models.CacheEntry, found bool, err error)
	// Put upserts a payload and stamps it with the current time
	Put(ticker models.Ticker, date time.Time, payload []byte) error
	// PutBatch upserts several payloads of one ticker with a single timestamp
	PutBatch(ticker models.Ticker, payloads map[time.Time][]byte) error
	// IsFresh reports whether an entry exists and was fetched within the freshness window
	IsFresh(ticker models.Ticker, date time.Time) (bool, error)
	// Range returns every entry of ticker dated within [start, end], ascending
	Range(ticker models.Ticker, start, end time.Time) ([]*models.CacheEntry, error)
	// Latest returns the most recent entry dated on or before the given day
	Latest(ticker models.Ticker, onOrBefore time.Time) (*models.CacheEntry, bool, error)
	// Sync returns the last successful provider sync for ticker
	Sync(ticker models.Ticker) (*models.SyncRecord, bool, error)
	// RecordSync stores a sync record
	RecordSync(rec *models.SyncRecord) error
	// PruneOlderThan removes entries dated before the given day and narrows
	// every sync record so it no longer claims the removed dates
	PruneOlderThan(date time.Time) (int64, error)
	// Evict drops every entry and the sync record of ticker
	Evict(ticker models.Ticker) (int64, error)
	// Fresh applies the store's freshness policy to a fetch timestamp
	Fresh(fetchedAt time.Time) bool
}

// Policy decides how long a fetched payload stays fresh
type Policy struct {
	// TTL of zero means "until the end of the UTC day it was fetched on"
	TTL time.Duration
}

// Fresh reports whether something fetched at fetchedAt is still fresh at now
func (p Policy) Fresh(fetchedAt, now time.Time) bool {
	if fetchedAt.IsZero() {
		return false
	}
	if p.TTL <= 0 {
		return models.SameDay(fetchedAt, now)
	}
	return now.Sub(fetchedAt) < p.TTL
}
