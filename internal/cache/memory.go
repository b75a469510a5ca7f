package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/trogers1052/portfolio-tracker/internal/models"
)

type memoryKey struct {
	ticker models.Ticker
	date   time.Time
}

// MemoryStore is a process-local Store. It does not survive restarts and is
// meant for tests and one-shot CLI runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[memoryKey]models.CacheEntry
	syncs   map[models.Ticker]models.SyncRecord
	policy  Policy
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(policy Policy) *MemoryStore {
	return &MemoryStore{
		entries: make(map[memoryKey]models.CacheEntry),
		syncs:   make(map[models.Ticker]models.SyncRecord),
		policy:  policy,
		now:     time.Now,
	}
}

// WithClock replaces the time source
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Get(ticker models.Ticker, date time.Time) (*models.CacheEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[memoryKey{ticker, models.Day(date)}]
	if !ok {
		return nil, false, nil
	}
	return cloneEntry(e), true, nil
}

func (s *MemoryStore) Put(ticker models.Ticker, date time.Time, payload []byte) error {
	return s.PutBatch(ticker, map[time.Time][]byte{date: payload})
}

func (s *MemoryStore) PutBatch(ticker models.Ticker, payloads map[time.Time][]byte) error {
	fetchedAt := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for date, payload := range payloads {
		day := models.Day(date)
		s.entries[memoryKey{ticker, day}] = models.CacheEntry{
			Ticker:    ticker,
			Date:      day,
			Payload:   append([]byte(nil), payload...),
			FetchedAt: fetchedAt,
		}
	}
	return nil
}

func (s *MemoryStore) IsFresh(ticker models.Ticker, date time.Time) (bool, error) {
	e, found, _ := s.Get(ticker, date)
	if !found {
		return false, nil
	}
	return s.Fresh(e.FetchedAt), nil
}

func (s *MemoryStore) Range(ticker models.Ticker, start, end time.Time) ([]*models.CacheEntry, error) {
	start, end = models.Day(start), models.Day(end)
	s.mu.RLock()
	var out []*models.CacheEntry
	for k, e := range s.entries {
		if k.ticker != ticker || k.date.Before(start) || k.date.After(end) {
			continue
		}
		out = append(out, cloneEntry(e))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *MemoryStore) Latest(ticker models.Ticker, onOrBefore time.Time) (*models.CacheEntry, bool, error) {
	day := models.Day(onOrBefore)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *models.CacheEntry
	for k, e := range s.entries {
		if k.ticker != ticker || k.date.After(day) {
			continue
		}
		if best == nil || k.date.After(best.Date) {
			best = cloneEntry(e)
		}
	}
	return best, best != nil, nil
}

func (s *MemoryStore) Sync(ticker models.Ticker) (*models.SyncRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.syncs[ticker]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (s *MemoryStore) RecordSync(rec *models.SyncRecord) error {
	s.mu.Lock()
	s.syncs[rec.Ticker] = *rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) PruneOlderThan(date time.Time) (int64, error) {
	day := models.Day(date)
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.entries {
		if k.date.Before(day) {
			delete(s.entries, k)
			n++
		}
	}
	for t, r := range s.syncs {
		if !r.FirstDate.IsZero() && r.FirstDate.Before(day) {
			r.FirstDate = day
			r.Full = false
			s.syncs[t] = r
		}
	}
	return n, nil
}

func (s *MemoryStore) Evict(ticker models.Ticker) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.entries {
		if k.ticker == ticker {
			delete(s.entries, k)
			n++
		}
	}
	delete(s.syncs, ticker)
	return n, nil
}

func (s *MemoryStore) Fresh(fetchedAt time.Time) bool {
	return s.policy.Fresh(fetchedAt, s.now())
}

func cloneEntry(e models.CacheEntry) *models.CacheEntry {
	e.Payload = append([]byte(nil), e.Payload...)
	return &e
}
