// Package ratelimit tracks the daily quota of calls to the market data provider.
package ratelimit

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// Store holds the number of calls used per UTC day. Days are keyed YYYY-MM-DD.
// Acquire and Exhaust must be atomic in the store itself, so several processes
// sharing one store can never be granted more than allowed calls for a day.
type Store interface {
	// Load returns the count for day, zero when nothing was recorded
	Load(ctx context.Context, day string) (int, error)
	// Acquire increments the count for day unless it already reached allowed.
	// It returns the count after the attempt and whether a call was granted.
	Acquire(ctx context.Context, day string, allowed int) (used int, granted bool, err error)
	// Exhaust raises the count for day to allowed
	Exhaust(ctx context.Context, day string, allowed int) error
}

// Budget is the arbiter of the daily call quota. The check-and-increment is
// delegated to the Store under one mutex; the store makes it atomic across
// processes and the mutex keeps one process from racing itself.
type Budget struct {
	mu      sync.Mutex
	allowed int
	store   Store
	now     func() time.Time
}

// NewBudget creates a budget allowing the given number of calls per UTC day.
// store may be nil, in which case the count lives only in this process.
func NewBudget(allowed int, store Store) *Budget {
	if allowed < 0 {
		allowed = 0
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Budget{allowed: allowed, store: store, now: time.Now}
}

// WithClock replaces the time source
func (b *Budget) WithClock(now func() time.Time) *Budget {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
	return b
}

// TryAcquire grants one external call if the current UTC day still has budget.
// A granted call is never given back, even if the call later fails. A store
// failure denies the call.
func (b *Budget) TryAcquire(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	day := b.today()
	used, granted, err := b.store.Acquire(ctx, day, b.allowed)
	if err != nil {
		log.Printf("[ERROR] failed to acquire rate budget for %s, treating as exhausted: %v", day, err)
		return false
	}
	if !granted {
		log.Printf("[WARN] rate budget exhausted for %s (%d/%d)", day, used, b.allowed)
		return false
	}
	log.Printf("[INFO] rate budget granted call %d/%d for %s", used, b.allowed, day)
	return true
}

// Remaining returns the calls still permitted today without consuming any
func (b *Budget) Remaining(ctx context.Context) int {
	return b.Snapshot(ctx).Remaining()
}

// Snapshot returns the budget state for the current UTC day as recorded in the
// store. An unreadable store reports the day as spent.
func (b *Budget) Snapshot(ctx context.Context) models.RateBudget {
	b.mu.Lock()
	defer b.mu.Unlock()

	day := models.Day(b.now())
	used, err := b.store.Load(ctx, day.Format(models.DateLayout))
	if err != nil {
		log.Printf("[ERROR] failed to load rate budget for %s: %v", day.Format(models.DateLayout), err)
		used = b.allowed
	}
	return models.RateBudget{Day: day, CallsUsed: used, CallsAllowed: b.allowed}
}

// Exhaust marks today's budget as fully spent. It is used when the provider
// reports that the quota is gone before the local count says so.
func (b *Budget) Exhaust(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	day := b.today()
	if err := b.store.Exhaust(ctx, day, b.allowed); err != nil {
		log.Printf("[ERROR] failed to mark rate budget exhausted for %s: %v", day, err)
	}
}

func (b *Budget) today() string {
	return models.Day(b.now()).Format(models.DateLayout)
}

// MemoryStore keeps the daily counts in process memory
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]int)}
}

func (s *MemoryStore) Load(_ context.Context, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[day], nil
}

func (s *MemoryStore) Acquire(_ context.Context, day string, allowed int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.counts[day]
	if used >= allowed {
		return used, false, nil
	}
	used++
	s.counts[day] = used
	return used, true, nil
}

func (s *MemoryStore) Exhaust(_ context.Context, day string, allowed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.counts[day] < allowed {
		s.counts[day] = allowed
	}
	return nil
}
