// Package scheduler runs the cache maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// WarmWindow is how far back the warm job loads each symbol
const WarmWindow = 30 * 24 * time.Hour

// Pruner deletes cache entries dated before a day
type Pruner interface {
	PruneOlderThan(date time.Time) (int64, error)
}

// Warmer loads tickers into the cache
type Warmer interface {
	Warm(ctx context.Context, tickers []models.Ticker, start, end time.Time) int
}

// Scheduler manages the cron tasks
type Scheduler struct {
	Cron      *cron.Cron
	Pruner    Pruner
	Warmer    Warmer
	Retention time.Duration
	Symbols   []models.Ticker
	Ctx       context.Context

	now func() time.Time
}

// NewScheduler creates a new Scheduler. Cron expressions include a seconds field.
func NewScheduler(ctx context.Context, pruner Pruner, warmer Warmer, retention time.Duration, symbols []models.Ticker) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		Pruner:    pruner,
		Warmer:    warmer,
		Retention: retention,
		Symbols:   symbols,
		Ctx:       ctx,
		now:       time.Now,
	}
}

// RegisterAll registers the prune and warm tasks. An empty cron expression disables a task,
// and the warm task is skipped when no symbols are configured.
func (s *Scheduler) RegisterAll(pruneCron, warmCron string) error {
	if pruneCron != "" {
		if _, err := s.Cron.AddFunc(pruneCron, func() { s.RunPrune() }); err != nil {
			return fmt.Errorf("register prune task: %w", err)
		}
	}
	if warmCron != "" && len(s.Symbols) > 0 {
		if _, err := s.Cron.AddFunc(warmCron, func() { s.RunWarm() }); err != nil {
			return fmt.Errorf("register warm task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Printf("[INFO] scheduler started with %d tasks", len(s.Cron.Entries()))
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunPrune deletes cache entries older than the retention window
func (s *Scheduler) RunPrune() (int64, error) {
	cutoff := models.Day(s.now().Add(-s.Retention))
	n, err := s.Pruner.PruneOlderThan(cutoff)
	if err != nil {
		log.Printf("[ERROR] cache prune: %v", err)
		return 0, err
	}
	log.Printf("[INFO] pruned %d cache entries dated before %s", n, cutoff.Format(models.DateLayout))
	return n, nil
}

// RunWarm fetches the configured symbols so later requests hit the cache
func (s *Scheduler) RunWarm() int {
	end := models.Day(s.now())
	start := end.Add(-WarmWindow)
	log.Printf("[INFO] warming cache for %d symbols", len(s.Symbols))
	return s.Warmer.Warm(s.Ctx, s.Symbols, start, end)
}
