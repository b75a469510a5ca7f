package cache

import (
	"errors"
	"time"

	"github.com/trogers1052/portfolio-tracker/internal/database"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// Repository is the subset of *database.DB the Postgres store needs
type Repository interface {
	UpsertCacheEntry(e *models.CacheEntry) error
	UpsertCacheEntries(entries []*models.CacheEntry) error
	GetCacheEntry(symbol string, date time.Time) (*models.CacheEntry, error)
	GetCacheEntriesRange(symbol string, startDate, endDate time.Time) ([]*models.CacheEntry, error)
	GetLatestCacheEntry(symbol string, onOrBefore time.Time) (*models.CacheEntry, error)
	DeleteCacheEntriesOlderThan(date time.Time) (int64, error)
	DeleteCacheEntriesBySymbol(symbol string) (int64, error)
	UpsertSyncRecord(r *models.SyncRecord) error
	GetSyncRecord(symbol string) (*models.SyncRecord, error)
	ClampSyncRecords(cutoff time.Time) (int64, error)
	DeleteSyncRecord(symbol string) error
}

// PostgresStore is the durable Store backed by the market_data_cache table
type PostgresStore struct {
	repo   Repository
	policy Policy
	now    func() time.Time
}

// NewPostgresStore creates a Store over repo
func NewPostgresStore(repo Repository, policy Policy) *PostgresStore {
	return &PostgresStore{repo: repo, policy: policy, now: time.Now}
}

// WithClock replaces the time source, used to simulate day rollover
func (s *PostgresStore) WithClock(now func() time.Time) *PostgresStore {
	s.now = now
	return s
}

func (s *PostgresStore) Get(ticker models.Ticker, date time.Time) (*models.CacheEntry, bool, error) {
	e, err := s.repo.GetCacheEntry(string(ticker), date)
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("get", err)
	}
	return e, true, nil
}

func (s *PostgresStore) Put(ticker models.Ticker, date time.Time, payload []byte) error {
	e := &models.CacheEntry{Ticker: ticker, Date: models.Day(date), Payload: payload, FetchedAt: s.now().UTC()}
	if err := s.repo.UpsertCacheEntry(e); err != nil {
		return unavailable("put", err)
	}
	return nil
}

func (s *PostgresStore) PutBatch(ticker models.Ticker, payloads map[time.Time][]byte) error {
	if len(payloads) == 0 {
		return nil
	}
	fetchedAt := s.now().UTC()
	entries := make([]*models.CacheEntry, 0, len(payloads))
	for date, payload := range payloads {
		entries = append(entries, &models.CacheEntry{Ticker: ticker, Date: models.Day(date), Payload: payload, FetchedAt: fetchedAt})
	}
	if err := s.repo.UpsertCacheEntries(entries); err != nil {
		return unavailable("put batch", err)
	}
	return nil
}

func (s *PostgresStore) IsFresh(ticker models.Ticker, date time.Time) (bool, error) {
	e, found, err := s.Get(ticker, date)
	if err != nil || !found {
		return false, err
	}
	return s.Fresh(e.FetchedAt), nil
}

func (s *PostgresStore) Range(ticker models.Ticker, start, end time.Time) ([]*models.CacheEntry, error) {
	entries, err := s.repo.GetCacheEntriesRange(string(ticker), start, end)
	if err != nil {
		return nil, unavailable("range", err)
	}
	return entries, nil
}

func (s *PostgresStore) Latest(ticker models.Ticker, onOrBefore time.Time) (*models.CacheEntry, bool, error) {
	e, err := s.repo.GetLatestCacheEntry(string(ticker), onOrBefore)
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("latest", err)
	}
	return e, true, nil
}

func (s *PostgresStore) Sync(ticker models.Ticker) (*models.SyncRecord, bool, error) {
	r, err := s.repo.GetSyncRecord(string(ticker))
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("sync lookup", err)
	}
	return r, true, nil
}

func (s *PostgresStore) RecordSync(rec *models.SyncRecord) error {
	if err := s.repo.UpsertSyncRecord(rec); err != nil {
		return unavailable("record sync", err)
	}
	return nil
}

func (s *PostgresStore) PruneOlderThan(date time.Time) (int64, error) {
	n, err := s.repo.DeleteCacheEntriesOlderThan(date)
	if err != nil {
		return 0, unavailable("prune", err)
	}
	if _, err := s.repo.ClampSyncRecords(date); err != nil {
		return n, unavailable("prune", err)
	}
	return n, nil
}

func (s *PostgresStore) Evict(ticker models.Ticker) (int64, error) {
	n, err := s.repo.DeleteCacheEntriesBySymbol(string(ticker))
	if err != nil {
		return 0, unavailable("evict", err)
	}
	if err := s.repo.DeleteSyncRecord(string(ticker)); err != nil {
		return n, unavailable("evict", err)
	}
	return n, nil
}

func (s *PostgresStore) Fresh(fetchedAt time.Time) bool {
	return s.policy.Fresh(fetchedAt, s.now())
}
