package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// UpsertCacheEntry inserts a cache entry or replaces the one stored for the same symbol and date
func (db *DB) UpsertCacheEntry(e *models.CacheEntry) error {
	query := `
		INSERT INTO market_data_cache (symbol, date, payload, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol, date) DO UPDATE SET
			payload = EXCLUDED.payload,
			fetched_at = EXCLUDED.fetched_at
	`
	_, err := db.conn.Exec(query, string(e.Ticker), models.Day(e.Date), e.Payload, e.FetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry for %s on %s: %w", e.Ticker, e.Date.Format(models.DateLayout), err)
	}
	return nil
}

// UpsertCacheEntries writes a batch of cache entries in one transaction
func (db *DB) UpsertCacheEntries(entries []*models.CacheEntry) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO market_data_cache (symbol, date, payload, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol, date) DO UPDATE SET
			payload = EXCLUDED.payload,
			fetched_at = EXCLUDED.fetched_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(string(e.Ticker), models.Day(e.Date), e.Payload, e.FetchedAt.UTC()); err != nil {
			return fmt.Errorf("failed to upsert cache entry for %s: %w", e.Ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetCacheEntry retrieves the entry for an exact symbol and date.
// It returns ErrNotFound when there is none.
func (db *DB) GetCacheEntry(symbol string, date time.Time) (*models.CacheEntry, error) {
	query := `
		SELECT symbol, date, payload, fetched_at
		FROM market_data_cache
		WHERE symbol = $1 AND date = $2
	`
	e, err := scanCacheEntry(db.conn.QueryRow(query, symbol, models.Day(date)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return e, nil
}

// GetCacheEntriesRange retrieves the entries for a symbol within a date range, ordered by date ascending
func (db *DB) GetCacheEntriesRange(symbol string, startDate, endDate time.Time) ([]*models.CacheEntry, error) {
	query := `
		SELECT symbol, date, payload, fetched_at
		FROM market_data_cache
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`
	rows, err := db.conn.Query(query, symbol, models.Day(startDate), models.Day(endDate))
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry range: %w", err)
	}
	defer rows.Close()

	var entries []*models.CacheEntry
	for rows.Next() {
		e, err := scanCacheEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cache entries: %w", err)
	}

	return entries, nil
}

// GetLatestCacheEntry retrieves the most recent entry for a symbol dated on or before the given date.
// It returns ErrNotFound when there is none.
func (db *DB) GetLatestCacheEntry(symbol string, onOrBefore time.Time) (*models.CacheEntry, error) {
	query := `
		SELECT symbol, date, payload, fetched_at
		FROM market_data_cache
		WHERE symbol = $1 AND date <= $2
		ORDER BY date DESC
		LIMIT 1
	`
	e, err := scanCacheEntry(db.conn.QueryRow(query, symbol, models.Day(onOrBefore)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest cache entry: %w", err)
	}
	return e, nil
}

// DeleteCacheEntriesBySymbol removes every cached entry for a symbol
func (db *DB) DeleteCacheEntriesBySymbol(symbol string) (int64, error) {
	query := `DELETE FROM market_data_cache WHERE symbol = $1`
	result, err := db.conn.Exec(query, symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache entries for %s: %w", symbol, err)
	}
	return result.RowsAffected()
}

// DeleteCacheEntriesOlderThan removes entries dated before the given date
func (db *DB) DeleteCacheEntriesOlderThan(date time.Time) (int64, error) {
	query := `DELETE FROM market_data_cache WHERE date < $1`
	result, err := db.conn.Exec(query, models.Day(date))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old cache entries: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCacheEntry(row rowScanner) (*models.CacheEntry, error) {
	var (
		e      models.CacheEntry
		symbol string
	)
	if err := row.Scan(&symbol, &e.Date, &e.Payload, &e.FetchedAt); err != nil {
		return nil, err
	}
	e.Ticker = models.Ticker(symbol)
	e.Date = models.Day(e.Date)
	e.FetchedAt = e.FetchedAt.UTC()
	return &e, nil
}
