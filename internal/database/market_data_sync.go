package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// UpsertSyncRecord records the latest successful provider call for a symbol
func (db *DB) UpsertSyncRecord(r *models.SyncRecord) error {
	query := `
		INSERT INTO market_data_sync (symbol, synced_at, first_date, last_date, points, full_history)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol) DO UPDATE SET
			synced_at = EXCLUDED.synced_at,
			first_date = EXCLUDED.first_date,
			last_date = EXCLUDED.last_date,
			points = EXCLUDED.points,
			full_history = EXCLUDED.full_history
	`
	var first, last sql.NullTime
	if r.Points > 0 {
		first = sql.NullTime{Time: models.Day(r.FirstDate), Valid: true}
		last = sql.NullTime{Time: models.Day(r.LastDate), Valid: true}
	}

	_, err := db.conn.Exec(query, string(r.Ticker), r.SyncedAt.UTC(), first, last, r.Points, r.Full)
	if err != nil {
		return fmt.Errorf("failed to upsert sync record for %s: %w", r.Ticker, err)
	}
	return nil
}

// GetSyncRecord retrieves the sync record for a symbol.
// It returns ErrNotFound when the symbol was never synced.
func (db *DB) GetSyncRecord(symbol string) (*models.SyncRecord, error) {
	query := `
		SELECT symbol, synced_at, first_date, last_date, points, full_history
		FROM market_data_sync
		WHERE symbol = $1
	`
	var (
		r           models.SyncRecord
		sym         string
		first, last sql.NullTime
	)
	err := db.conn.QueryRow(query, symbol).Scan(&sym, &r.SyncedAt, &first, &last, &r.Points, &r.Full)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync record: %w", err)
	}

	r.Ticker = models.Ticker(sym)
	r.SyncedAt = r.SyncedAt.UTC()
	if first.Valid {
		r.FirstDate = models.Day(first.Time)
	}
	if last.Valid {
		r.LastDate = models.Day(last.Time)
	}
	return &r, nil
}

// ClampSyncRecords moves the first date of every sync record that starts
// before cutoff up to cutoff and clears its full history flag. It runs after
// old cache entries are deleted so no record claims coverage the cache lost.
func (db *DB) ClampSyncRecords(cutoff time.Time) (int64, error) {
	query := `
		UPDATE market_data_sync
		SET first_date = $1, full_history = false
		WHERE first_date < $1
	`
	result, err := db.conn.Exec(query, models.Day(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to clamp sync records: %w", err)
	}
	return result.RowsAffected()
}

// DeleteSyncRecord removes the sync record of a symbol
func (db *DB) DeleteSyncRecord(symbol string) error {
	query := `DELETE FROM market_data_sync WHERE symbol = $1`
	if _, err := db.conn.Exec(query, symbol); err != nil {
		return fmt.Errorf("failed to delete sync record for %s: %w", symbol, err)
	}
	return nil
}
