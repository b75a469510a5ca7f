package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// UpsertOverview stores the latest provider profile of a symbol
func (db *DB) UpsertOverview(o *models.Overview) error {
	query := `
		INSERT INTO ticker_overview (symbol, name, sector, asset_class, fetched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			sector = EXCLUDED.sector,
			asset_class = EXCLUDED.asset_class,
			fetched_at = EXCLUDED.fetched_at
	`
	c := o.Classification
	_, err := db.conn.Exec(query, string(o.Ticker), c.Name, c.Sector, c.AssetClass, o.FetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert overview for %s: %w", o.Ticker, err)
	}
	return nil
}

// GetOverview retrieves the stored profile of a symbol.
// It returns ErrNotFound when the symbol was never looked up.
func (db *DB) GetOverview(symbol string) (*models.Overview, error) {
	query := `
		SELECT symbol, name, sector, asset_class, fetched_at
		FROM ticker_overview
		WHERE symbol = $1
	`
	var (
		o   models.Overview
		sym string
	)
	err := db.conn.QueryRow(query, symbol).Scan(&sym, &o.Classification.Name, &o.Classification.Sector, &o.Classification.AssetClass, &o.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get overview: %w", err)
	}

	o.Ticker = models.Ticker(sym)
	o.FetchedAt = o.FetchedAt.UTC()
	return &o, nil
}
