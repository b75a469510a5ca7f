package models

import "time"

// CacheEntry is the raw provider payload stored for one ticker and date
type CacheEntry struct {
	Ticker    Ticker    `json:"symbol"`
	Date      time.Time `json:"date"`
	Payload   []byte    `json:"payload"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SyncRecord remembers the last successful provider call for a ticker and
// the span of dates it returned
type SyncRecord struct {
	Ticker    Ticker    `json:"symbol"`
	SyncedAt  time.Time `json:"synced_at"`
	FirstDate time.Time `json:"first_date"`
	LastDate  time.Time `json:"last_date"`
	Points    int       `json:"points"`
	// Full is set when the call returned the ticker's whole history, so no
	// earlier date can be missing from the cache
	Full bool `json:"full_history"`
}
