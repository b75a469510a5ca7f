package models

import "time"

// Market data event types
const (
	EventSeriesRefreshed = "SERIES_REFRESHED"
	EventBudgetExhausted = "BUDGET_EXHAUSTED"
	EventSymbolEvicted   = "SYMBOL_EVICTED"
	EventWarmCache       = "WARM_CACHE"
)

// MarketDataEvent is published after the fetch layer talks to the provider
type MarketDataEvent struct {
	EventType string    `json:"event_type"`
	Symbol    string    `json:"symbol,omitempty"`
	Points    int       `json:"points,omitempty"`
	FirstDate string    `json:"first_date,omitempty"`
	LastDate  string    `json:"last_date,omitempty"`
	Remaining int       `json:"remaining"`
	Timestamp time.Time `json:"timestamp"`
}

// CacheWarmRequest asks the service to pre-load the cache for some symbols.
// Start and End are YYYY-MM-DD; both are optional.
type CacheWarmRequest struct {
	EventType string   `json:"event_type"`
	Symbols   []string `json:"symbols"`
	Start     string   `json:"start,omitempty"`
	End       string   `json:"end,omitempty"`
}
