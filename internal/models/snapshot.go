package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset class constants
const (
	AssetClassEquity    = "Equity"
	AssetClassETF       = "ETF"
	AssetClassBond      = "Bond"
	AssetClassCommodity = "Commodity"
	AssetClassUnknown   = "Unknown"
)

// SectorUnknown is used when a ticker has no classification
const SectorUnknown = "Unknown"

// Classification groups a ticker for allocation breakdowns
type Classification struct {
	Name       string `json:"name,omitempty" yaml:"name"`
	Sector     string `json:"sector" yaml:"sector"`
	AssetClass string `json:"asset_class" yaml:"asset_class"`
}

// ValuePoint is the portfolio value on one date
type ValuePoint struct {
	Date    time.Time       `json:"date"`
	Value   decimal.Decimal `json:"value"`
	Partial bool            `json:"partial"`
	Missing []Ticker        `json:"missing,omitempty"`
}

// Allocation is the share of portfolio value held in one group
type Allocation struct {
	Name    string          `json:"name"`
	Value   decimal.Decimal `json:"value"`
	Percent decimal.Decimal `json:"percent"`
}

// PositionSummary is one holding valued at its latest available close
type PositionSummary struct {
	Ticker      Ticker          `json:"symbol"`
	Name        string          `json:"name,omitempty"`
	Sector      string          `json:"sector"`
	AssetClass  string          `json:"asset_class"`
	Shares      int64           `json:"shares"`
	LatestClose decimal.Decimal `json:"latest_close"`
	LatestDate  time.Time       `json:"latest_date"`
	Value       decimal.Decimal `json:"value"`
	Weight      decimal.Decimal `json:"weight_pct"`
	TotalReturn decimal.Decimal `json:"total_return"`
	Volatility  decimal.Decimal `json:"volatility"`
	Stale       bool            `json:"stale"`
}

// PortfolioMetrics are the summary statistics of the value series
type PortfolioMetrics struct {
	InitialValue decimal.Decimal `json:"initial_value"`
	FinalValue   decimal.Decimal `json:"final_value"`
	TotalReturn  decimal.Decimal `json:"total_return"`
	Volatility   decimal.Decimal `json:"volatility"`
	MaxDrawdown  decimal.Decimal `json:"max_drawdown"`
	TradingDays  int             `json:"trading_days"`
}

// PortfolioSnapshot is the computed view of a set of holdings over a date range.
// It is rebuilt on every request and never persisted.
type PortfolioSnapshot struct {
	Start                time.Time         `json:"start"`
	End                  time.Time         `json:"end"`
	TotalValue           decimal.Decimal   `json:"total_value"`
	Series               []ValuePoint      `json:"series"`
	Positions            []PositionSummary `json:"positions"`
	SectorAllocation     []Allocation      `json:"sector_allocation"`
	AssetClassAllocation []Allocation      `json:"asset_class_allocation"`
	Metrics              PortfolioMetrics  `json:"metrics"`
	PartialDates         []time.Time       `json:"partial_dates,omitempty"`
	StaleTickers         []Ticker          `json:"stale_tickers,omitempty"`
	RateBudgetRemaining  int               `json:"rate_budget_remaining"`
}

// Stale reports whether any holding was served from out-of-date cache
func (s *PortfolioSnapshot) Stale() bool {
	return len(s.StaleTickers) > 0
}
