package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used in payloads, URLs and CSV
const DateLayout = "2006-01-02"

// PricePoint is one daily observation for a ticker
type PricePoint struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open,omitempty"`
	High   decimal.Decimal `json:"high,omitempty"`
	Low    decimal.Decimal `json:"low,omitempty"`
	Close  decimal.Decimal `json:"close"`
	Volume *int64          `json:"volume,omitempty"`
}

// TimeSeries is the date-ascending, duplicate-free price history of one ticker
type TimeSeries struct {
	Ticker Ticker       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// Day truncates t to midnight UTC of its UTC calendar date
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar date
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// NewTimeSeries builds a normalized series. When two points share a date the
// one appearing later in points wins.
func NewTimeSeries(ticker Ticker, points []PricePoint) TimeSeries {
	byDate := make(map[time.Time]PricePoint, len(points))
	for _, p := range points {
		p.Date = Day(p.Date)
		byDate[p.Date] = p
	}

	out := make([]PricePoint, 0, len(byDate))
	for _, p := range byDate {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	return TimeSeries{Ticker: ticker, Points: out}
}

// Between returns the points with start <= date <= end
func (s TimeSeries) Between(start, end time.Time) TimeSeries {
	start, end = Day(start), Day(end)
	var out []PricePoint
	for _, p := range s.Points {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		out = append(out, p)
	}
	return TimeSeries{Ticker: s.Ticker, Points: out}
}

// LatestOnOrBefore returns the most recent point dated on or before day
func (s TimeSeries) LatestOnOrBefore(day time.Time) (PricePoint, bool) {
	day = Day(day)
	for i := len(s.Points) - 1; i >= 0; i-- {
		if !s.Points[i].Date.After(day) {
			return s.Points[i], true
		}
	}
	return PricePoint{}, false
}

// Len returns the number of points
func (s TimeSeries) Len() int { return len(s.Points) }
