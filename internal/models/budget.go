package models

import "time"

// DefaultDailyRateLimit is the free-tier quota of the market data provider
const DefaultDailyRateLimit = 15

// RateBudget is the count of external calls made on one UTC day
type RateBudget struct {
	Day          time.Time `json:"day"`
	CallsUsed    int       `json:"calls_used"`
	CallsAllowed int       `json:"calls_allowed"`
}

// Remaining returns how many calls are still permitted for Day
func (b RateBudget) Remaining() int {
	if b.CallsUsed >= b.CallsAllowed {
		return 0
	}
	return b.CallsAllowed - b.CallsUsed
}
