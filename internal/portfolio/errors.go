package portfolio

import (
	"fmt"

	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// Aggregation failure reasons. Fetch failures carry the marketdata reason
// (rate_limit_exhausted, provider_error, timeout) unchanged.
const (
	ReasonNoHoldings       = "no_holdings"
	ReasonInvalidRange     = "invalid_range"
	ReasonNoData           = "no_data"
	ReasonCacheUnavailable = "cache_unavailable"
	ReasonInternal         = "internal_error"
)

// AggregationError means the snapshot could not be built because one holding
// has no data at all
type AggregationError struct {
	Ticker models.Ticker
	Reason string
	Err    error
}

func (e *AggregationError) Error() string {
	switch {
	case e.Ticker == "" && e.Err == nil:
		return fmt.Sprintf("aggregate: %s", e.Reason)
	case e.Err == nil:
		return fmt.Sprintf("aggregate %s: %s", e.Ticker, e.Reason)
	default:
		return fmt.Sprintf("aggregate %s: %s: %v", e.Ticker, e.Reason, e.Err)
	}
}

func (e *AggregationError) Unwrap() error { return e.Err }
