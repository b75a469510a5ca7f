package marketdata

import (
	"errors"
	"fmt"

	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// Fetch failure reasons
const (
	ReasonRateLimitExhausted = "rate_limit_exhausted"
	ReasonProviderError      = "provider_error"
	ReasonTimeout            = "timeout"
)

// ErrUnknownSymbol is wrapped by a FetchError when the provider does not know
// the ticker at all
var ErrUnknownSymbol = errors.New("unknown symbol")

// FetchError is an irrecoverable failure to produce a series for one ticker
type FetchError struct {
	Ticker models.Ticker
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Ticker, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Ticker, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }
