package models

import (
	"fmt"
	"regexp"
	"strings"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9]{1,12}$`)

// Ticker is a validated, upper-case stock symbol
type Ticker string

// ParseTicker trims and upper-cases s and checks it against the symbol pattern
func ParseTicker(s string) (Ticker, error) {
	symbol := strings.ToUpper(strings.TrimSpace(s))
	if symbol == "" {
		return "", fmt.Errorf("symbol is empty")
	}
	if !tickerPattern.MatchString(symbol) {
		return "", fmt.Errorf("symbol %q must be 1-12 letters or digits", symbol)
	}
	return Ticker(symbol), nil
}

func (t Ticker) String() string { return string(t) }

// Holding is a number of whole shares of one ticker
type Holding struct {
	Ticker Ticker `json:"symbol"`
	Shares int64  `json:"shares"`
}
