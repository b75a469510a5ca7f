// Package holdings turns user input into validated holdings.
package holdings

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// ValidationError reports the first invalid row. Row is 1-based: for CSV it is
// the line number (the header is line 1), for manual entries the position in
// the list. Row 0 means the input as a whole.
type ValidationError struct {
	Row    int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("invalid holdings: %s", e.Reason)
	}
	return fmt.Sprintf("invalid holdings row %d: %s", e.Row, e.Reason)
}

// Entry is one manually entered (symbol, shares) pair. Shares accepts a JSON
// number or a numeric string.
type Entry struct {
	Symbol string          `json:"symbol"`
	Shares decimal.Decimal `json:"shares"`
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV reads a comma-separated file with symbol and shares columns.
// Headers are matched case-insensitively and other columns are ignored.
func ParseCSV(r io.Reader) ([]models.Holding, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read holdings: %w", err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		return nil, &ValidationError{Reason: "file is not UTF-8 or ASCII encoded"}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &ValidationError{Reason: "file is empty"}
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, csvError(err)
	}
	symbolCol, sharesCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "symbol":
			symbolCol = i
		case "shares":
			sharesCol = i
		}
	}
	if symbolCol < 0 || sharesCol < 0 {
		return nil, &ValidationError{Row: 1, Reason: "headers must include 'symbol' and 'shares'"}
	}

	var entries []Entry
	var rows []int
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		line, _ := reader.FieldPos(0)
		if blank(record) {
			continue
		}
		if symbolCol >= len(record) || sharesCol >= len(record) {
			return nil, &ValidationError{Row: line, Reason: "missing symbol or shares column"}
		}

		sharesText := strings.TrimSpace(record[sharesCol])
		shares, err := decimal.NewFromString(sharesText)
		if err != nil {
			return nil, &ValidationError{Row: line, Reason: fmt.Sprintf("shares %q is not a number", sharesText)}
		}
		entries = append(entries, Entry{Symbol: record[symbolCol], Shares: shares})
		rows = append(rows, line)
	}

	if len(entries) == 0 {
		return nil, &ValidationError{Reason: "no holdings found"}
	}
	return parse(entries, func(i int) int { return rows[i] })
}

// ParseEntries validates manually entered pairs
func ParseEntries(entries []Entry) ([]models.Holding, error) {
	if len(entries) == 0 {
		return nil, &ValidationError{Reason: "no holdings given"}
	}
	return parse(entries, func(i int) int { return i + 1 })
}

func parse(entries []Entry, rowOf func(int) int) ([]models.Holding, error) {
	out := make([]models.Holding, 0, len(entries))
	seen := make(map[models.Ticker]int, len(entries))
	for i, e := range entries {
		row := rowOf(i)

		ticker, err := models.ParseTicker(e.Symbol)
		if err != nil {
			return nil, &ValidationError{Row: row, Reason: err.Error()}
		}
		if first, dup := seen[ticker]; dup {
			return nil, &ValidationError{Row: row, Reason: fmt.Sprintf("symbol %s already listed in row %d", ticker, first)}
		}

		shares, err := wholeShares(e.Shares)
		if err != nil {
			return nil, &ValidationError{Row: row, Reason: err.Error()}
		}

		seen[ticker] = row
		out = append(out, models.Holding{Ticker: ticker, Shares: shares})
	}
	return out, nil
}

func wholeShares(d decimal.Decimal) (int64, error) {
	if !d.IsPositive() {
		return 0, fmt.Errorf("shares must be positive, got %s", d)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("shares must be a whole number, got %s", d)
	}
	if !d.BigInt().IsInt64() {
		return 0, fmt.Errorf("shares %s out of range", d)
	}
	return d.IntPart(), nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ValidationError{Row: pe.StartLine, Reason: "not a valid comma-separated file: " + pe.Err.Error()}
	}
	return fmt.Errorf("failed to read holdings: %w", err)
}
