// Package sectors maps tickers to sectors and asset classes.
package sectors

import (
	"fmt"
	"os"
	"strings"

	"github.com/trogers1052/portfolio-tracker/internal/models"
	"gopkg.in/yaml.v3"
)

// Table is a static ticker lookup. Unknown tickers classify as Unknown.
type Table struct {
	entries    map[models.Ticker]models.Classification
	overridden map[models.Ticker]bool
}

// NewTable builds a Table from the bundled defaults plus overrides
func NewTable(overrides map[models.Ticker]models.Classification) *Table {
	t := &Table{
		entries:    make(map[models.Ticker]models.Classification, len(defaults)+len(overrides)),
		overridden: make(map[models.Ticker]bool, len(overrides)),
	}
	for k, v := range defaults {
		t.entries[k] = v
	}
	for k, v := range overrides {
		t.entries[k] = v
		t.overridden[k] = true
	}
	return t
}

// Overridden reports whether ticker came from a sector map file rather than
// the bundled defaults
func (t *Table) Overridden(ticker models.Ticker) bool { return t.overridden[ticker] }

// Classify returns the classification of ticker
func (t *Table) Classify(ticker models.Ticker) models.Classification {
	c, ok := t.entries[ticker]
	if !ok {
		return models.Classification{Sector: models.SectorUnknown, AssetClass: models.AssetClassUnknown}
	}
	if c.Sector == "" {
		c.Sector = models.SectorUnknown
	}
	if c.AssetClass == "" {
		c.AssetClass = models.AssetClassEquity
	}
	return c
}

// Len returns the number of known tickers
func (t *Table) Len() int { return len(t.entries) }

// fileFormat is the layout of a sector map file:
//
//	tickers:
//	  AAPL: {name: Apple Inc., sector: Technology, asset_class: Equity}
type fileFormat struct {
	Tickers map[string]models.Classification `yaml:"tickers"`
}

// LoadFile reads overrides from a YAML file and merges them over the defaults.
// An empty path yields the defaults alone.
func LoadFile(path string) (*Table, error) {
	if path == "" {
		return NewTable(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sector map: %w", err)
	}
	overrides, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return NewTable(overrides), nil
}

// Parse decodes a sector map document
func Parse(data []byte) (map[models.Ticker]models.Classification, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sector map: %w", err)
	}

	out := make(map[models.Ticker]models.Classification, len(f.Tickers))
	for symbol, c := range f.Tickers {
		ticker, err := models.ParseTicker(symbol)
		if err != nil {
			return nil, fmt.Errorf("invalid ticker in sector map: %w", err)
		}
		c.Sector = strings.TrimSpace(c.Sector)
		c.AssetClass = strings.TrimSpace(c.AssetClass)
		out[ticker] = c
	}
	return out, nil
}
