package marketdata

import (
	"context"
	"net/url"
	"strings"

	"github.com/trogers1052/portfolio-tracker/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// alphaVantageOverview mirrors the OVERVIEW response (trimmed to needed fields).
// Symbols without a company profile, such as most funds, come back as {}.
type alphaVantageOverview struct {
	alphaVantageNotice
	Symbol    string `json:"Symbol"`
	AssetType string `json:"AssetType"`
	Name      string `json:"Name"`
	Sector    string `json:"Sector"`
}

var titleCase = cases.Title(language.English)

// Overview fetches the company profile of ticker in one external call. A zero
// Classification with a nil error means the provider has no profile for it.
func (a *AlphaVantage) Overview(ctx context.Context, ticker models.Ticker) (models.Classification, error) {
	q := url.Values{}
	q.Set("function", "OVERVIEW")

	var parsed alphaVantageOverview
	if err := a.get(ctx, ticker, q, &parsed); err != nil {
		return models.Classification{}, err
	}
	if err := parsed.alphaVantageNotice.err(ticker); err != nil {
		return models.Classification{}, err
	}
	if parsed.Symbol == "" {
		return models.Classification{}, nil
	}

	c := models.Classification{
		Name:       strings.TrimSpace(parsed.Name),
		AssetClass: assetClassFor(parsed.AssetType),
	}
	// Alpha Vantage reports sectors upper-cased, e.g. "TECHNOLOGY"
	if sector := strings.TrimSpace(parsed.Sector); sector != "" && sector != "None" {
		c.Sector = titleCase.String(sector)
	}
	return c, nil
}

func assetClassFor(assetType string) string {
	switch strings.ToLower(strings.TrimSpace(assetType)) {
	case "common stock", "reit", "adr", "preferred stock":
		return models.AssetClassEquity
	case "etf", "mutual fund":
		return models.AssetClassETF
	case "":
		return ""
	default:
		return models.AssetClassUnknown
	}
}
