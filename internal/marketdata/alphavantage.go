package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// DefaultAlphaVantageURL is the public query endpoint
const DefaultAlphaVantageURL = "https://www.alphavantage.co/query"

// OutputSize selects how much history the provider returns
type OutputSize string

const (
	// OutputCompact is the latest 100 trading days
	OutputCompact OutputSize = "compact"
	// OutputFull is the whole available history
	OutputFull OutputSize = "full"
)

// compactPoints is how many trading days a compact response holds. A compact
// response with fewer points is the ticker's whole history.
const compactPoints = 100

// compactWindow is the calendar span comfortably covered by 100 trading days
const compactWindow = 140 * 24 * time.Hour

// Provider returns the daily series of a ticker in one external call
type Provider interface {
	DailySeries(ctx context.Context, ticker models.Ticker, size OutputSize) ([]models.PricePoint, error)
	Name() string
}

// AlphaVantage implements Provider with the TIME_SERIES_DAILY endpoint
type AlphaVantage struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
}

// NewAlphaVantage creates a client; timeout bounds every request
func NewAlphaVantage(baseURL, apiKey string, timeout time.Duration) *AlphaVantage {
	if baseURL == "" {
		baseURL = DefaultAlphaVantageURL
	}
	return &AlphaVantage{
		Client:  &http.Client{Timeout: timeout},
		BaseURL: baseURL,
		APIKey:  apiKey,
	}
}

func (a *AlphaVantage) Name() string { return "alphavantage" }

// alphaVantageNotice holds the fields Alpha Vantage uses to report failures
// inside a 200 response
type alphaVantageNotice struct {
	ErrorMessage string `json:"Error Message"`
	Information  string `json:"Information"`
	Note         string `json:"Note"`
}

// err converts a notice into a FetchError, nil when the response is not one
func (n alphaVantageNotice) err(ticker models.Ticker) error {
	if notice := n.Information + n.Note; isRateLimitNotice(notice) {
		return &FetchError{Ticker: ticker, Reason: ReasonRateLimitExhausted, Err: errors.New(notice)}
	}
	if n.ErrorMessage != "" {
		return &FetchError{Ticker: ticker, Reason: ReasonProviderError, Err: errorMessage(n.ErrorMessage)}
	}
	return nil
}

// alphaVantageDaily mirrors the TIME_SERIES_DAILY response (trimmed to needed fields)
type alphaVantageDaily struct {
	alphaVantageNotice
	TimeSeries map[string]alphaVantageBar `json:"Time Series (Daily)"`
}

type alphaVantageBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// DailySeries fetches the daily bars of ticker
func (a *AlphaVantage) DailySeries(ctx context.Context, ticker models.Ticker, size OutputSize) ([]models.PricePoint, error) {
	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("outputsize", string(size))

	var parsed alphaVantageDaily
	if err := a.get(ctx, ticker, q, &parsed); err != nil {
		return nil, err
	}
	if err := parsed.alphaVantageNotice.err(ticker); err != nil {
		return nil, err
	}
	if parsed.TimeSeries == nil {
		msg := "unexpected response format"
		if parsed.Information != "" {
			msg = parsed.Information
		}
		return nil, &FetchError{Ticker: ticker, Reason: ReasonProviderError, Err: errors.New(msg)}
	}

	points := make([]models.PricePoint, 0, len(parsed.TimeSeries))
	for day, bar := range parsed.TimeSeries {
		p, err := bar.point(day)
		if err != nil {
			return nil, &FetchError{Ticker: ticker, Reason: ReasonProviderError, Err: err}
		}
		points = append(points, p)
	}
	return points, nil
}

// get runs one query for ticker and decodes the JSON body into out
func (a *AlphaVantage) get(ctx context.Context, ticker models.Ticker, q url.Values, out interface{}) error {
	q.Set("symbol", string(ticker))
	q.Set("apikey", a.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return &FetchError{Ticker: ticker, Reason: ReasonProviderError, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return &FetchError{Ticker: ticker, Reason: classifyTransportError(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Ticker: ticker, Reason: classifyTransportError(err), Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return &FetchError{Ticker: ticker, Reason: ReasonProviderError,
			Err: fmt.Errorf("alphavantage returned %d: %s", resp.StatusCode, preview(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Ticker: ticker, Reason: ReasonProviderError,
			Err: fmt.Errorf("failed to parse alphavantage json: %v; body: %s", err, preview(body))}
	}
	return nil
}

func (b alphaVantageBar) point(day string) (models.PricePoint, error) {
	date, err := models.ParseDate(day)
	if err != nil {
		return models.PricePoint{}, fmt.Errorf("invalid date %q: %w", day, err)
	}
	closePrice, err := decimal.NewFromString(b.Close)
	if err != nil {
		return models.PricePoint{}, fmt.Errorf("invalid close %q on %s: %w", b.Close, day, err)
	}

	p := models.PricePoint{Date: date, Close: closePrice}
	// open/high/low are informational; a malformed one is dropped rather than failing the series
	p.Open, _ = decimal.NewFromString(b.Open)
	p.High, _ = decimal.NewFromString(b.High)
	p.Low, _ = decimal.NewFromString(b.Low)
	if b.Volume != "" {
		if v, err := strconv.ParseInt(b.Volume, 10, 64); err == nil {
			p.Volume = &v
		}
	}
	return p, nil
}

func isRateLimitNotice(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "rate limit") || strings.Contains(s, "call frequency")
}

// errorMessage wraps ErrUnknownSymbol around the notice Alpha Vantage sends for
// a symbol it does not list. Other notices, such as a bad API key, are plain errors.
func errorMessage(msg string) error {
	if strings.HasPrefix(msg, "Invalid API call") {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, msg)
	}
	return errors.New(msg)
}

func classifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonProviderError
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}

// outputSizeFor picks compact when start is recent enough for 100 trading days to cover it
func outputSizeFor(start, today time.Time) OutputSize {
	if today.Sub(start) <= compactWindow {
		return OutputCompact
	}
	return OutputFull
}
