package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/trogers1052/portfolio-tracker/internal/cache"
	"github.com/trogers1052/portfolio-tracker/internal/holdings"
	"github.com/trogers1052/portfolio-tracker/internal/marketdata"
	"github.com/trogers1052/portfolio-tracker/internal/models"
	"github.com/trogers1052/portfolio-tracker/internal/portfolio"
)

// DefaultSeriesWindow is used by GET /series when start is omitted
const DefaultSeriesWindow = 30 * 24 * time.Hour

const maxBodyBytes = 1 << 20

// Aggregator builds portfolio snapshots
type Aggregator interface {
	Aggregate(ctx context.Context, holdings []models.Holding, start, end time.Time) (*models.PortfolioSnapshot, error)
}

// SeriesFetcher serves one ticker's price series
type SeriesFetcher interface {
	Fetch(ctx context.Context, ticker models.Ticker, start, end time.Time) (*marketdata.Result, error)
}

// BudgetViewer reports today's provider call budget
type BudgetViewer interface {
	Snapshot(ctx context.Context) models.RateBudget
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	aggregator Aggregator
	fetcher    SeriesFetcher
	budget     BudgetViewer
	now        func() time.Time
}

// NewHandler creates a new Handler
func NewHandler(aggregator Aggregator, fetcher SeriesFetcher, budget BudgetViewer) *Handler {
	return &Handler{
		aggregator: aggregator,
		fetcher:    fetcher,
		budget:     budget,
		now:        time.Now,
	}
}

type holdingsRequest struct {
	Holdings []holdings.Entry `json:"holdings"`
	Start    string           `json:"start,omitempty"`
	End      string           `json:"end,omitempty"`
}

type holdingsResponse struct {
	Holdings []models.Holding `json:"holdings"`
	Count    int              `json:"count"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Symbol string `json:"symbol,omitempty"`
	Row    *int   `json:"row,omitempty"`
}

// badRequest is a malformed request that never reached the core
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

// ValidateHoldings handles POST /holdings/validate. The body is either a CSV
// file (Content-Type text/csv) or {"holdings":[{"symbol":..,"shares":..}]}.
func (h *Handler) ValidateHoldings(w http.ResponseWriter, r *http.Request) {
	parsed, _, err := h.readHoldings(w, r)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, holdingsResponse{Holdings: parsed, Count: len(parsed)})
}

// Snapshot handles POST /portfolio/snapshot. Start and end come from the JSON
// body, or from the query string when the body is CSV.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	parsed, req, err := h.readHoldings(w, r)
	if err != nil {
		respondError(w, err)
		return
	}

	start, end, err := h.dateRange(req.Start, req.End)
	if err != nil {
		respondError(w, err)
		return
	}

	snapshot, err := h.aggregator.Aggregate(r.Context(), parsed, start, end)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// GetSeries handles GET /series/{symbol}
func (h *Handler) GetSeries(w http.ResponseWriter, r *http.Request) {
	ticker, err := models.ParseTicker(mux.Vars(r)["symbol"])
	if err != nil {
		respondError(w, &badRequest{msg: err.Error()})
		return
	}

	q := r.URL.Query()
	start, end, err := h.dateRange(q.Get("start"), q.Get("end"))
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := h.fetcher.Fetch(r.Context(), ticker, start, end)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetBudget handles GET /budget
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	b := h.budget.Snapshot(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"day":           b.Day.Format(models.DateLayout),
		"calls_used":    b.CallsUsed,
		"calls_allowed": b.CallsAllowed,
		"remaining":     b.Remaining(),
	})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) readHoldings(w http.ResponseWriter, r *http.Request) ([]models.Holding, holdingsRequest, error) {
	var req holdingsRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		q := r.URL.Query()
		req.Start, req.End = q.Get("start"), q.Get("end")
		parsed, err := holdings.ParseCSV(body)
		return parsed, req, err
	}

	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, req, &badRequest{msg: "invalid request body"}
	}
	parsed, err := holdings.ParseEntries(req.Holdings)
	return parsed, req, err
}

// dateRange parses YYYY-MM-DD bounds. End defaults to today (UTC) and start
// to DefaultSeriesWindow before end.
func (h *Handler) dateRange(startStr, endStr string) (time.Time, time.Time, error) {
	end := models.Day(h.now())
	if endStr != "" {
		d, err := models.ParseDate(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, &badRequest{msg: fmt.Sprintf("invalid end date %q", endStr)}
		}
		end = d
	}

	start := end.Add(-DefaultSeriesWindow)
	if startStr != "" {
		d, err := models.ParseDate(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, &badRequest{msg: fmt.Sprintf("invalid start date %q", startStr)}
		}
		start = d
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, &badRequest{msg: "end date is before start date"}
	}
	return start, end, nil
}

// statusFor maps a core failure to an HTTP status
func statusFor(reason string) int {
	switch reason {
	case marketdata.ReasonRateLimitExhausted:
		return http.StatusTooManyRequests
	case marketdata.ReasonProviderError:
		return http.StatusBadGateway
	case marketdata.ReasonTimeout:
		return http.StatusGatewayTimeout
	case portfolio.ReasonCacheUnavailable:
		return http.StatusServiceUnavailable
	case portfolio.ReasonNoHoldings, portfolio.ReasonInvalidRange:
		return http.StatusBadRequest
	case portfolio.ReasonNoData:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	var (
		bad  *badRequest
		verr *holdings.ValidationError
		aerr *portfolio.AggregationError
		ferr *marketdata.FetchError
	)

	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &bad):
		status = http.StatusBadRequest
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		resp.Reason = "invalid_holdings"
		if verr.Row > 0 {
			row := verr.Row
			resp.Row = &row
		}
	case errors.As(err, &aerr):
		resp.Reason = aerr.Reason
		resp.Symbol = string(aerr.Ticker)
		status = statusFor(aerr.Reason)
	case errors.As(err, &ferr):
		resp.Reason = ferr.Reason
		resp.Symbol = string(ferr.Ticker)
		status = statusFor(ferr.Reason)
	case errors.Is(err, cache.ErrCacheUnavailable):
		resp.Reason = portfolio.ReasonCacheUnavailable
		status = http.StatusServiceUnavailable
	}
	if errors.Is(err, marketdata.ErrUnknownSymbol) {
		status = http.StatusNotFound
	}

	if status >= http.StatusInternalServerError {
		log.Printf("[ERROR] request failed: %v", err)
	}
	respondJSON(w, status, resp)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
