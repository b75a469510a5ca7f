package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

type mockWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *mockWriter) Close() error { return nil }

func TestProducer_PublishMarketData(t *testing.T) {
	w := &mockWriter{}
	p := &Producer{writer: w, topic: "market-data-events"}

	ts := time.Date(2024, 1, 5, 15, 0, 0, 0, time.UTC)
	err := p.PublishMarketData(context.Background(), models.MarketDataEvent{
		EventType: models.EventSeriesRefreshed,
		Symbol:    "AAPL",
		Points:    100,
		FirstDate: "2023-08-11",
		LastDate:  "2024-01-05",
		Remaining: 14,
		Timestamp: ts,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "AAPL", string(w.msgs[0].Key))

	var got models.MarketDataEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, models.EventSeriesRefreshed, got.EventType)
	assert.Equal(t, 100, got.Points)
	assert.Equal(t, 14, got.Remaining)
	assert.True(t, ts.Equal(got.Timestamp))
}

func TestProducer_PublishMarketDataFillsTimestampAndKey(t *testing.T) {
	w := &mockWriter{}
	p := &Producer{writer: w}

	require.NoError(t, p.PublishMarketData(context.Background(), models.MarketDataEvent{EventType: models.EventBudgetExhausted}))

	assert.Equal(t, models.EventBudgetExhausted, string(w.msgs[0].Key))
	var got models.MarketDataEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.False(t, got.Timestamp.IsZero())
}

func TestProducer_RequestWarm(t *testing.T) {
	w := &mockWriter{}
	p := &Producer{writer: w}

	require.NoError(t, p.RequestWarm(context.Background(), models.CacheWarmRequest{Symbols: []string{"AAPL", "MSFT"}}))

	var got models.CacheWarmRequest
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, models.EventWarmCache, got.EventType)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got.Symbols)
}

func TestProducer_WriteError(t *testing.T) {
	p := &Producer{writer: &mockWriter{err: errors.New("broker down")}}

	err := p.PublishMarketData(context.Background(), models.MarketDataEvent{EventType: models.EventSeriesRefreshed, Symbol: "AAPL"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
