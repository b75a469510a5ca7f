package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// DefaultWarmWindow is the range warmed when a request names no dates
const DefaultWarmWindow = 30 * 24 * time.Hour

// Warmer loads tickers into the cache
type Warmer interface {
	Warm(ctx context.Context, tickers []models.Ticker, start, end time.Time) int
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
	Config() kafka.ReaderConfig
}

// WarmConsumer handles cache warm requests from Kafka
type WarmConsumer struct {
	reader messageReader
	warmer Warmer
	now    func() time.Time
}

// NewWarmConsumer creates a new Kafka consumer for cache warm requests
func NewWarmConsumer(brokers []string, topic, groupID string, warmer Warmer) *WarmConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       1e6, // 1MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &WarmConsumer{
		reader: reader,
		warmer: warmer,
		now:    time.Now,
	}
}

// Start begins consuming messages from Kafka
func (c *WarmConsumer) Start(ctx context.Context) error {
	log.Printf("[INFO] starting cache warm consumer for topic: %s", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			log.Println("[INFO] cache warm consumer shutting down...")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Printf("[ERROR] reading message: %v", err)
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				log.Printf("[ERROR] processing message: %v", err)
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *WarmConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var req models.CacheWarmRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("failed to unmarshal warm request: %w", err)
	}

	if req.EventType != models.EventWarmCache {
		log.Printf("[INFO] ignoring event type: %s", req.EventType)
		return nil
	}

	tickers := make([]models.Ticker, 0, len(req.Symbols))
	for _, s := range req.Symbols {
		t, err := models.ParseTicker(s)
		if err != nil {
			log.Printf("[WARN] skipping symbol in warm request: %v", err)
			continue
		}
		tickers = append(tickers, t)
	}
	if len(tickers) == 0 {
		return fmt.Errorf("warm request at offset %d has no valid symbols", msg.Offset)
	}

	start, end, err := c.window(req)
	if err != nil {
		return err
	}

	n := c.warmer.Warm(ctx, tickers, start, end)
	log.Printf("[INFO] warm request: %d/%d symbols cached for %s..%s",
		n, len(tickers), start.Format(models.DateLayout), end.Format(models.DateLayout))
	return nil
}

// window resolves the request dates, defaulting to the last 30 days
func (c *WarmConsumer) window(req models.CacheWarmRequest) (time.Time, time.Time, error) {
	end := models.Day(c.now())
	if req.End != "" {
		d, err := models.ParseDate(req.End)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", req.End, err)
		}
		end = d
	}

	start := end.Add(-DefaultWarmWindow)
	if req.Start != "" {
		d, err := models.ParseDate(req.Start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", req.Start, err)
		}
		start = d
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("warm request end %s is before start %s", req.End, req.Start)
	}
	return start, end, nil
}

// Close closes the Kafka consumer
func (c *WarmConsumer) Close() error {
	return c.reader.Close()
}
