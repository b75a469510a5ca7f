package marketdata

import (
	"encoding/json"
	"fmt"

	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// EncodePoint serializes a price point for the cache
func EncodePoint(p models.PricePoint) ([]byte, error) {
	p.Date = models.Day(p.Date)
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode price point: %w", err)
	}
	return data, nil
}

// DecodeEntry turns a cached payload back into a price point. The entry's key
// date is authoritative over whatever date the payload carries.
func DecodeEntry(e *models.CacheEntry) (models.PricePoint, error) {
	var p models.PricePoint
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return models.PricePoint{}, fmt.Errorf("failed to decode cached payload for %s on %s: %w",
			e.Ticker, e.Date.Format(models.DateLayout), err)
	}
	p.Date = models.Day(e.Date)
	return p, nil
}
