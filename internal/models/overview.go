package models

import "time"

// Overview is the provider's profile of a ticker as last fetched. A zero
// Classification records that the provider had no profile for it.
type Overview struct {
	Ticker         Ticker         `json:"symbol"`
	Classification Classification `json:"classification"`
	FetchedAt      time.Time      `json:"fetched_at"`
}

// Empty reports whether the provider returned nothing usable
func (o *Overview) Empty() bool {
	return o.Classification.Sector == "" && o.Classification.AssetClass == ""
}
