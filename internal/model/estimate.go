package model

import "github.com/shopspring/decimal"

// PriceEstimate is the market-value estimate for a search query,
// derived from historical sold prices.
type PriceEstimate struct {
	MedianPrice  decimal.Decimal `json:"median_price"`
	CorridorLow  decimal.Decimal `json:"corridor_low"`
	CorridorHigh decimal.Decimal `json:"corridor_high"`
	SampleCount  int             `json:"sample_count"`
}
