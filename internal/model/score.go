package model

import "github.com/shopspring/decimal"

// ScoreResult is the outcome of scoring one listing against its market
// estimate. MarginEur is rounded to two decimal places; Score is always
// within [0, 100].
type ScoreResult struct {
	MarginEur decimal.Decimal
	ListingID string
	Score     int
}
