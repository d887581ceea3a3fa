package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/dealhound/dealhound/internal/model"
)

// QueryNormalizer resolves listing titles to canonical search queries.
// Listings without a usable query are absent from the result.
type QueryNormalizer interface {
	Normalize(ctx context.Context, listings []model.Listing) map[string]string
}

// PriceEstimator computes the market-price estimate for a query at an
// offer price.
type PriceEstimator interface {
	Estimate(ctx context.Context, query string, offerPrice decimal.Decimal) (*model.PriceEstimate, error)
}

// DealScorer derives the margin and opportunity score for a listing.
type DealScorer interface {
	Score(listing model.Listing, offerPrice decimal.Decimal, estimate model.PriceEstimate, flags model.ClassificationFlags) model.ScoreResult
}
