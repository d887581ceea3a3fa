// Package service defines the interfaces for all external collaborators.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dealhound/dealhound/internal/model"
)

// ListingSource produces fresh listings for a configured search URL.
type ListingSource interface {
	FetchListings(ctx context.Context, searchURL string) ([]model.Listing, error)
}

// SellerSource resolves the seller profile behind a listing page.
// A nil SellerInfo with nil error means the profile could not be found.
type SellerSource interface {
	FetchSellerInfo(ctx context.Context, adURL string) (*model.SellerInfo, error)
}

// PriceSource returns the raw sold-listings document for a search query.
// Transport failures and non-success responses surface as errors; the
// estimator translates them into an absent estimate.
type PriceSource interface {
	FetchSoldPrices(ctx context.Context, query string) (string, error)
}

// SeenStore is the append-only store of already-processed listings used
// for idempotent re-scrape protection.
type SeenStore interface {
	Has(ctx context.Context, listingID string) (bool, error)
	Record(ctx context.Context, listing model.Listing) error
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
	Close() error
}

// ActionLink is a single tappable link attached to a notification.
type ActionLink struct {
	Text string
	URL  string
}

// Notifier delivers a rendered message to the notification channel.
// Delivery failure is reported, never raised as a cycle-fatal error.
type Notifier interface {
	Send(ctx context.Context, message string, links []ActionLink, priority bool) (bool, error)
}

// NormalizeItem is one input to a batch query-normalization call.
type NormalizeItem struct {
	ID    string
	Title string
}

// NormalizedQuery is one usable search query returned for an input item.
type NormalizedQuery struct {
	ID    string
	Query string
}

// ClassifyItem is one input to a batch classification call.
type ClassifyItem struct {
	OfferPrice  decimal.Decimal
	MarketPrice decimal.Decimal
	ID          string
	Title       string
	Description string
}

// ListingFlags pairs a listing id with its validated classification flags.
type ListingFlags struct {
	ID    string
	Flags model.ClassificationFlags
}

// Classifier is the external text-classification collaborator. Both
// calls are batched; implementations must tolerate response ids that
// match no input (callers ignore them) and inputs with no response
// (callers drop them).
type Classifier interface {
	NormalizeQueries(ctx context.Context, items []NormalizeItem) ([]NormalizedQuery, error)
	ClassifyListings(ctx context.Context, items []ClassifyItem) ([]ListingFlags, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
