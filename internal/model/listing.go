// Package model defines the core domain types shared across the application.
package model

import (
	"strings"
	"time"
)

// AccountType describes how a seller account is registered on the
// listings platform.
type AccountType string

// Seller account types.
const (
	AccountTypePrivate    AccountType = "PRIVATE"
	AccountTypeCommercial AccountType = "COMMERCIAL"
	AccountTypeUnknown    AccountType = "UNKNOWN"
)

// SellerInfo carries the seller details scraped from a listing page.
// ActiveSinceDays is -1 when the account age could not be determined.
type SellerInfo struct {
	Name            string
	AccountType     AccountType
	ActiveSinceDays int
}

// Listing is a single classified ad as produced by the listing source.
// It is immutable once created; pipeline stages derive new records
// keyed by ID instead of mutating it.
type Listing struct {
	PostedAt    time.Time
	Seller      *SellerInfo
	ID          string
	Title       string
	Description string
	RawPrice    string
	Link        string
}

// CacheKey returns the normalized form of the listing title used as a
// cache key: lower-cased with runs of whitespace collapsed to single
// spaces. The caches themselves treat keys as opaque.
func (l *Listing) CacheKey() string {
	return NormalizeKey(l.Title)
}

// NormalizeKey lower-cases s and collapses all whitespace runs.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
