// Package score computes the expected margin and opportunity score for
// a listing against its market-price estimate.
package score

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dealhound/dealhound/internal/model"
)

var (
	// netSaleFactor covers platform fee plus a shipping allowance.
	netSaleFactor = decimal.RequireFromString("0.92")
	// targetBuyFactor assumes negotiation headroom on the offer price.
	targetBuyFactor = decimal.RequireFromString("0.88")

	scoreScale   = decimal.NewFromInt(200)
	boosterBonus = decimal.NewFromInt(30)
	obsoleteMali = decimal.NewFromInt(40)
	maxScore     = decimal.NewFromInt(100)
)

// Scorer derives deterministic score results. It holds only the
// configured booster term set; Score itself is a pure function.
type Scorer struct {
	boosterTerms []string
}

// New creates a scorer with the given booster terms (matched
// case-insensitively against title and description).
func New(boosterTerms []string) *Scorer {
	terms := make([]string, len(boosterTerms))
	for i, t := range boosterTerms {
		terms[i] = strings.ToLower(t)
	}
	return &Scorer{boosterTerms: terms}
}

// Score computes the margin and 0-100 opportunity score for a listing.
// The estimate must be valid; callers skip listings without one.
//
// Adjustments apply in fixed order: bundle forces 100, obsolete
// subtracts 40, accessory-only forces a terminal 0 that no booster may
// override, boosters add 30, then the result is clamped to [0, 100]
// and truncated.
func (s *Scorer) Score(listing model.Listing, offerPrice decimal.Decimal, estimate model.PriceEstimate, flags model.ClassificationFlags) model.ScoreResult {
	netSale := estimate.MedianPrice.Mul(netSaleFactor)
	targetBuy := offerPrice.Mul(targetBuyFactor)
	margin := netSale.Sub(targetBuy)

	marginPct := decimal.NewFromInt(-1)
	if !targetBuy.IsZero() {
		marginPct = margin.Div(targetBuy)
	}

	// The base score saturates at 100 before categorical adjustments,
	// so a penalty on an over-the-top margin still shows.
	score := marginPct.Mul(scoreScale)
	if score.GreaterThan(maxScore) {
		score = maxScore
	}

	if flags.Bundle {
		score = maxScore
	}
	if flags.Obsolete {
		score = score.Sub(obsoleteMali)
	}

	vetoed := flags.AccessoryOnly
	if vetoed {
		score = decimal.Zero
	}
	if !vetoed && s.hasBooster(listing) {
		score = score.Add(boosterBonus)
	}

	if score.LessThan(decimal.Zero) {
		score = decimal.Zero
	}
	if score.GreaterThan(maxScore) {
		score = maxScore
	}

	return model.ScoreResult{
		ListingID: listing.ID,
		MarginEur: margin.Round(2),
		Score:     int(score.IntPart()),
	}
}

func (s *Scorer) hasBooster(listing model.Listing) bool {
	if len(s.boosterTerms) == 0 {
		return false
	}
	haystack := strings.ToLower(listing.Title + " " + listing.Description)
	for _, term := range s.boosterTerms {
		if term != "" && strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}
