package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dealhound/dealhound/internal/model"
)

// Deal bundles everything the message templates need about one
// qualifying listing.
type Deal struct {
	Listing  model.Listing
	Estimate model.PriceEstimate
	Result   model.ScoreResult
	Flags    model.ClassificationFlags
	Offer    decimal.Decimal
}

// FormatDeal renders the HTML notification body for a scored deal.
func FormatDeal(deal Deal) string {
	prefix := "🔥 <b>NEUER DEAL</b>"
	if deal.Result.Score >= 90 {
		prefix = "💎 <b>TOP DEAL</b>"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", prefix)
	fmt.Fprintf(&b, "📦 <b>%s</b>\n", html.EscapeString(deal.Listing.Title))
	if !deal.Listing.PostedAt.IsZero() {
		fmt.Fprintf(&b, "📅 Inseriert: %s\n", deal.Listing.PostedAt.Format("02.01.2006 15:04"))
	}
	fmt.Fprintf(&b, "💰 Preis: <code>%s €</code> (Markt: ~%s €)\n",
		deal.Offer.StringFixed(2), deal.Estimate.MedianPrice.StringFixed(2))
	fmt.Fprintf(&b, "📈 Marge: %s €\n", deal.Result.MarginEur.StringFixed(2))
	fmt.Fprintf(&b, "🌊 Liquidität: %s\n", deal.Flags.Liquidity)
	fmt.Fprintf(&b, "---------------------------\n")
	fmt.Fprintf(&b, "🎯 <b>Score: %d/100</b>", deal.Result.Score)
	return b.String()
}

// FormatWhitelistHit renders the message for a whitelist fast-path
// listing, which skips estimation and scoring entirely.
func FormatWhitelistHit(listing model.Listing) string {
	var b strings.Builder
	b.WriteString("🚨 <b>WHITELIST TREFFER</b>\n")
	fmt.Fprintf(&b, "📦 <b>%s</b>\n", html.EscapeString(listing.Title))
	fmt.Fprintf(&b, "💰 Preis: <code>%s</code>", html.EscapeString(listing.RawPrice))
	return b.String()
}
