package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dealhound/dealhound/internal/common"
)

// offerPriceRe matches the first German-formatted amount in a raw price
// label ("450 €", "1.234 € VB", "449,99€"). The dotted-thousands branch
// requires at least one group so a plain digit run like "1500" is
// consumed whole by the second branch instead of truncated.
var offerPriceRe = regexp.MustCompile(`(?:\d{1,3}(?:\.\d{3})+|\d+)(?:,\d{1,2})?`)

// parseOfferPrice extracts the numeric offer price from the raw price
// label of a listing. Labels without any amount ("VB", "Zu
// verschenken") fail; the configured missing-price policy decides what
// happens then.
func parseOfferPrice(raw string) (decimal.Decimal, error) {
	m := offerPriceRe.FindString(raw)
	if m == "" {
		return decimal.Zero, fmt.Errorf("%w: no amount in %q", common.ErrMalformedResponse, raw)
	}

	normalized := strings.ReplaceAll(m, ".", "")
	normalized = strings.ReplaceAll(normalized, ",", ".")
	val, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", common.ErrMalformedResponse, raw, err)
	}
	return val, nil
}
