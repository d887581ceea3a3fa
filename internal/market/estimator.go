package market

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dealhound/dealhound/internal/cache"
	"github.com/dealhound/dealhound/internal/common"
	"github.com/dealhound/dealhound/internal/model"
	"github.com/dealhound/dealhound/internal/service"
)

// soldPriceRe matches German-formatted currency amounts ("EUR 1.234,56")
// in the sold-listings document.
var soldPriceRe = regexp.MustCompile(`EUR\s?(\d+(?:\.\d+)?,\d{2})`)

// Config holds the estimator tuning constants.
type Config struct {
	// NoiseFloor discards tiny amounts that are shipping or accessory
	// costs, not sale prices.
	NoiseFloor decimal.Decimal
	// CorridorLow/CorridorHigh bound accepted samples as multiples of
	// the offer price. Bounds are inclusive.
	CorridorLow  decimal.Decimal
	CorridorHigh decimal.Decimal
	// SanityFloor is the smallest median considered plausible; cached
	// or fresh estimates below it are not trusted.
	SanityFloor decimal.Decimal
	// MinSamples is the minimum in-corridor sample count for a usable
	// estimate.
	MinSamples int
}

// DefaultConfig returns the default estimator configuration.
func DefaultConfig() Config {
	return Config{
		NoiseFloor:   decimal.NewFromInt(5),
		CorridorLow:  decimal.RequireFromString("0.5"),
		CorridorHigh: decimal.NewFromInt(3),
		SanityFloor:  decimal.NewFromInt(10),
		MinSamples:   3,
	}
}

// Estimator computes market-price estimates from historical sold
// prices, caching results per normalized query.
type Estimator struct {
	source service.PriceSource
	cache  *cache.Cache[model.PriceEstimate]
	cfg    Config
}

// NewEstimator creates an estimator with the given source and cache.
func NewEstimator(source service.PriceSource, store *cache.Cache[model.PriceEstimate], cfg Config) *Estimator {
	return &Estimator{source: source, cache: store, cfg: cfg}
}

// Estimate returns the market-price estimate for query at the given
// offer price. All absence causes are reported through the error: a
// transient or malformed fetch, or too little usable data. The caller
// decides whether any of them warrants a retry.
func (e *Estimator) Estimate(ctx context.Context, query string, offerPrice decimal.Decimal) (*model.PriceEstimate, error) {
	key := model.NormalizeKey(query)
	if key == "" {
		return nil, fmt.Errorf("%w: empty query", common.ErrInsufficientData)
	}

	if cached, ok := e.cache.Get(key); ok {
		// An implausibly low cached value is treated as a miss.
		if cached.MedianPrice.GreaterThanOrEqual(e.cfg.SanityFloor) {
			return &cached, nil
		}
		slog.Debug("Discarding implausible cached estimate",
			"query", key, "median", cached.MedianPrice)
	}

	doc, err := e.source.FetchSoldPrices(ctx, query)
	if err != nil {
		return nil, err
	}

	samples := e.parseSamples(doc)
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no price samples for %q", common.ErrInsufficientData, key)
	}

	low := offerPrice.Mul(e.cfg.CorridorLow)
	high := offerPrice.Mul(e.cfg.CorridorHigh)
	corridor := filterCorridor(samples, low, high)
	if len(corridor) < e.cfg.MinSamples {
		return nil, fmt.Errorf("%w: %d of %d samples in corridor [%s, %s]",
			common.ErrInsufficientData, len(corridor), len(samples), low, high)
	}

	width := bucketWidth(offerPrice)
	cluster := dominantCluster(corridor, width)
	med := median(cluster)

	if med.LessThan(e.cfg.SanityFloor) {
		return nil, fmt.Errorf("%w: implausible median %s", common.ErrInsufficientData, med)
	}

	est := model.PriceEstimate{
		MedianPrice:  med,
		SampleCount:  len(cluster),
		CorridorLow:  low,
		CorridorHigh: high,
	}
	e.cache.Put(key, est)

	slog.Debug("Computed market estimate",
		"query", key,
		"samples", len(samples),
		"in_corridor", len(corridor),
		"cluster_size", len(cluster),
		"median", med)

	return &est, nil
}

// parseSamples extracts all currency amounts above the noise floor.
func (e *Estimator) parseSamples(doc string) []decimal.Decimal {
	matches := soldPriceRe.FindAllStringSubmatch(doc, -1)
	samples := make([]decimal.Decimal, 0, len(matches))
	for _, m := range matches {
		// German format: thousands dot, decimal comma.
		raw := strings.ReplaceAll(m[1], ".", "")
		raw = strings.ReplaceAll(raw, ",", ".")
		val, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		if val.GreaterThan(e.cfg.NoiseFloor) {
			samples = append(samples, val)
		}
	}
	return samples
}

func filterCorridor(samples []decimal.Decimal, low, high decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(samples))
	for _, s := range samples {
		if s.GreaterThanOrEqual(low) && s.LessThanOrEqual(high) {
			out = append(out, s)
		}
	}
	return out
}

// bucketWidth returns the clustering bucket width for a price tier.
// Narrower buckets for low-value items keep cluster cardinality
// comparable across tiers.
func bucketWidth(offerPrice decimal.Decimal) decimal.Decimal {
	switch {
	case offerPrice.LessThan(decimal.NewFromInt(50)):
		return decimal.NewFromInt(5)
	case offerPrice.LessThan(decimal.NewFromInt(200)):
		return decimal.NewFromInt(20)
	case offerPrice.LessThan(decimal.NewFromInt(1000)):
		return decimal.NewFromInt(50)
	default:
		return decimal.NewFromInt(100)
	}
}

// dominantCluster partitions samples into fixed-width buckets, selects
// the most populated one, and merges any bucket whose lower bound is
// within one width of the winner, absorbing mass split across a bucket
// edge. Ties go to the lower-priced bucket.
func dominantCluster(samples []decimal.Decimal, width decimal.Decimal) []decimal.Decimal {
	buckets := make(map[int64][]decimal.Decimal)
	for _, s := range samples {
		idx := s.Div(width).IntPart()
		buckets[idx] = append(buckets[idx], s)
	}

	var best int64
	bestLen := -1
	for idx, prices := range buckets {
		if len(prices) > bestLen || (len(prices) == bestLen && idx < best) {
			best = idx
			bestLen = len(prices)
		}
	}

	cluster := append([]decimal.Decimal(nil), buckets[best]...)
	for _, adjacent := range []int64{best - 1, best + 1} {
		cluster = append(cluster, buckets[adjacent]...)
	}
	return cluster
}

// median returns the median of prices rounded to two decimal places.
func median(prices []decimal.Decimal) decimal.Decimal {
	sorted := append([]decimal.Decimal(nil), prices...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2].Round(2)
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2)).Round(2)
}
