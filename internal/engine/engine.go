// Package engine implements the deal-scoring pipeline: the per-cycle
// funnel from scraped listings through filtering, normalization, price
// estimation, classification, and scoring to gated notification.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealhound/dealhound/internal/common"
	"github.com/dealhound/dealhound/internal/market"
	"github.com/dealhound/dealhound/internal/model"
	"github.com/dealhound/dealhound/internal/notify"
	"github.com/dealhound/dealhound/internal/service"
)

// Missing-price policies. The source history is ambiguous on whether a
// listing without a parseable price should be dropped or carried with a
// neutral placeholder, so it is configurable.
const (
	MissingPriceDrop        = "drop"
	MissingPricePlaceholder = "placeholder"
)

// Config holds the pipeline rule set and thresholds. The pipeline logic
// itself is rule-set-agnostic.
type Config struct {
	MinPrice           decimal.Decimal
	MaxPrice           decimal.Decimal
	PlaceholderPrice   decimal.Decimal
	MinMarginEur       decimal.Decimal
	MissingPricePolicy string
	SearchURLs         []string
	Denylist           []string
	Whitelist          []string
	Retry              service.RetryOptions
	MinAccountAgeDays  int
	MinScore           int
	FetchSellerInfo    bool
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		MinPrice:           decimal.NewFromInt(20),
		MaxPrice:           decimal.NewFromInt(2000),
		PlaceholderPrice:   decimal.NewFromInt(100),
		MissingPricePolicy: MissingPricePlaceholder,
		MinMarginEur:       decimal.NewFromInt(40),
		MinScore:           75,
		MinAccountAgeDays:  30,
	}
}

// Validate checks the configuration at startup; this is the only place
// in the pipeline where an error is considered fatal.
func (c Config) Validate() error {
	if len(c.SearchURLs) == 0 {
		return fmt.Errorf("%w: at least one search URL", common.ErrMissingConfig)
	}
	switch c.MissingPricePolicy {
	case MissingPriceDrop, MissingPricePlaceholder:
	default:
		return fmt.Errorf("%w: missing-price policy %q", common.ErrInvalidConfig, c.MissingPricePolicy)
	}
	if c.MaxPrice.LessThan(c.MinPrice) {
		return fmt.Errorf("%w: price band [%s, %s]", common.ErrInvalidConfig, c.MinPrice, c.MaxPrice)
	}
	return nil
}

// Dependencies are the collaborators injected into the pipeline.
// Sellers is optional; without it seller predicates only apply to
// listings that already carry seller info.
type Dependencies struct {
	Listings   service.ListingSource
	Sellers    service.SellerSource
	Seen       service.SeenStore
	Normalizer QueryNormalizer
	Estimator  PriceEstimator
	Classifier service.Classifier
	Scorer     DealScorer
	Notifier   service.Notifier
}

// Engine orchestrates one pipeline run per polling cycle.
type Engine struct {
	deps Dependencies
	cfg  Config
}

// New creates a pipeline engine.
func New(deps Dependencies, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{deps: deps, cfg: cfg}, nil
}

// Stats summarizes one cycle. Failures counts listings removed from the
// batch by per-listing errors, never sibling casualties.
type Stats struct {
	Scraped     int
	Duplicates  int
	FilteredOut int
	Whitelisted int
	Scored      int
	Notified    int
	Failures    int
}

// candidate is a listing that survived filtering, with its effective
// offer price.
type candidate struct {
	listing model.Listing
	offer   decimal.Decimal
	query   string
	est     model.PriceEstimate
}

// RunCycle executes one full pipeline pass. Per-listing failures are
// logged and drop only the affected listing; the returned error is
// non-nil only when the cycle as a whole could not run.
func (e *Engine) RunCycle(ctx context.Context) (Stats, error) {
	var stats Stats
	log := slog.With("cycle_id", uuid.NewString()[:8])

	listings := e.collect(ctx, log, &stats)
	stats.Scraped = len(listings)

	fresh := e.dedupe(ctx, log, listings, &stats)
	candidates := e.filter(ctx, log, fresh, &stats)
	candidates = e.normalize(ctx, log, candidates, &stats)
	candidates = e.estimate(ctx, log, candidates, &stats)
	e.scoreAndNotify(ctx, log, candidates, &stats)

	log.Info("Cycle complete",
		"scraped", stats.Scraped,
		"duplicates", stats.Duplicates,
		"filtered_out", stats.FilteredOut,
		"whitelisted", stats.Whitelisted,
		"scored", stats.Scored,
		"notified", stats.Notified,
		"failures", stats.Failures)

	return stats, ctx.Err()
}

// collect fetches every configured search URL, isolating failures per
// URL.
func (e *Engine) collect(ctx context.Context, log *slog.Logger, stats *Stats) []model.Listing {
	var all []model.Listing
	for _, searchURL := range e.cfg.SearchURLs {
		var batch []model.Listing
		err := common.WithRetry(ctx, func() error {
			var fetchErr error
			batch, fetchErr = e.deps.Listings.FetchListings(ctx, searchURL)
			return fetchErr
		}, e.cfg.Retry)
		if err != nil {
			log.Error("Failed to fetch search page", "url", searchURL, "error", err)
			stats.Failures++
			continue
		}
		all = append(all, batch...)
	}
	return all
}

// dedupe drops listings already in the seen store and records the rest,
// so a re-scrape of the same ad is silent from the second cycle on.
func (e *Engine) dedupe(ctx context.Context, log *slog.Logger, listings []model.Listing, stats *Stats) []model.Listing {
	fresh := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		seen, err := e.deps.Seen.Has(ctx, l.ID)
		if err != nil {
			log.Error("Seen-store lookup failed", "listing_id", l.ID, "error", err)
			stats.Failures++
			continue
		}
		if seen {
			stats.Duplicates++
			continue
		}
		if err := e.deps.Seen.Record(ctx, l); err != nil {
			log.Error("Failed to record listing", "listing_id", l.ID, "error", err)
		}
		fresh = append(fresh, l)
	}
	return fresh
}

// filter applies the declarative rule set and peels off whitelist
// fast-path listings, which go straight to priority notification.
func (e *Engine) filter(ctx context.Context, log *slog.Logger, listings []model.Listing, stats *Stats) []candidate {
	var candidates []candidate
	for _, l := range listings {
		if matchesAny(l, e.cfg.Denylist) {
			stats.FilteredOut++
			continue
		}

		offer, err := parseOfferPrice(l.RawPrice)
		if err != nil {
			if e.cfg.MissingPricePolicy == MissingPriceDrop {
				log.Debug("Dropping listing without parseable price", "listing_id", l.ID, "raw_price", l.RawPrice)
				stats.FilteredOut++
				continue
			}
			offer = e.cfg.PlaceholderPrice
		}

		if offer.LessThan(e.cfg.MinPrice) || offer.GreaterThan(e.cfg.MaxPrice) {
			stats.FilteredOut++
			continue
		}

		if !e.sellerAcceptable(ctx, log, &l) {
			stats.FilteredOut++
			continue
		}

		// Whitelist hits bypass normalization, estimation, and scoring.
		if matchesAny(l, e.cfg.Whitelist) {
			stats.Whitelisted++
			e.notifyWhitelist(ctx, log, l)
			continue
		}

		candidates = append(candidates, candidate{listing: l, offer: offer})
	}
	return candidates
}

// sellerAcceptable applies the fraud/bulk-reseller predicates. Missing
// seller info is acceptable; a failed profile fetch degrades to unknown.
func (e *Engine) sellerAcceptable(ctx context.Context, log *slog.Logger, l *model.Listing) bool {
	seller := l.Seller
	if seller == nil && e.cfg.FetchSellerInfo && e.deps.Sellers != nil {
		fetched, err := e.deps.Sellers.FetchSellerInfo(ctx, l.Link)
		if err != nil {
			log.Debug("Seller profile fetch failed", "listing_id", l.ID, "error", err)
		} else {
			seller = fetched
		}
	}
	if seller == nil {
		return true
	}
	if seller.AccountType == model.AccountTypeCommercial {
		return false
	}
	if seller.ActiveSinceDays >= 0 && seller.ActiveSinceDays < e.cfg.MinAccountAgeDays {
		return false
	}
	return true
}

// normalize resolves search queries for the batch in one collaborator
// call; candidates without a usable query are dropped.
func (e *Engine) normalize(ctx context.Context, log *slog.Logger, candidates []candidate, stats *Stats) []candidate {
	if len(candidates) == 0 {
		return candidates
	}

	listings := make([]model.Listing, len(candidates))
	for i, c := range candidates {
		listings[i] = c.listing
	}
	queries := e.deps.Normalizer.Normalize(ctx, listings)

	out := candidates[:0]
	for _, c := range candidates {
		query, ok := queries[c.listing.ID]
		if !ok {
			log.Debug("No usable search query", "listing_id", c.listing.ID)
			stats.Failures++
			continue
		}
		c.query = query
		out = append(out, c)
	}
	return out
}

// estimate runs the price estimator per candidate; the calls share the
// estimator's cache. Estimator errors remove only the one candidate.
func (e *Engine) estimate(ctx context.Context, log *slog.Logger, candidates []candidate, stats *Stats) []candidate {
	out := candidates[:0]
	for _, c := range candidates {
		var est *model.PriceEstimate
		err := common.WithRetry(ctx, func() error {
			var estErr error
			est, estErr = e.deps.Estimator.Estimate(ctx, c.query, c.offer)
			return estErr
		}, e.cfg.Retry)
		if err != nil {
			log.Debug("No market estimate", "listing_id", c.listing.ID, "query", c.query, "error", err)
			stats.Failures++
			continue
		}
		c.est = *est
		out = append(out, c)
	}
	return out
}

// scoreAndNotify classifies the surviving batch in one call, scores
// each candidate, and notifies those that pass the gate.
func (e *Engine) scoreAndNotify(ctx context.Context, log *slog.Logger, candidates []candidate, stats *Stats) {
	if len(candidates) == 0 {
		return
	}

	items := make([]service.ClassifyItem, len(candidates))
	for i, c := range candidates {
		items[i] = service.ClassifyItem{
			ID:          c.listing.ID,
			Title:       c.listing.Title,
			Description: c.listing.Description,
			OfferPrice:  c.offer,
			MarketPrice: c.est.MedianPrice,
		}
	}

	var flags []service.ListingFlags
	err := common.WithRetry(ctx, func() error {
		var classifyErr error
		flags, classifyErr = e.deps.Classifier.ClassifyListings(ctx, items)
		return classifyErr
	}, e.cfg.Retry)
	if err != nil {
		// Without flags there is no trustworthy score; skip scoring
		// for the whole batch rather than guessing.
		log.Error("Classification unavailable, skipping batch", "batch_size", len(candidates), "error", err)
		stats.Failures += len(candidates)
		return
	}

	flagsByID := make(map[string]model.ClassificationFlags, len(flags))
	for _, f := range flags {
		flagsByID[f.ID] = f.Flags
	}

	for _, c := range candidates {
		f, ok := flagsByID[c.listing.ID]
		if !ok {
			log.Debug("No classification returned", "listing_id", c.listing.ID)
			stats.Failures++
			continue
		}

		result := e.deps.Scorer.Score(c.listing, c.offer, c.est, f)
		stats.Scored++

		if !e.passesGate(result) {
			log.Debug("Gate rejected listing",
				"listing_id", c.listing.ID,
				"score", result.Score,
				"margin_eur", result.MarginEur)
			continue
		}

		message := notify.FormatDeal(notify.Deal{
			Listing:  c.listing,
			Estimate: c.est,
			Result:   result,
			Flags:    f,
			Offer:    c.offer,
		})
		if e.send(ctx, log, message, c.listing, c.query, false) {
			stats.Notified++
		}
	}
}

// passesGate applies the notification threshold. A zero score is a
// categorical veto that no margin may bypass.
func (e *Engine) passesGate(result model.ScoreResult) bool {
	if result.Score == 0 {
		return false
	}
	return result.MarginEur.GreaterThanOrEqual(e.cfg.MinMarginEur) || result.Score >= e.cfg.MinScore
}

func (e *Engine) notifyWhitelist(ctx context.Context, log *slog.Logger, l model.Listing) {
	e.send(ctx, log, notify.FormatWhitelistHit(l), l, l.Title, true)
}

// send delivers one notification; delivery failure is logged, never
// propagated.
func (e *Engine) send(ctx context.Context, log *slog.Logger, message string, l model.Listing, query string, priority bool) bool {
	links := []service.ActionLink{
		{Text: "📱 Anzeige öffnen", URL: l.Link},
		{Text: "📊 Markt-Check", URL: market.SoldSearchURL(query)},
	}

	var delivered bool
	err := common.WithRetry(ctx, func() error {
		var sendErr error
		delivered, sendErr = e.deps.Notifier.Send(ctx, message, links, priority)
		return sendErr
	}, e.cfg.Retry)
	if err != nil || !delivered {
		log.Error("Notification not delivered", "listing_id", l.ID, "error", err)
		return false
	}
	return true
}

// matchesAny reports whether any term occurs in the listing title or
// description, case-insensitively.
func matchesAny(l model.Listing, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	haystack := strings.ToLower(l.Title + " " + l.Description)
	for _, term := range terms {
		if term != "" && strings.Contains(haystack, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
