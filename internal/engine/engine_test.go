package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealhound/dealhound/internal/common"
	"github.com/dealhound/dealhound/internal/model"
	"github.com/dealhound/dealhound/internal/score"
	"github.com/dealhound/dealhound/internal/service"
)

const searchURL = "https://www.kleinanzeigen.de/s-iphone/k0"

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func neutralFlags() model.ClassificationFlags {
	return model.ClassificationFlags{Liquidity: model.LiquidityMedium}
}

// testDeps returns a full mock dependency set for one listing page.
func testDeps(listings ...model.Listing) Dependencies {
	queries := make(map[string]string)
	flags := make(map[string]model.ClassificationFlags)
	for _, l := range listings {
		queries[l.ID] = "query " + l.ID
		flags[l.ID] = neutralFlags()
	}

	return Dependencies{
		Listings:   &mockListingSource{pages: map[string][]model.Listing{searchURL: listings}},
		Seen:       newMockSeenStore(),
		Normalizer: &mockNormalizer{queries: queries},
		Estimator:  &mockEstimator{estimates: map[string]model.PriceEstimate{}},
		Classifier: &mockClassifier{flags: flags},
		Scorer:     score.New(nil),
		Notifier:   newMockNotifier(),
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SearchURLs = []string{searchURL}
	cfg.Retry = service.RetryOptions{MaxAttempts: 1, InitialDelay: time.Millisecond}
	return cfg
}

func newTestEngine(t *testing.T, deps Dependencies, cfg Config) *Engine {
	t.Helper()
	e, err := New(deps, cfg)
	require.NoError(t, err)
	return e
}

func TestRunCycleNotifiesQualifyingDeal(t *testing.T) {
	listing := model.Listing{
		ID:       "ad-1",
		Title:    "iPhone 13 128GB",
		RawPrice: "100 €",
		Link:     "https://www.kleinanzeigen.de/s-anzeige/ad-1",
	}
	deps := testDeps(listing)
	e := newTestEngine(t, deps, testConfig())

	stats, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	// Default mock estimate is median 200 for offer 100: margin 96,
	// score clamps to 100, both gate conditions pass.
	assert.Equal(t, 1, stats.Scraped)
	assert.Equal(t, 1, stats.Scored)
	assert.Equal(t, 1, stats.Notified)
	assert.Equal(t, 0, stats.Failures)

	notifier := deps.Notifier.(*mockNotifier)
	require.Len(t, notifier.sent, 1)
	sent := notifier.sent[0]
	assert.False(t, sent.priority)
	assert.Contains(t, sent.message, "Score: 100/100")
	assert.Contains(t, sent.message, "iPhone 13 128GB")
	require.Len(t, sent.links, 2)
	assert.Equal(t, listing.Link, sent.links[0].URL)
	assert.Contains(t, sent.links[1].URL, "LH_Sold=1")
}

func TestRunCycleDeduplicates(t *testing.T) {
	listing := model.Listing{ID: "ad-1", Title: "iPhone 13", RawPrice: "100 €"}
	deps := testDeps(listing)
	e := newTestEngine(t, deps, testConfig())

	first, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Notified)

	// The same scrape again: silently discarded, nothing notified.
	second, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Duplicates)
	assert.Equal(t, 0, second.Scored)
	assert.Len(t, deps.Notifier.(*mockNotifier).sent, 1)
}

func TestRunCycleFilterRules(t *testing.T) {
	tests := []struct {
		name    string
		listing model.Listing
		mutate  func(*Config)
	}{
		{
			name:    "denylist term in title",
			listing: model.Listing{ID: "x", Title: "iPhone 13 Hülle", RawPrice: "100 €"},
			mutate:  func(c *Config) { c.Denylist = []string{"hülle"} },
		},
		{
			name:    "denylist term in description",
			listing: model.Listing{ID: "x", Title: "iPhone 13", Description: "nur Tausch", RawPrice: "100 €"},
			mutate:  func(c *Config) { c.Denylist = []string{"tausch"} },
		},
		{
			name:    "price below band",
			listing: model.Listing{ID: "x", Title: "iPhone 13", RawPrice: "5 €"},
		},
		{
			name:    "price above band",
			listing: model.Listing{ID: "x", Title: "iPhone 13", RawPrice: "2.500 €"},
		},
		{
			name:    "commercial seller",
			listing: model.Listing{ID: "x", Title: "iPhone 13", RawPrice: "100 €", Seller: &model.SellerInfo{AccountType: model.AccountTypeCommercial, ActiveSinceDays: 900}},
		},
		{
			name:    "young account",
			listing: model.Listing{ID: "x", Title: "iPhone 13", RawPrice: "100 €", Seller: &model.SellerInfo{AccountType: model.AccountTypePrivate, ActiveSinceDays: 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps(tt.listing)
			cfg := testConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			e := newTestEngine(t, deps, cfg)

			stats, err := e.RunCycle(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, stats.FilteredOut)
			assert.Equal(t, 0, stats.Scored)
			assert.Empty(t, deps.Notifier.(*mockNotifier).sent)
		})
	}
}

func TestRunCycleSellerWithUnknownAgePasses(t *testing.T) {
	listing := model.Listing{
		ID:       "ad-1",
		Title:    "iPhone 13",
		RawPrice: "100 €",
		Seller:   &model.SellerInfo{AccountType: model.AccountTypePrivate, ActiveSinceDays: -1},
	}
	deps := testDeps(listing)
	e := newTestEngine(t, deps, testConfig())

	stats, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Notified)
}

func TestRunCycleMissingPricePolicy(t *testing.T) {
	t.Run("placeholder keeps the listing", func(t *testing.T) {
		listing := model.Listing{ID: "ad-1", Title: "iPhone 13", RawPrice: "VB"}
		deps := testDeps(listing)
		e := newTestEngine(t, deps, testConfig())

		stats, err := e.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Scored, "placeholder price keeps the listing in play")
	})

	t.Run("drop removes the listing", func(t *testing.T) {
		listing := model.Listing{ID: "ad-1", Title: "iPhone 13", RawPrice: "VB"}
		deps := testDeps(listing)
		cfg := testConfig()
		cfg.MissingPricePolicy = MissingPriceDrop
		e := newTestEngine(t, deps, cfg)

		stats, err := e.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, stats.FilteredOut)
		assert.Equal(t, 0, stats.Scored)
	})
}

func TestRunCycleWhitelistFastPath(t *testing.T) {
	listing := model.Listing{ID: "ad-1", Title: "Konvolut Gameboy Spiele", RawPrice: "50 €"}
	deps := testDeps(listing)
	cfg := testConfig()
	cfg.Whitelist = []string{"konvolut"}
	e := newTestEngine(t, deps, cfg)

	stats, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Whitelisted)
	assert.Equal(t, 0, stats.Scored)
	assert.Equal(t, 0, deps.Estimator.(*mockEstimator).calls, "fast path bypasses estimation")
	assert.Equal(t, 0, deps.Classifier.(*mockClassifier).calls, "fast path bypasses classification")

	notifier := deps.Notifier.(*mockNotifier)
	require.Len(t, notifier.sent, 1)
	assert.True(t, notifier.sent[0].priority)
	assert.Contains(t, notifier.sent[0].message, "WHITELIST")
}

func TestRunCycleScoreZeroVeto(t *testing.T) {
	listing := model.Listing{ID: "ad-1", Title: "Original Ladegerät", RawPrice: "100 €"}
	deps := testDeps(listing)
	flags := neutralFlags()
	flags.AccessoryOnly = true
	deps.Classifier = &mockClassifier{flags: map[string]model.ClassificationFlags{"ad-1": flags}}

	// Margin is far above the minimum; the zero score must still veto.
	cfg := testConfig()
	cfg.MinMarginEur = decimal.NewFromInt(1)
	e := newTestEngine(t, deps, cfg)

	stats, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Scored)
	assert.Equal(t, 0, stats.Notified)
	assert.Empty(t, deps.Notifier.(*mockNotifier).sent)
}

func TestRunCycleMarginAloneOpensGate(t *testing.T) {
	// offer 200, median 250: margin 54, score 61 — below MinScore 75
	// but above the margin threshold.
	listing := model.Listing{ID: "ad-1", Title: "iPhone 13", RawPrice: "200 €"}
	deps := testDeps(listing)
	deps.Estimator = &mockEstimator{estimates: map[string]model.PriceEstimate{
		"query ad-1": {MedianPrice: d("250"), SampleCount: 6},
	}}
	e := newTestEngine(t, deps, testConfig())

	stats, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Notified)
}

func TestRunCycleGateRejectsWeakDeal(t *testing.T) {
	// offer 200, median 220: margin 26.4 < 40 and score 30 < 75.
	listing := model.Listing{ID: "ad-1", Title: "iPhone 13", RawPrice: "200 €"}
	deps := testDeps(listing)
	deps.Estimator = &mockEstimator{estimates: map[string]model.PriceEstimate{
		"query ad-1": {MedianPrice: d("220"), SampleCount: 6},
	}}
	e := newTestEngine(t, deps, testConfig())

	stats, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Scored)
	assert.Equal(t, 0, stats.Notified)
}

func TestRunCyclePartialFailureIsolation(t *testing.T) {
	good := model.Listing{ID: "good", Title: "iPhone 13", RawPrice: "100 €"}
	bad := model.Listing{ID: "bad", Title: "iPhone 12", RawPrice: "100 €"}
	deps := testDeps(good, bad)
	deps.Estimator = &mockEstimator{
		failing: map[string]error{
			"query bad": fmt.Errorf("%w: 2 of 9 samples in corridor", common.ErrInsufficientData),
		},
	}
	e := newTestEngine(t, deps, testConfig())

	stats, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	// The failing sibling is removed alone; the good listing completes.
	assert.Equal(t, 1, stats.Failures)
	assert.Equal(t, 1, stats.Notified)
	notifier := deps.Notifier.(*mockNotifier)
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0].message, "iPhone 13")
}

func TestRunCycleClassificationOutage(t *testing.T) {
	listing := model.Listing{ID: "ad-1", Title: "iPhone 13", RawPrice: "100 €"}
	deps := testDeps(listing)
	deps.Classifier = &mockClassifier{err: fmt.Errorf("%w: boom", common.ErrClassificationUnavailable)}
	e := newTestEngine(t, deps, testConfig())

	stats, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Scored)
	assert.Equal(t, 1, stats.Failures)
	assert.Empty(t, deps.Notifier.(*mockNotifier).sent)
}

func TestRunCycleDropsUnanswered(t *testing.T) {
	answered := model.Listing{ID: "a", Title: "iPhone 13", RawPrice: "100 €"}
	unanswered := model.Listing{ID: "b", Title: "iPhone 12", RawPrice: "100 €"}
	deps := testDeps(answered, unanswered)
	deps.Classifier = &mockClassifier{flags: map[string]model.ClassificationFlags{"a": neutralFlags()}}
	e := newTestEngine(t, deps, testConfig())

	stats, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Scored)
	assert.Equal(t, 1, stats.Failures)
}

func TestRunCycleNotificationFailureDoesNotAbort(t *testing.T) {
	a := model.Listing{ID: "a", Title: "iPhone 13", RawPrice: "100 €"}
	b := model.Listing{ID: "b", Title: "iPhone 14", RawPrice: "100 €"}
	deps := testDeps(a, b)
	deps.Notifier = &mockNotifier{delivered: false}
	e := newTestEngine(t, deps, testConfig())

	stats, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Scored)
	assert.Equal(t, 0, stats.Notified)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	deps := testDeps()

	_, err := New(deps, Config{})
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	cfg := testConfig()
	cfg.MissingPricePolicy = "guess"
	_, err = New(deps, cfg)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	cfg = testConfig()
	cfg.MinPrice = d("100")
	cfg.MaxPrice = d("50")
	_, err = New(deps, cfg)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}
