package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dealhound/dealhound/internal/cache"
	"github.com/dealhound/dealhound/internal/config"
	"github.com/dealhound/dealhound/internal/engine"
	"github.com/dealhound/dealhound/internal/llm"
	"github.com/dealhound/dealhound/internal/market"
	"github.com/dealhound/dealhound/internal/model"
	"github.com/dealhound/dealhound/internal/normalize"
	"github.com/dealhound/dealhound/internal/notify"
	"github.com/dealhound/dealhound/internal/score"
	"github.com/dealhound/dealhound/internal/scrape"
	"github.com/dealhound/dealhound/internal/storage"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watch",
		Aliases: []string{"run"},
		Short:   "Poll saved searches and push qualifying deals",
		Long: `Run the monitoring loop: scrape each configured search URL, filter and
score new listings, and notify on every deal that clears the gate.

Polling slows down during the configured quiet hours.`,
		RunE: runWatch,
	}

	cmd.Flags().Bool("once", false, "Run a single cycle and exit")
	_ = viper.BindPFlag("poll.once", cmd.Flags().Lookup("once"))

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.Load()

	eng, seen, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := seen.Close(); closeErr != nil {
			slog.Error("Failed to close seen store", "error", closeErr)
		}
	}()

	if viper.GetBool("poll.once") {
		_, err := eng.RunCycle(ctx)
		return ignoreCanceled(err)
	}

	slog.Info("Starting watch loop",
		"searches", len(cfg.Search.URLs),
		"interval", cfg.Poll.Interval,
		"quiet_hours", cfg.Poll.QuietHours)

	for {
		if _, err := eng.RunCycle(ctx); err != nil {
			return ignoreCanceled(err)
		}

		pause := cfg.Poll.IntervalAt(time.Now())
		if cfg.Poll.Jitter > 0 {
			pause += rand.N(cfg.Poll.Jitter)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(pause):
		}
	}
}

// ignoreCanceled maps context cancellation to a clean exit: an
// interrupt during a cycle is a shutdown, not a failure.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// buildEngine wires the full pipeline from configuration. The caller
// owns closing the returned seen store.
func buildEngine(cfg config.Config) (*engine.Engine, *storage.SQLiteSeenStore, error) {
	seen, err := storage.NewSQLiteSeenStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open seen store: %w", err)
	}

	classifier, err := llm.NewOpenAIClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		_ = seen.Close()
		return nil, nil, err
	}

	notifier, err := notify.NewTelegramNotifier(notify.Config{
		Token:  cfg.Telegram.Token,
		ChatID: cfg.Telegram.ChatID,
	})
	if err != nil {
		_ = seen.Close()
		return nil, nil, err
	}

	client := scrape.NewClient(scrape.Config{})

	eng, err := engine.New(engine.Dependencies{
		Listings:   client,
		Sellers:    client,
		Seen:       seen,
		Normalizer: normalize.New(classifier, newQueryCache(cfg)),
		Estimator:  newEstimator(cfg),
		Classifier: classifier,
		Scorer:     score.New(cfg.Score.BoosterTerms),
		Notifier:   notifier,
	}, engine.Config{
		MinPrice:           cfg.Filter.MinPrice,
		MaxPrice:           cfg.Filter.MaxPrice,
		PlaceholderPrice:   cfg.Filter.PlaceholderPrice,
		MissingPricePolicy: cfg.Filter.MissingPricePolicy,
		MinMarginEur:       cfg.Score.MinMarginEur,
		MinScore:           cfg.Score.MinScore,
		MinAccountAgeDays:  cfg.Filter.MinAccountAgeDays,
		FetchSellerInfo:    cfg.Filter.FetchSellerInfo,
		SearchURLs:         cfg.Search.URLs,
		Denylist:           cfg.Filter.Denylist,
		Whitelist:          cfg.Filter.Whitelist,
	})
	if err != nil {
		_ = seen.Close()
		return nil, nil, err
	}
	return eng, seen, nil
}

func newEstimator(cfg config.Config) *market.Estimator {
	source := market.NewSoldListingsSource(market.SourceConfig{BaseURL: cfg.Market.BaseURL})
	store := cache.New[model.PriceEstimate](cfg.Market.CacheFile, cfg.Market.CacheTTL, cfg.Market.SchemaVersion)
	return market.NewEstimator(source, store, market.DefaultConfig())
}

// newQueryCache stores normalized search queries next to the price
// cache; both share TTL and schema version.
func newQueryCache(cfg config.Config) *cache.Cache[string] {
	path := filepath.Join(filepath.Dir(cfg.Market.CacheFile), "query_cache.json")
	return cache.New[string](path, cfg.Market.CacheTTL, cfg.Market.SchemaVersion)
}
