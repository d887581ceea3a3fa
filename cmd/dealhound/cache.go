package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dealhound/dealhound/internal/cache"
	"github.com/dealhound/dealhound/internal/config"
	"github.com/dealhound/dealhound/internal/model"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the market-price and query caches",
	}

	cmd.AddCommand(cacheStatsCmd())
	cmd.AddCommand(cacheClearCmd())

	return cmd
}

func cacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry counts",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := config.Load()
			prices := cache.New[model.PriceEstimate](cfg.Market.CacheFile, cfg.Market.CacheTTL, cfg.Market.SchemaVersion)
			queries := newQueryCache(cfg)

			slog.Info("Price cache", "path", prices.Path(), "entries", prices.Len())
			slog.Info("Query cache", "path", queries.Path(), "entries", queries.Len())
			return nil
		},
	}
}

func cacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop all cached estimates and queries",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := config.Load()
			prices := cache.New[model.PriceEstimate](cfg.Market.CacheFile, cfg.Market.CacheTTL, cfg.Market.SchemaVersion)
			queries := newQueryCache(cfg)

			prices.Clear()
			queries.Clear()

			slog.Info("Caches cleared")
			return nil
		},
	}
}
