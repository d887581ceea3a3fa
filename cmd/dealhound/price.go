package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dealhound/dealhound/internal/config"
)

func priceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price <query>...",
		Short: "Estimate the market price for a search query",
		Long: `Run a one-off market-price estimation against sold listings, using the
same corridor and clustering rules as the watch loop.

The offer price anchors the plausibility corridor around the samples.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runPrice,
	}

	cmd.Flags().Float64P("offer", "o", 100, "Offer price in EUR to anchor the corridor")
	_ = viper.BindPFlag("price.offer", cmd.Flags().Lookup("offer"))

	return cmd
}

func runPrice(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	query := strings.Join(args, " ")
	offer := decimal.NewFromFloat(viper.GetFloat64("price.offer"))

	estimator := newEstimator(cfg)
	est, err := estimator.Estimate(cmd.Context(), query, offer)
	if err != nil {
		return fmt.Errorf("no estimate for %q: %w", query, err)
	}

	slog.Info("Market estimate",
		"query", query,
		"median_eur", est.MedianPrice.StringFixed(2),
		"samples", est.SampleCount,
		"corridor", fmt.Sprintf("[%s, %s]", est.CorridorLow.StringFixed(2), est.CorridorHigh.StringFixed(2)))

	return nil
}
