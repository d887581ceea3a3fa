package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dealhound/dealhound/internal/config"
	"github.com/dealhound/dealhound/internal/storage"
)

func seenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seen",
		Short: "Manage the seen-listings store",
	}

	cmd.AddCommand(seenPurgeCmd())
	cmd.AddCommand(seenStatsCmd())

	return cmd
}

func seenPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete seen records older than a cutoff",
		Long: `Remove old entries from the seen-listings store. Purged listings will
notify again if they are still online on the next cycle.`,
		RunE: runSeenPurge,
	}

	cmd.Flags().Duration("older-than", 30*24*time.Hour, "Delete records first seen before this age")
	_ = viper.BindPFlag("seen.older_than", cmd.Flags().Lookup("older-than"))

	return cmd
}

func runSeenPurge(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()

	store, err := storage.NewSQLiteSeenStore(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open seen store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close seen store", "error", closeErr)
		}
	}()

	olderThan := viper.GetDuration("seen.older_than")
	purged, err := store.Purge(cmd.Context(), olderThan)
	if err != nil {
		return err
	}

	slog.Info("Purged seen records", "older_than", olderThan, "purged", purged)
	return nil
}

func seenStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show seen-store size",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()

			store, err := storage.NewSQLiteSeenStore(cfg.Storage.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open seen store: %w", err)
			}
			defer func() {
				if closeErr := store.Close(); closeErr != nil {
					slog.Error("Failed to close seen store", "error", closeErr)
				}
			}()

			count, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}

			slog.Info("Seen store", "path", cfg.Storage.DBPath, "entries", count)
			return nil
		},
	}
}
