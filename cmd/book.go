package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fairwaylabs/teesnipe/internal/artifacts"
	"github.com/fairwaylabs/teesnipe/internal/booking"
	"github.com/fairwaylabs/teesnipe/internal/config"
	"github.com/fairwaylabs/teesnipe/internal/observability"
)

// runSummary is the shape written to the run directory's summary.json.
type runSummary struct {
	RunID      string    `json:"run_id"`
	Date       string    `json:"date"`
	Slot       string    `json:"slot"`
	Attempts   int       `json:"attempts"`
	FinishedAt time.Time `json:"finished_at"`
}

// newBookCmd creates and configures the `book` command.
func newBookCmd() *cobra.Command {
	bookCmd := &cobra.Command{
		Use:   "book",
		Short: "Runs a booking attempt against the configured course",
		Long: `Logs into the booking widget and books a tee time for the configured
date. In "release" mode the run sleeps until just before the daily slot
release and then races it; in "immediate" mode a single pass runs right away.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment with the right precedence.
			if err := viper.BindPFlag("booking.mode", cmd.Flags().Lookup("mode")); err != nil {
				return err
			}
			if err := viper.BindPFlag("booking.party_size", cmd.Flags().Lookup("players")); err != nil {
				return err
			}
			if err := viper.BindPFlag("booking.preferred_time_range", cmd.Flags().Lookup("time-range")); err != nil {
				return err
			}
			if err := viper.BindPFlag("booking.advance_days", cmd.Flags().Lookup("advance-days")); err != nil {
				return err
			}
			return viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Context from Execute, canceled on SIGINT/SIGTERM.
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			store, err := artifacts.NewStore(cfg.Artifacts, time.Now(), logger)
			if err != nil {
				return err
			}

			strategy, err := booking.NewStrategy(cfg.Booking, logger)
			if err != nil {
				return err
			}

			logger.Info("Booking run configured",
				zap.String("run_id", store.RunID()),
				zap.String("mode", cfg.Booking.Mode),
				zap.Int("players", cfg.Booking.PartySize),
				zap.String("time_range", cfg.Booking.PreferredTimeRange),
				zap.Int("advance_days", cfg.Booking.AdvanceDays),
			)

			orch := booking.NewOrchestrator(cfg, strategy, store, logger)
			result, err := orch.Run(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Booking run aborted", zap.String("run_id", store.RunID()))
					return fmt.Errorf("booking aborted by user signal")
				}
				logger.Error("Booking run failed", zap.Error(err), zap.String("run_id", store.RunID()))
				return err
			}

			summary := runSummary{
				RunID:      store.RunID(),
				Date:       result.Date.Format("2006-01-02"),
				Slot:       result.Slot,
				Attempts:   result.Attempts,
				FinishedAt: time.Now(),
			}
			if path, err := store.SaveSummary(summary); err != nil {
				logger.Warn("Failed to write run summary", zap.Error(err))
			} else {
				logger.Info("Run summary written", zap.String("path", path))
			}

			fmt.Printf("\nBooked %s at %s after %d attempt(s). Run ID: %s\n",
				summary.Date, summary.Slot, summary.Attempts, summary.RunID)
			return nil
		},
	}

	bookCmd.Flags().String("mode", "", "Booking mode: 'release' or 'immediate'. (Overrides config/env)")
	bookCmd.Flags().IntP("players", "p", 0, "Party size, 1-4. (Overrides config/env)")
	bookCmd.Flags().StringP("time-range", "t", "", "Preferred tee time window, HH:MM-HH:MM. (Overrides config/env)")
	bookCmd.Flags().Int("advance-days", 0, "Days ahead of today to book. (Overrides config/env)")
	bookCmd.Flags().Bool("headless", true, "Run the browser headless. (Overrides config/env)")

	return bookCmd
}
