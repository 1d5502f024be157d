package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	currency "github.com/malusev998/currency-rates"
	"github.com/malusev998/currency-rates/services"
)

func handleBackfill(ctx context.Context, app *application, date time.Time, out io.Writer) error {
	loader := services.NewHistoricalLoader(
		app.storage,
		app.newAcquirer,
		app.config.Workers,
		app.config.BatchSize,
		app.logger,
		app.metrics,
	)

	result, err := loader.Backfill(ctx, date)

	if err != nil {
		return err
	}

	app.logger.Info("backfill finished",
		slog.String("date", result.Date.Format(currency.DateLayout)),
		slog.Int("pairs", result.Pairs),
		slog.Int("fetched", result.Fetched),
		slog.Int64("inserted", result.Inserted),
	)

	_, err = fmt.Fprintf(out, "Loaded currency exchange rates: %d\n", result.Total)

	return err
}

func backfill(options *Options) *cobra.Command {
	var (
		standalone bool
		after      time.Duration
	)

	backfillCmd := &cobra.Command{
		Use:   "backfill [YYYY-MM-DD]",
		Short: "Load the exchange rates of every currency pair for one day",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApplication(options, func(cmd *cobra.Command, args []string, app *application) error {
			if standalone && after <= 0 {
				return fmt.Errorf("--after must be positive, got %s", after)
			}

			ctx := cmd.Context()
			date := currency.Day(time.Now())

			if len(args) == 1 {
				parsed, err := currency.ParseDate(args[0])

				if err != nil {
					return err
				}

				date = parsed
			}

			if err := handleBackfill(ctx, app, date, cmd.OutOrStdout()); err != nil {
				return err
			}

			if !standalone {
				return nil
			}

			ticker := time.NewTicker(after)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					if err := handleBackfill(ctx, app, currency.Day(time.Now()), cmd.OutOrStdout()); err != nil {
						app.logger.Error("backfill failed", slog.String("error", err.Error()))
					}
				case <-ctx.Done():
					return nil
				}
			}
		}),
	}

	backfillCmd.Flags().BoolVar(&standalone, "standalone", false, "Keep running and backfill the current day periodically")
	backfillCmd.Flags().DurationVar(&after, "after", time.Hour, "Interval between backfills in standalone mode")

	return backfillCmd
}
