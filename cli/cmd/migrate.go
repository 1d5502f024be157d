package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/malusev998/currency-rates/storage"
)

func migrate(options *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and seed the configured currencies and providers",
		Args:  cobra.NoArgs,
		RunE: withApplication(options, func(cmd *cobra.Command, _ []string, app *application) error {
			ctx := cmd.Context()

			if err := app.storage.Migrate(ctx); err != nil {
				return err
			}

			if err := storage.Seed(ctx, app.storage, app.config.Currencies, app.config.Providers); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s: %d currencies, %d providers\n",
				app.storage.GetStorageProviderName(),
				len(app.config.Currencies),
				len(app.config.Providers),
			)

			return err
		}),
	}
}
