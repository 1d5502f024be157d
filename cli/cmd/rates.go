package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	currency "github.com/malusev998/currency-rates"
)

func rates(options *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "rates BASE FROM TO",
		Short: "Print the exchange rates of BASE between two dates, fetching the missing ones",
		Args:  cobra.ExactArgs(3),
		RunE: withApplication(options, func(cmd *cobra.Command, args []string, app *application) error {
			from, err := currency.ParseDate(args[1])

			if err != nil {
				return err
			}

			to, err := currency.ParseDate(args[2])

			if err != nil {
				return err
			}

			reconciler, err := app.newReconciler(cmd.Context())

			if err != nil {
				return err
			}

			stream, err := reconciler.Reconcile(cmd.Context(), strings.ToUpper(args[0]), from, to)

			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			for stream.Next() {
				if _, err := fmt.Fprintln(out, stream.Rate().String()); err != nil {
					return errors.Join(err, stream.Close())
				}
			}

			return stream.Close()
		}),
	}
}
