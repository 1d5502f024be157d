package cmd

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	currency "github.com/malusev998/currency-rates"
)

func convert(options *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "convert FROM TO AMOUNT",
		Short: "Convert an amount with the latest stored exchange rate",
		Args:  cobra.ExactArgs(3),
		RunE: withApplication(options, func(cmd *cobra.Command, args []string, app *application) error {
			amount, err := decimal.NewFromString(args[2])

			if err != nil {
				return fmt.Errorf("amount %q is not a valid number", args[2])
			}

			conversion, err := app.converter().Convert(cmd.Context(), amount, strings.ToUpper(args[0]), strings.ToUpper(args[1]))

			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s %s (rate %s on %s)\n",
				amount.String(),
				conversion.From,
				conversion.Amount.StringFixedBank(app.config.AmountPrecision),
				conversion.To,
				conversion.Rate.String(),
				conversion.Date.Format(currency.DateLayout),
			)

			return err
		}),
	}
}
