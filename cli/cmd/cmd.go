package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

type (
	Options struct {
		Debug      bool
		ConfigFile string
	}

	runFunc func(cmd *cobra.Command, args []string, app *application) error
)

func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func NewRootCommand() *cobra.Command {
	options := &Options{}

	rootCmd := &cobra.Command{
		Use:          "currency-rates",
		Short:        "Historical currency exchange rates with gap filling",
		Version:      "v2.0.0",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVar(&options.Debug, "debug", false, "Debug flag")
	rootCmd.PersistentFlags().StringVar(&options.ConfigFile, "config", "./config.yml", "Path to config file")

	rootCmd.AddCommand(
		migrate(options),
		rates(options),
		convert(options),
		backfill(options),
		serve(options),
	)

	return rootCmd
}

// withApplication loads the configuration, opens the storage and closes
// everything once run returns.
func withApplication(options *Options, run runFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		v, err := newViper(options.ConfigFile)

		if err != nil {
			return err
		}

		config, err := getConfig(v)

		if err != nil {
			return err
		}

		app, err := newApplication(cmd.Context(), config, options.Debug, cmd.ErrOrStderr())

		if err != nil {
			return err
		}

		defer func() {
			err = errors.Join(err, app.Close())
		}()

		return run(cmd, args, app)
	}
}
