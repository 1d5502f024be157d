package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/malusev998/currency-rates/api"
)

const shutdownTimeout = 10 * time.Second

func serve(options *Options) *cobra.Command {
	var addr string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the exchange rate API and prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: withApplication(options, func(cmd *cobra.Command, _ []string, app *application) error {
			ctx := cmd.Context()

			reconciler, err := app.newReconciler(ctx)

			if err != nil {
				return err
			}

			if addr == "" {
				addr = app.config.HTTPAddr
			}

			server := &http.Server{
				Addr: addr,
				Handler: api.NewRouter(api.Config{
					Reconciler:      reconciler,
					Converter:       app.converter(),
					Currencies:      app.storage,
					RatePrecision:   app.config.RatePrecision,
					AmountPrecision: app.config.AmountPrecision,
					Gatherer:        app.registry,
					Logger:          app.logger,
				}),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errs := make(chan error, 1)

			go func() {
				app.logger.Info("http server listening", slog.String("addr", addr))
				errs <- server.ListenAndServe()
			}()

			select {
			case err := <-errs:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}

			if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			return nil
		}),
	}

	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides http.addr")

	return serveCmd
}
