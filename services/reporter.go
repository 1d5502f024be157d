package services

import (
	"log/slog"
	"time"

	currency "github.com/malusev998/currency-rates"
	"github.com/malusev998/currency-rates/metrics"
)

type (
	// Reporter receives the non-fatal failures swallowed by the provider chain.
	Reporter interface {
		ProviderFailed(provider currency.Provider, from, to string, date time.Time, err error)
	}

	LogReporter struct {
		Logger  *slog.Logger
		Metrics *metrics.Metrics
	}

	NopReporter struct{}
)

func NewLogReporter(logger *slog.Logger, m *metrics.Metrics) LogReporter {
	if logger == nil {
		logger = slog.Default()
	}

	return LogReporter{Logger: logger, Metrics: m}
}

func (r LogReporter) ProviderFailed(provider currency.Provider, from, to string, date time.Time, err error) {
	r.Logger.Warn("exchange rate provider failed",
		slog.String("provider", provider.String()),
		slog.String("from", from),
		slog.String("to", to),
		slog.String("date", date.Format(currency.DateLayout)),
		slog.String("error", err.Error()),
	)
	r.Metrics.ProviderRequest(provider.String(), metrics.OutcomeError)
}

func (NopReporter) ProviderFailed(currency.Provider, string, string, time.Time, error) {}
