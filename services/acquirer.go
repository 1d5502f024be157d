package services

import (
	"context"
	"time"

	currency "github.com/malusev998/currency-rates"
)

const DefaultRatePrecision int32 = 6

type (
	Acquirer interface {
		Acquire(ctx context.Context, from, to string, date time.Time) (currency.ExchangeRate, bool)
	}

	RateAcquirer struct {
		source    RateSource
		precision int32
	}
)

func NewRateAcquirer(source RateSource, precision int32) *RateAcquirer {
	if precision < 0 {
		precision = DefaultRatePrecision
	}

	return &RateAcquirer{source: source, precision: precision}
}

// Acquire returns a storable record, rounded half to even to the configured
// precision, or false when no provider has a rate for the slot.
func (a *RateAcquirer) Acquire(ctx context.Context, from, to string, date time.Time) (currency.ExchangeRate, bool) {
	day := currency.Day(date)
	rate, provider, ok := a.source.Fetch(ctx, from, to, day)

	if !ok {
		return currency.ExchangeRate{}, false
	}

	return currency.ExchangeRate{
		From:     from,
		To:       to,
		Date:     day,
		Rate:     rate.RoundBank(a.precision),
		Provider: provider,
	}, true
}
