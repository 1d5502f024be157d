package currency

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Fetcher is a single external rate source. A missing rate is reported
	// with ok == false and is not an error.
	Fetcher interface {
		GetRate(ctx context.Context, from, to string, date time.Time) (rate decimal.Decimal, ok bool, err error)
	}

	RateStream interface {
		Next() bool
		Rate() ExchangeRate
		Err() error
		Close() error
	}

	Reconciler interface {
		Reconcile(ctx context.Context, base string, from, to time.Time) (RateStream, error)
	}

	Conversion struct {
		From   string          `json:"from_currency"`
		To     string          `json:"to_currency"`
		Amount decimal.Decimal `json:"amount"`
		Rate   decimal.Decimal `json:"rate"`
		Date   time.Time       `json:"date"`
	}

	Converter interface {
		Convert(ctx context.Context, amount decimal.Decimal, from, to string) (Conversion, error)
	}
)

// Collect drains stream and closes it.
func Collect(stream RateStream) ([]ExchangeRate, error) {
	rates := make([]ExchangeRate, 0)

	for stream.Next() {
		rates = append(rates, stream.Rate())
	}

	if err := stream.Close(); err != nil {
		return rates, err
	}

	return rates, nil
}
