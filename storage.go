package currency

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCurrencyNotFound = errors.New("currency is not found")
	ErrRateNotFound     = errors.New("rate for the currency pair is not found in storage")
)

type (
	RateReader interface {
		// RatesBetween returns the stored rates quoted from base with a date in
		// [start, end], ordered by date and then by target currency code.
		RatesBetween(ctx context.Context, base string, start, end time.Time) ([]ExchangeRate, error)
		// Latest returns the most recent rate for the pair or ErrRateNotFound.
		Latest(ctx context.Context, from, to string) (ExchangeRate, error)
	}

	RateWriter interface {
		Store(ctx context.Context, rates []ExchangeRate) error
		// StoreIgnoringDuplicates skips rates violating the (from, to, date)
		// uniqueness and returns how many rows were inserted.
		StoreIgnoringDuplicates(ctx context.Context, rates []ExchangeRate) (int64, error)
	}

	Tx interface {
		RateReader
		RateWriter
		Commit(ctx context.Context) error
		Rollback(ctx context.Context) error
	}

	CurrencyRepository interface {
		Currencies(ctx context.Context) ([]Currency, error)
		CurrencyByCode(ctx context.Context, code string) (Currency, error)
		SaveCurrency(ctx context.Context, currency Currency) error
		// DeleteCurrency removes the currency together with every rate quoted
		// from or to it. An unknown code yields ErrCurrencyNotFound.
		DeleteCurrency(ctx context.Context, code string) error
	}

	Storage interface {
		RateReader
		RateWriter
		CurrencyRepository

		Providers(ctx context.Context) ([]ProviderDescriptor, error)
		SaveProvider(ctx context.Context, provider ProviderDescriptor) error

		CountOn(ctx context.Context, date time.Time) (int64, error)
		Begin(ctx context.Context) (Tx, error)

		Migrate(ctx context.Context) error
		Drop(ctx context.Context) error
		Close() error
		GetStorageProviderName() string
	}
)
