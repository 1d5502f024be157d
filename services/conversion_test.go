package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	currency "github.com/malusev998/currency-rates"
)

func TestConversionService_Convert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	storage := newMemoryStorage("EUR", "USD", "GBP")
	storage.seed("EUR", day(1), "1.05", "USD")
	storage.seed("EUR", day(3), "1.0625", "USD")

	service := ConversionService{Storage: storage, AmountPrecision: DefaultAmountPrecision}

	t.Run("UsesLatestRate", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)

		conversion, err := service.Convert(ctx, decimal.RequireFromString("10"), "EUR", "USD")

		assert.NoError(err)
		assert.Equal("10.62", conversion.Amount.String())
		assert.Equal("1.0625", conversion.Rate.String())
		assert.Equal(day(3), conversion.Date)
		assert.Equal("EUR", conversion.From)
		assert.Equal("USD", conversion.To)
	})

	t.Run("ZeroAmount", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)

		conversion, err := service.Convert(ctx, decimal.Zero, "EUR", "USD")

		assert.NoError(err)
		assert.True(conversion.Amount.IsZero())
	})

	t.Run("NegativeAmount", func(t *testing.T) {
		t.Parallel()

		_, err := service.Convert(ctx, decimal.NewFromInt(-1), "EUR", "USD")
		require.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("UnknownCurrency", func(t *testing.T) {
		t.Parallel()

		_, err := service.Convert(ctx, decimal.NewFromInt(1), "EUR", "XXX")
		require.ErrorIs(t, err, currency.ErrCurrencyNotFound)
	})

	t.Run("NoRateStored", func(t *testing.T) {
		t.Parallel()

		_, err := service.Convert(ctx, decimal.NewFromInt(1), "EUR", "GBP")
		require.ErrorIs(t, err, ErrRateNotAvailable)
	})
}

func TestConvertRoundsHalfToEven(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	assert.Equal("0.12", convert(decimal.RequireFromString("0.25"), decimal.RequireFromString("0.5"), 2).String())
	assert.Equal("0.38", convert(decimal.RequireFromString("0.75"), decimal.RequireFromString("0.5"), 2).String())
	assert.Equal("2", convert(decimal.RequireFromString("5"), decimal.RequireFromString("0.5"), 0).String())
}
