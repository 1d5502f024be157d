package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	currency "github.com/malusev998/currency-rates"
)

const DefaultAmountPrecision int32 = 2

type ConversionService struct {
	Storage         currency.Storage
	AmountPrecision int32
}

// Convert prices amount with the most recent stored rate of the pair.
func (c ConversionService) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (currency.Conversion, error) {
	if amount.IsNegative() {
		return currency.Conversion{}, ErrInvalidAmount
	}

	for _, code := range []string{from, to} {
		if _, err := c.Storage.CurrencyByCode(ctx, code); err != nil {
			return currency.Conversion{}, err
		}
	}

	rate, err := c.Storage.Latest(ctx, from, to)

	if errors.Is(err, currency.ErrRateNotFound) {
		return currency.Conversion{}, ErrRateNotAvailable
	}

	if err != nil {
		return currency.Conversion{}, err
	}

	return currency.Conversion{
		From:   from,
		To:     to,
		Amount: convert(amount, rate.Rate, c.AmountPrecision),
		Rate:   rate.Rate,
		Date:   rate.Date,
	}, nil
}

func convert(value, rate decimal.Decimal, precision int32) decimal.Decimal {
	return value.Mul(rate).RoundBank(precision)
}
