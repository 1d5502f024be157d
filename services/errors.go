package services

import "errors"

var (
	ErrInvalidRange     = errors.New("from date must not be after to date")
	ErrInvalidAmount    = errors.New("amount must not be negative")
	ErrRateNotAvailable = errors.New("exchange rate is not available")
	ErrPersisterClosed  = errors.New("batch persister is closed")
	ErrNoProviders      = errors.New("no active exchange rate provider")
)
