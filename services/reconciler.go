package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	currency "github.com/malusev998/currency-rates"
	"github.com/malusev998/currency-rates/metrics"
)

// GapReconciler serves a continuous series of rates for a base currency. It
// replays what storage already has and fills every missing (day, currency)
// slot from the providers on the way, inside one storage transaction.
type GapReconciler struct {
	storage   currency.Storage
	loader    *StreamLoader
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewGapReconciler(storage currency.Storage, acquirer Acquirer, batchSize int, logger *slog.Logger, m *metrics.Metrics) *GapReconciler {
	if logger == nil {
		logger = slog.Default()
	}

	loader := NewStreamLoader(acquirer, storage, batchSize, logger, m)

	return &GapReconciler{
		storage:   storage,
		loader:    loader,
		batchSize: loader.batchSize,
		logger:    logger,
		metrics:   m,
	}
}

// Reconcile validates the request eagerly and returns a lazy stream whose
// dates never decrease. Stored rates of a day come first in code order,
// followed by the rates fetched for that day, also in code order. A slot no
// provider can serve is left out of the stream.
func (r *GapReconciler) Reconcile(ctx context.Context, base string, from, to time.Time) (currency.RateStream, error) {
	from, to = currency.Day(from), currency.Day(to)

	if from.After(to) {
		return nil, ErrInvalidRange
	}

	if _, err := r.storage.CurrencyByCode(ctx, base); err != nil {
		return nil, err
	}

	currencies, err := r.storage.Currencies(ctx)

	if err != nil {
		return nil, fmt.Errorf("error while loading currencies: %w", err)
	}

	targets := make([]string, 0, len(currencies))

	for _, c := range currencies {
		if c.Code != base {
			targets = append(targets, c.Code)
		}
	}

	sort.Strings(targets)

	return newStream(func(yield func(currency.ExchangeRate) bool) error {
		return r.reconcile(ctx, base, from, to, targets, yield)
	}), nil
}

func (r *GapReconciler) reconcile(
	ctx context.Context,
	base string,
	from, to time.Time,
	targets []string,
	yield func(currency.ExchangeRate) bool,
) (err error) {
	tx, err := r.storage.Begin(ctx)

	if err != nil {
		return fmt.Errorf("error while starting transaction: %w", err)
	}

	persister := NewBatchPersister(tx, r.batchSize, Append, r.metrics)

	defer func() {
		finalCtx := context.WithoutCancel(ctx)

		if closeErr := persister.Close(finalCtx); closeErr != nil && err == nil {
			err = closeErr
		}

		if err != nil {
			if rollbackErr := tx.Rollback(finalCtx); rollbackErr != nil {
				r.logger.Error("error while rolling back reconciliation",
					slog.String("base", base),
					slog.String("error", rollbackErr.Error()),
				)
			}

			return
		}

		if commitErr := tx.Commit(finalCtx); commitErr != nil {
			err = fmt.Errorf("error while committing reconciliation: %w", commitErr)
		}
	}()

	stored, err := tx.RatesBetween(ctx, base, from, to)

	if err != nil {
		return fmt.Errorf("error while reading stored rates: %w", err)
	}

	fill := func(start, end time.Time, codes []string) (bool, error) {
		if len(codes) == 0 {
			return true, nil
		}

		return r.loader.load(ctx, persister, base, start, end, codes, yield)
	}

	lastDate := currency.PreviousDay(from)
	seen := make(map[string]struct{}, len(targets))

	for _, rate := range stored {
		day := currency.Day(rate.Date)
		rate.Date = day

		// the previous day is over, complete its missing currencies
		if !day.Equal(lastDate) && !lastDate.Before(from) {
			if more, err := fill(lastDate, lastDate, missing(targets, seen)); err != nil || !more {
				return err
			}

			seen = make(map[string]struct{}, len(targets))
		}

		// whole days absent from storage
		if currency.DaysBetween(lastDate, day) > 1 {
			if more, err := fill(currency.NextDay(lastDate), currency.PreviousDay(day), targets); err != nil || !more {
				return err
			}
		}

		if !yield(rate) {
			return nil
		}

		lastDate = day
		seen[rate.To] = struct{}{}
	}

	if len(seen) > 0 {
		if more, err := fill(lastDate, lastDate, missing(targets, seen)); err != nil || !more {
			return err
		}
	}

	if lastDate.Before(to) {
		if _, err := fill(currency.NextDay(lastDate), to, targets); err != nil {
			return err
		}
	}

	return nil
}

func missing(targets []string, seen map[string]struct{}) []string {
	codes := make([]string, 0)

	for _, code := range targets {
		if _, ok := seen[code]; !ok {
			codes = append(codes, code)
		}
	}

	return codes
}
