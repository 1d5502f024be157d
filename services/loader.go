package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	currency "github.com/malusev998/currency-rates"
	"github.com/malusev998/currency-rates/metrics"
)

// StreamLoader fetches rates for a date range and a set of target currencies,
// hands each one to the caller as soon as it is fetched and persists them in
// batches behind the caller's back.
type StreamLoader struct {
	acquirer  Acquirer
	writer    currency.RateWriter
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewStreamLoader(acquirer Acquirer, writer currency.RateWriter, batchSize int, logger *slog.Logger, m *metrics.Metrics) *StreamLoader {
	if logger == nil {
		logger = slog.Default()
	}

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &StreamLoader{
		acquirer:  acquirer,
		writer:    writer,
		batchSize: batchSize,
		logger:    logger,
		metrics:   m,
	}
}

// Load walks the days of [from, to] and, for each day, the targets in code
// order. Slots no provider can serve are skipped.
func (l *StreamLoader) Load(ctx context.Context, base string, from, to time.Time, targets []string) *Stream {
	return newStream(func(yield func(currency.ExchangeRate) bool) (err error) {
		persister := NewBatchPersister(l.writer, l.batchSize, Append, l.metrics)

		defer func() {
			if closeErr := persister.Close(context.WithoutCancel(ctx)); closeErr != nil && err == nil {
				err = closeErr
			}
		}()

		_, err = l.load(ctx, persister, base, from, to, targets, yield)

		return err
	})
}

// load returns false when the consumer stopped pulling.
func (l *StreamLoader) load(
	ctx context.Context,
	persister *BatchPersister,
	base string,
	from, to time.Time,
	targets []string,
	yield func(currency.ExchangeRate) bool,
) (bool, error) {
	codes := make([]string, len(targets))
	copy(codes, targets)
	sort.Strings(codes)

	l.logger.Debug("loading missing exchange rates",
		slog.String("base", base),
		slog.String("from", from.Format(currency.DateLayout)),
		slog.String("to", to.Format(currency.DateLayout)),
		slog.Int("currencies", len(codes)),
	)

	for day := currency.Day(from); !day.After(currency.Day(to)); day = currency.NextDay(day) {
		for _, code := range codes {
			if err := ctx.Err(); err != nil {
				return false, err
			}

			rate, ok := l.acquirer.Acquire(ctx, base, code, day)

			if !ok {
				l.logger.Debug("exchange rate is not available",
					slog.String("from", base),
					slog.String("to", code),
					slog.String("date", day.Format(currency.DateLayout)),
				)

				continue
			}

			if err := persister.Add(ctx, rate); err != nil {
				return false, err
			}

			if !yield(rate) {
				return false, nil
			}
		}
	}

	return true, nil
}
