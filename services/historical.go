package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	currency "github.com/malusev998/currency-rates"
	"github.com/malusev998/currency-rates/metrics"
)

type (
	// AcquirerFactory builds the long-lived acquirer owned by one worker.
	AcquirerFactory func(ctx context.Context) (Acquirer, error)

	BackfillResult struct {
		Date     time.Time
		Pairs    int
		Fetched  int
		Inserted int64
		Total    int64
	}

	// HistoricalLoader pre-populates one day of rates for every ordered pair
	// of known currencies using a pool of workers.
	HistoricalLoader struct {
		storage     currency.Storage
		newAcquirer AcquirerFactory
		workers     int
		batchSize   int
		logger      *slog.Logger
		metrics     *metrics.Metrics
	}

	currencyPair struct {
		from string
		to   string
	}
)

func NewHistoricalLoader(
	storage currency.Storage,
	newAcquirer AcquirerFactory,
	workers, batchSize int,
	logger *slog.Logger,
	m *metrics.Metrics,
) *HistoricalLoader {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &HistoricalLoader{
		storage:     storage,
		newAcquirer: newAcquirer,
		workers:     workers,
		batchSize:   batchSize,
		logger:      logger,
		metrics:     m,
	}
}

// Backfill is idempotent: rows already stored for the date are kept and only
// the missing ones are inserted.
func (h *HistoricalLoader) Backfill(ctx context.Context, date time.Time) (result BackfillResult, err error) {
	day := currency.Day(date)
	result.Date = day

	currencies, err := h.storage.Currencies(ctx)

	if err != nil {
		return result, fmt.Errorf("error while loading currencies: %w", err)
	}

	pairs := currencyPairs(currencies)
	result.Pairs = len(pairs)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(runCtx)
	work := make(chan currencyPair)
	results := make(chan currency.ExchangeRate)

	group.Go(func() error {
		defer close(work)

		for _, pair := range pairs {
			select {
			case work <- pair:
			case <-groupCtx.Done():
				return nil
			}
		}

		return nil
	})

	var workers sync.WaitGroup

	for i := 0; i < h.workers; i++ {
		workers.Add(1)

		group.Go(func() error {
			defer workers.Done()

			return h.work(groupCtx, day, work, results)
		})
	}

	go func() {
		workers.Wait()
		close(results)
	}()

	persister := NewBatchPersister(h.storage, h.batchSize, IgnoreDuplicates, h.metrics)
	var persistErr error

	for rate := range results {
		if persistErr != nil {
			continue
		}

		result.Fetched++
		h.logger.Debug("1 "+rate.From+" -> "+rate.Rate.String()+" "+rate.To,
			slog.String("provider", rate.Provider.String()),
		)

		if err := persister.Add(runCtx, rate); err != nil {
			persistErr = err
			cancel()
		}
	}

	closeErr := persister.Close(context.WithoutCancel(ctx))
	groupErr := group.Wait()

	result.Inserted = persister.Persisted()
	h.metrics.Backfilled(result.Inserted)

	switch {
	case persistErr != nil:
		return result, persistErr
	case closeErr != nil:
		return result, closeErr
	case groupErr != nil:
		return result, groupErr
	case ctx.Err() != nil:
		return result, ctx.Err()
	}

	if result.Total, err = h.storage.CountOn(ctx, day); err != nil {
		return result, fmt.Errorf("error while counting exchange rates: %w", err)
	}

	return result, nil
}

func (h *HistoricalLoader) work(ctx context.Context, day time.Time, work <-chan currencyPair, results chan<- currency.ExchangeRate) error {
	acquirer, err := h.newAcquirer(ctx)

	if err != nil {
		return fmt.Errorf("error while building provider chain: %w", err)
	}

	for pair := range work {
		rate, ok := acquirer.Acquire(ctx, pair.from, pair.to, day)

		if !ok {
			continue
		}

		select {
		case results <- rate:
		case <-ctx.Done():
			return nil
		}
	}

	return nil
}

func currencyPairs(currencies []currency.Currency) []currencyPair {
	pairs := make([]currencyPair, 0, len(currencies)*len(currencies))

	for _, one := range currencies {
		for _, other := range currencies {
			if one.Code != other.Code {
				pairs = append(pairs, currencyPair{from: one.Code, to: other.Code})
			}
		}
	}

	return pairs
}
