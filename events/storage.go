package events

import (
	"context"
	"log/slog"
	"time"

	currency "github.com/malusev998/currency-rates"
)

type (
	// PublishingStorage announces the rates written through it. Rates skipped
	// as duplicates are not announced again. Publishing is best effort: a
	// failure is logged and never fails the write.
	PublishingStorage struct {
		currency.Storage
		publisher Publisher
		logger    *slog.Logger
	}

	// publishingTx holds the events back until the transaction commits.
	publishingTx struct {
		currency.Tx
		storage *PublishingStorage
		pending []currency.ExchangeRate
	}
)

func NewPublishingStorage(storage currency.Storage, publisher Publisher, logger *slog.Logger) *PublishingStorage {
	if logger == nil {
		logger = slog.Default()
	}

	return &PublishingStorage{Storage: storage, publisher: publisher, logger: logger}
}

func (p *PublishingStorage) Store(ctx context.Context, rates []currency.ExchangeRate) error {
	if err := p.Storage.Store(ctx, rates); err != nil {
		return err
	}

	p.publish(ctx, rates)

	return nil
}

func (p *PublishingStorage) StoreIgnoringDuplicates(ctx context.Context, rates []currency.ExchangeRate) (int64, error) {
	candidates := p.unstored(ctx, p.Storage, rates)
	inserted, err := p.Storage.StoreIgnoringDuplicates(ctx, rates)

	if err != nil {
		return inserted, err
	}

	if inserted > 0 && len(candidates) > 0 {
		p.publish(ctx, candidates)
	}

	return inserted, nil
}

func (p *PublishingStorage) Begin(ctx context.Context) (currency.Tx, error) {
	tx, err := p.Storage.Begin(ctx)

	if err != nil {
		return nil, err
	}

	return &publishingTx{Tx: tx, storage: p}, nil
}

// unstored returns the rates of the batch that are not stored yet, keeping
// the first of any repeated pair and date. When the lookup fails the whole
// batch is returned, so a rate may be announced twice but never missed.
func (p *PublishingStorage) unstored(ctx context.Context, reader currency.RateReader, rates []currency.ExchangeRate) []currency.ExchangeRate {
	type window struct {
		start, end time.Time
	}

	windows := make(map[string]window)

	for _, rate := range rates {
		w, ok := windows[rate.From]

		if !ok || rate.Date.Before(w.start) {
			w.start = rate.Date
		}

		if !ok || rate.Date.After(w.end) {
			w.end = rate.Date
		}

		windows[rate.From] = w
	}

	seen := make(map[string]struct{}, len(rates))

	for base, w := range windows {
		stored, err := reader.RatesBetween(ctx, base, w.start, w.end)

		if err != nil {
			p.logger.Warn("error while reading stored exchange rates",
				slog.String("base", base),
				slog.String("error", err.Error()),
			)

			return rates
		}

		for _, rate := range stored {
			seen[rateKey(rate)] = struct{}{}
		}
	}

	candidates := make([]currency.ExchangeRate, 0, len(rates))

	for _, rate := range rates {
		key := rateKey(rate)

		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		candidates = append(candidates, rate)
	}

	return candidates
}

func rateKey(rate currency.ExchangeRate) string {
	return rate.Pair() + "@" + rate.Date.Format(currency.DateLayout)
}

func (p *PublishingStorage) publish(ctx context.Context, rates []currency.ExchangeRate) {
	if err := p.publisher.PublishRates(ctx, rates); err != nil {
		p.logger.Warn("error while publishing exchange rates",
			slog.Int("count", len(rates)),
			slog.String("error", err.Error()),
		)
	}
}

func (t *publishingTx) Store(ctx context.Context, rates []currency.ExchangeRate) error {
	if err := t.Tx.Store(ctx, rates); err != nil {
		return err
	}

	t.pending = append(t.pending, rates...)

	return nil
}

func (t *publishingTx) StoreIgnoringDuplicates(ctx context.Context, rates []currency.ExchangeRate) (int64, error) {
	candidates := t.storage.unstored(ctx, t.Tx, rates)
	inserted, err := t.Tx.StoreIgnoringDuplicates(ctx, rates)

	if err != nil {
		return inserted, err
	}

	if inserted > 0 {
		t.pending = append(t.pending, candidates...)
	}

	return inserted, nil
}

func (t *publishingTx) Commit(ctx context.Context) error {
	if err := t.Tx.Commit(ctx); err != nil {
		return err
	}

	if len(t.pending) > 0 {
		t.storage.publish(ctx, t.pending)
	}

	t.pending = nil

	return nil
}

func (t *publishingTx) Rollback(ctx context.Context) error {
	t.pending = nil
	return t.Tx.Rollback(ctx)
}
