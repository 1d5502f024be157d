package services

import (
	"context"
	"fmt"
	"time"

	currency "github.com/malusev998/currency-rates"
	"github.com/malusev998/currency-rates/metrics"
)

const DefaultBatchSize = 1000

type InsertPolicy int

const (
	// Append fails the flush on a duplicate (from, to, date) row.
	Append InsertPolicy = iota
	// IgnoreDuplicates silently skips rows that already exist.
	IgnoreDuplicates
)

func (p InsertPolicy) String() string {
	if p == IgnoreDuplicates {
		return "ignore_duplicates"
	}

	return "append"
}

// BatchPersister buffers rates and writes them in bulk every size records.
// Close performs the final flush and must be called exactly once the owner is
// done with it, whatever the outcome; later calls are no-ops.
type BatchPersister struct {
	writer    currency.RateWriter
	policy    InsertPolicy
	size      int
	buffer    []currency.ExchangeRate
	persisted int64
	flushes   int
	closed    bool
	metrics   *metrics.Metrics
}

func NewBatchPersister(writer currency.RateWriter, size int, policy InsertPolicy, m *metrics.Metrics) *BatchPersister {
	if size <= 0 {
		size = DefaultBatchSize
	}

	return &BatchPersister{
		writer:  writer,
		policy:  policy,
		size:    size,
		buffer:  make([]currency.ExchangeRate, 0, size),
		metrics: m,
	}
}

func (p *BatchPersister) Add(ctx context.Context, rate currency.ExchangeRate) error {
	if p.closed {
		return ErrPersisterClosed
	}

	p.buffer = append(p.buffer, rate)

	if len(p.buffer) >= p.size {
		return p.flush(ctx)
	}

	return nil
}

func (p *BatchPersister) Close(ctx context.Context) error {
	if p.closed {
		return nil
	}

	p.closed = true

	return p.flush(ctx)
}

// Persisted is the number of rows the storage reported as written.
func (p *BatchPersister) Persisted() int64 {
	return p.persisted
}

func (p *BatchPersister) Flushes() int {
	return p.flushes
}

func (p *BatchPersister) Buffered() int {
	return len(p.buffer)
}

func (p *BatchPersister) flush(ctx context.Context) error {
	if len(p.buffer) == 0 {
		return nil
	}

	start := time.Now()
	count := len(p.buffer)

	switch p.policy {
	case IgnoreDuplicates:
		inserted, err := p.writer.StoreIgnoringDuplicates(ctx, p.buffer)
		if err != nil {
			return fmt.Errorf("error while flushing %d exchange rates: %w", count, err)
		}

		p.persisted += inserted
	default:
		if err := p.writer.Store(ctx, p.buffer); err != nil {
			return fmt.Errorf("error while flushing %d exchange rates: %w", count, err)
		}

		p.persisted += int64(count)
	}

	p.flushes++
	p.metrics.Flushed(p.policy.String(), count, time.Since(start).Seconds())
	p.buffer = make([]currency.ExchangeRate, 0, p.size)

	return nil
}
