package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	currency "github.com/malusev998/currency-rates"
)

type (
	rateKey struct {
		from string
		to   string
		date time.Time
	}

	memoryStorage struct {
		mu         sync.Mutex
		currencies []currency.Currency
		providers  []currency.ProviderDescriptor
		rates      map[rateKey]currency.ExchangeRate
		batches    []int
		storeErr   error
		commits    int
		rollbacks  int
	}

	memoryTx struct {
		storage  *memoryStorage
		inserted []rateKey
	}
)

func newMemoryStorage(codes ...string) *memoryStorage {
	s := &memoryStorage{rates: map[rateKey]currency.ExchangeRate{}}

	for _, code := range codes {
		s.currencies = append(s.currencies, currency.Currency{Code: code, Name: code})
	}

	return s
}

func keyOf(rate currency.ExchangeRate) rateKey {
	return rateKey{from: rate.From, to: rate.To, date: currency.Day(rate.Date)}
}

func (m *memoryStorage) seed(base string, date time.Time, rate string, targets ...string) []currency.ExchangeRate {
	seeded := make([]currency.ExchangeRate, 0, len(targets))

	for _, to := range targets {
		r := currency.ExchangeRate{From: base, To: to, Date: date, Rate: decimal.RequireFromString(rate)}
		m.rates[keyOf(r)] = r
		seeded = append(seeded, r)
	}

	return seeded
}

func (m *memoryStorage) insert(rates []currency.ExchangeRate, ignore bool) ([]rateKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.storeErr != nil {
		return nil, m.storeErr
	}

	keys := make([]rateKey, 0, len(rates))

	for _, rate := range rates {
		key := keyOf(rate)

		if _, exists := m.rates[key]; exists {
			if ignore {
				continue
			}

			return keys, fmt.Errorf("duplicate rate %s on %s", rate.Pair(), key.date.Format(currency.DateLayout))
		}

		m.rates[key] = rate
		keys = append(keys, key)
	}

	m.batches = append(m.batches, len(rates))

	return keys, nil
}

func (m *memoryStorage) Store(_ context.Context, rates []currency.ExchangeRate) error {
	_, err := m.insert(rates, false)
	return err
}

func (m *memoryStorage) StoreIgnoringDuplicates(_ context.Context, rates []currency.ExchangeRate) (int64, error) {
	keys, err := m.insert(rates, true)
	return int64(len(keys)), err
}

func (m *memoryStorage) RatesBetween(_ context.Context, base string, start, end time.Time) ([]currency.ExchangeRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rates := make([]currency.ExchangeRate, 0)

	for key, rate := range m.rates {
		if key.from == base && !key.date.Before(start) && !key.date.After(end) {
			rates = append(rates, rate)
		}
	}

	sort.Slice(rates, func(i, j int) bool {
		if !rates[i].Date.Equal(rates[j].Date) {
			return rates[i].Date.Before(rates[j].Date)
		}

		return rates[i].To < rates[j].To
	})

	return rates, nil
}

func (m *memoryStorage) Latest(_ context.Context, from, to string) (currency.ExchangeRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *currency.ExchangeRate

	for key, rate := range m.rates {
		if key.from == from && key.to == to && (latest == nil || rate.Date.After(latest.Date)) {
			r := rate
			latest = &r
		}
	}

	if latest == nil {
		return currency.ExchangeRate{}, currency.ErrRateNotFound
	}

	return *latest, nil
}

func (m *memoryStorage) Currencies(context.Context) ([]currency.Currency, error) {
	return m.currencies, nil
}

func (m *memoryStorage) CurrencyByCode(_ context.Context, code string) (currency.Currency, error) {
	for _, c := range m.currencies {
		if c.Code == code {
			return c, nil
		}
	}

	return currency.Currency{}, fmt.Errorf("%w: %s", currency.ErrCurrencyNotFound, code)
}

func (m *memoryStorage) SaveCurrency(_ context.Context, c currency.Currency) error {
	m.currencies = append(m.currencies, c)
	return nil
}

func (m *memoryStorage) DeleteCurrency(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, c := range m.currencies {
		if c.Code != code {
			continue
		}

		m.currencies = append(m.currencies[:i], m.currencies[i+1:]...)

		for key := range m.rates {
			if key.from == code || key.to == code {
				delete(m.rates, key)
			}
		}

		return nil
	}

	return fmt.Errorf("%w: %s", currency.ErrCurrencyNotFound, code)
}

func (m *memoryStorage) Providers(context.Context) ([]currency.ProviderDescriptor, error) {
	return m.providers, nil
}

func (m *memoryStorage) SaveProvider(_ context.Context, provider currency.ProviderDescriptor) error {
	m.providers = append(m.providers, provider)
	return nil
}

func (m *memoryStorage) CountOn(_ context.Context, date time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64

	for key := range m.rates {
		if key.date.Equal(currency.Day(date)) {
			count++
		}
	}

	return count, nil
}

func (m *memoryStorage) Begin(context.Context) (currency.Tx, error) {
	return &memoryTx{storage: m}, nil
}

func (m *memoryStorage) Migrate(context.Context) error { return nil }

func (m *memoryStorage) Drop(context.Context) error { return nil }

func (m *memoryStorage) Close() error { return nil }

func (m *memoryStorage) GetStorageProviderName() string { return "memory" }

func (m *memoryStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.rates)
}

func (t *memoryTx) RatesBetween(ctx context.Context, base string, start, end time.Time) ([]currency.ExchangeRate, error) {
	return t.storage.RatesBetween(ctx, base, start, end)
}

func (t *memoryTx) Latest(ctx context.Context, from, to string) (currency.ExchangeRate, error) {
	return t.storage.Latest(ctx, from, to)
}

func (t *memoryTx) Store(_ context.Context, rates []currency.ExchangeRate) error {
	keys, err := t.storage.insert(rates, false)
	t.inserted = append(t.inserted, keys...)

	return err
}

func (t *memoryTx) StoreIgnoringDuplicates(_ context.Context, rates []currency.ExchangeRate) (int64, error) {
	keys, err := t.storage.insert(rates, true)
	t.inserted = append(t.inserted, keys...)

	return int64(len(keys)), err
}

func (t *memoryTx) Commit(context.Context) error {
	t.storage.mu.Lock()
	defer t.storage.mu.Unlock()

	t.storage.commits++

	return nil
}

func (t *memoryTx) Rollback(context.Context) error {
	t.storage.mu.Lock()
	defer t.storage.mu.Unlock()

	for _, key := range t.inserted {
		delete(t.storage.rates, key)
	}

	t.storage.rollbacks++

	return nil
}

var errStorage = errors.New("storage is down")

type (
	acquireCall struct {
		from string
		to   string
		date time.Time
	}

	fakeAcquirer struct {
		mu    sync.Mutex
		calls []acquireCall
		rate  func(from, to string, date time.Time) (string, bool)
	}
)

func (f *fakeAcquirer) Acquire(_ context.Context, from, to string, date time.Time) (currency.ExchangeRate, bool) {
	f.mu.Lock()
	f.calls = append(f.calls, acquireCall{from: from, to: to, date: date})
	f.mu.Unlock()

	value, ok := "1.5", true

	if f.rate != nil {
		value, ok = f.rate(from, to, date)
	}

	if !ok {
		return currency.ExchangeRate{}, false
	}

	return currency.ExchangeRate{
		From:     from,
		To:       to,
		Date:     currency.Day(date),
		Rate:     decimal.RequireFromString(value),
		Provider: "mock",
	}, true
}

func (f *fakeAcquirer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

func day(d int) time.Time {
	return time.Date(2023, 10, d, 0, 0, 0, 0, time.UTC)
}
