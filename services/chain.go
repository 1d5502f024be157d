package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	currency "github.com/malusev998/currency-rates"
	"github.com/malusev998/currency-rates/metrics"
)

type (
	// FetcherFactory resolves a registry name to its implementation.
	FetcherFactory func(provider currency.Provider) (currency.Fetcher, error)

	ProviderRegistry interface {
		Providers(ctx context.Context) ([]currency.ProviderDescriptor, error)
	}

	RateSource interface {
		Fetch(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, currency.Provider, bool)
	}

	chainLink struct {
		provider currency.Provider
		fetcher  currency.Fetcher
	}

	// ProviderChain asks its providers in ascending priority and stops at the
	// first one that has a rate. Building it resolves every fetcher, so callers
	// doing many lookups should keep one chain around.
	ProviderChain struct {
		links    []chainLink
		reporter Reporter
		metrics  *metrics.Metrics
	}
)

func NewProviderChain(
	ctx context.Context,
	registry ProviderRegistry,
	factory FetcherFactory,
	reporter Reporter,
	m *metrics.Metrics,
) (*ProviderChain, error) {
	descriptors, err := registry.Providers(ctx)

	if err != nil {
		return nil, fmt.Errorf("error while loading providers: %w", err)
	}

	chain := NewProviderChainFromDescriptors(descriptors, factory, reporter, m)

	if len(chain.links) == 0 {
		return nil, ErrNoProviders
	}

	return chain, nil
}

// NewProviderChainFromDescriptors skips inactive descriptors and the ones the
// factory cannot resolve; the latter are reported.
func NewProviderChainFromDescriptors(
	descriptors []currency.ProviderDescriptor,
	factory FetcherFactory,
	reporter Reporter,
	m *metrics.Metrics,
) *ProviderChain {
	if reporter == nil {
		reporter = NopReporter{}
	}

	active := make([]currency.ProviderDescriptor, 0, len(descriptors))

	for _, descriptor := range descriptors {
		if descriptor.Active {
			active = append(active, descriptor)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority < active[j].Priority
	})

	links := make([]chainLink, 0, len(active))

	for _, descriptor := range active {
		fetcher, err := factory(descriptor.Name)

		if err != nil {
			reporter.ProviderFailed(descriptor.Name, "", "", time.Time{}, err)
			continue
		}

		links = append(links, chainLink{provider: descriptor.Name, fetcher: fetcher})
	}

	return &ProviderChain{links: links, reporter: reporter, metrics: m}
}

func (c *ProviderChain) Providers() []currency.Provider {
	providers := make([]currency.Provider, 0, len(c.links))

	for _, link := range c.links {
		providers = append(providers, link.provider)
	}

	return providers
}

// Fetch never fails: a provider error counts as "no data" from that provider.
func (c *ProviderChain) Fetch(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, currency.Provider, bool) {
	for _, link := range c.links {
		rate, ok, err := link.fetcher.GetRate(ctx, from, to, date)

		if err != nil {
			c.reporter.ProviderFailed(link.provider, from, to, date, err)
			continue
		}

		if !ok {
			c.metrics.ProviderRequest(link.provider.String(), metrics.OutcomeMiss)
			continue
		}

		c.metrics.ProviderRequest(link.provider.String(), metrics.OutcomeHit)

		return rate, link.provider, true
	}

	return decimal.Zero, currency.EmptyProvider, false
}
