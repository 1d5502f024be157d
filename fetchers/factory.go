package fetchers

import (
	"fmt"
	"net/http"
	"time"

	currency "github.com/malusev998/currency-rates"
)

const defaultTimeout = 10 * time.Second

type (
	BaseConfig struct {
		URL     string
		APIKey  string
		Timeout time.Duration
		Client  *http.Client
	}
	CurrencyBeaconConfig struct {
		BaseConfig
	}
	FreeConvServiceConfig struct {
		BaseConfig
	}
	ExchangeRatesAPIConfig struct {
		BaseConfig
	}
)

func (b BaseConfig) client() *http.Client {
	if b.Client != nil {
		return b.Client
	}

	timeout := b.Timeout

	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &http.Client{Timeout: timeout}
}

// NewCurrencyFetcher maps a registry name onto its statically known
// implementation.
func NewCurrencyFetcher(provider currency.Provider, config interface{}) (currency.Fetcher, error) {
	switch provider {
	case currency.CurrencyBeaconProvider:
		c, ok := config.(CurrencyBeaconConfig)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFetcherConfig, provider)
		}

		return CurrencyBeaconFetcher{
			Client: c.client(),
			URL:    c.URL,
			APIKey: c.APIKey,
		}, nil
	case currency.FreeConvProvider:
		c, ok := config.(FreeConvServiceConfig)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFetcherConfig, provider)
		}

		return FreeCurrConvFetcher{
			Client: c.client(),
			URL:    c.URL,
			APIKey: c.APIKey,
		}, nil
	case currency.ExchangeRatesAPIProvider:
		c, ok := config.(ExchangeRatesAPIConfig)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFetcherConfig, provider)
		}

		return ExchangeRatesAPIFetcher{
			Client: c.client(),
			URL:    c.URL,
			APIKey: c.APIKey,
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrFetcherNotFound, provider)
}
