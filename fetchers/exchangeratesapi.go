package fetchers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	currency "github.com/malusev998/currency-rates"
)

type (
	ExchangeRatesAPIFetcher struct {
		Client *http.Client
		URL    string
		APIKey string
	}

	exchangeRateAPIResponse struct {
		Base  string                      `json:"base,omitempty"`
		Rates map[string]*decimal.Decimal `json:"rates,omitempty"`
		Date  string                      `json:"date,omitempty"`
	}
)

func (e ExchangeRatesAPIFetcher) GetRate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, bool, error) {
	base := e.URL

	if base == "" {
		base = ExchangeRatesAPIURL
	}

	endpoint := strings.TrimRight(base, "/") + "/" + date.Format(currency.DateLayout)

	q := url.Values{}
	q.Add("symbols", to)
	q.Add("base", from)

	if e.APIKey != "" {
		q.Add("access_key", e.APIKey)
	}

	var data exchangeRateAPIResponse

	if err := getData(ctx, e.Client, endpoint, q, &data); err != nil {
		return decimal.Zero, false, err
	}

	// The API answers with the closest earlier banking day for weekends and
	// holidays; that rate is still a valid quote for the requested day.
	rate, ok := data.Rates[to]

	if !ok || rate == nil {
		return decimal.Zero, false, nil
	}

	return *rate, true, nil
}
