package fetchers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	currency "github.com/malusev998/currency-rates"
)

type (
	CurrencyBeaconFetcher struct {
		Client *http.Client
		URL    string
		APIKey string
	}

	currencyBeaconResponse struct {
		Rates json.RawMessage `json:"rates"`
	}
)

func (c CurrencyBeaconFetcher) GetRate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, bool, error) {
	endpoint := c.URL

	if endpoint == "" {
		endpoint = CurrencyBeaconURL
	}

	q := url.Values{}
	q.Add("api_key", c.APIKey)
	q.Add("date", date.Format(currency.DateLayout))
	q.Add("base", from)
	q.Add("symbols", to)

	var data currencyBeaconResponse

	if err := getData(ctx, c.Client, endpoint, q, &data); err != nil {
		return decimal.Zero, false, err
	}

	rates, err := data.rates()

	if err != nil {
		return decimal.Zero, false, err
	}

	rate, ok := rates[to]

	if !ok || rate == nil {
		return decimal.Zero, false, nil
	}

	return *rate, true, nil
}

// CurrencyBeacon sends an empty JSON array instead of an object when it has no
// data for the requested day.
func (r currencyBeaconResponse) rates() (map[string]*decimal.Decimal, error) {
	raw := bytes.TrimSpace(r.Rates)

	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("[]")) {
		return nil, nil
	}

	rates := map[string]*decimal.Decimal{}

	if err := json.Unmarshal(raw, &rates); err != nil {
		return nil, fmt.Errorf("error while decoding CurrencyBeacon rates: %w", err)
	}

	return rates, nil
}
