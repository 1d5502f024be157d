package fetchers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	currency "github.com/malusev998/currency-rates"
)

type FreeCurrConvFetcher struct {
	Client *http.Client
	URL    string
	APIKey string
}

func (f FreeCurrConvFetcher) GetRate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, bool, error) {
	if f.APIKey == "" {
		return decimal.Zero, false, ErrUnAuthorized
	}

	endpoint := f.URL

	if endpoint == "" {
		endpoint = FreeConvFetchURL
	}

	pair := from + "_" + to
	day := date.Format(currency.DateLayout)

	q := url.Values{}
	q.Add("q", pair)
	q.Add("compact", "ultra")
	q.Add("date", day)
	q.Add("apiKey", f.APIKey)

	data := map[string]map[string]*decimal.Decimal{}

	if err := getData(ctx, f.Client, endpoint, q, &data); err != nil {
		return decimal.Zero, false, err
	}

	rate, ok := data[pair][day]

	if !ok || rate == nil {
		return decimal.Zero, false, nil
	}

	return *rate, true, nil
}
