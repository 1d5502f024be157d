package fetchers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	CurrencyBeaconURL   = "https://api.currencybeacon.com/v1/historical"
	FreeConvFetchURL    = "https://free.currconv.com/api/v7/convert"
	ExchangeRatesAPIURL = "https://api.exchangeratesapi.io"
)

var (
	ErrUnAuthorized         = errors.New("unauthorized, API key is not provided or invalid")
	ErrClient               = errors.New("client error")
	ErrServer               = errors.New("server error")
	ErrUnknown              = errors.New("unknown error")
	ErrAPILimitReached      = errors.New("API limit reached")
	ErrFetcherNotFound      = errors.New("fetcher is not found")
	ErrInvalidFetcherConfig = errors.New("invalid fetcher config")
)

func handleHTTPStatusCodeError(res *http.Response) error {
	if res.StatusCode == http.StatusOK {
		return nil
	}

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return ErrUnAuthorized
	case res.StatusCode == http.StatusTooManyRequests:
		return ErrAPILimitReached
	case res.StatusCode >= http.StatusBadRequest && res.StatusCode < http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", ErrClient, res.StatusCode)
	case res.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", ErrServer, res.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", ErrUnknown, res.StatusCode)
	}
}

func getData(ctx context.Context, client *http.Client, endpoint string, query url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)

	if err != nil {
		return err
	}

	req.Header.Add("Accept", "application/json")
	req.URL.RawQuery = query.Encode()

	res, err := client.Do(req)

	if err != nil {
		return err
	}

	defer res.Body.Close()

	if err := handleHTTPStatusCodeError(res); err != nil {
		return err
	}

	body, err := io.ReadAll(res.Body)

	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error while decoding response from %s: %w", endpoint, err)
	}

	return nil
}
