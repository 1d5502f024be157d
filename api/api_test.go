package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	currency "github.com/malusev998/currency-rates"
	"github.com/malusev998/currency-rates/api"
	"github.com/malusev998/currency-rates/metrics"
	"github.com/malusev998/currency-rates/services"
)

type (
	reconcilerMock struct {
		mock.Mock
	}

	converterMock struct {
		mock.Mock
	}

	sliceStream struct {
		rates  []currency.ExchangeRate
		index  int
		err    error
		closed bool
	}
)

func (r *reconcilerMock) Reconcile(ctx context.Context, base string, from, to time.Time) (currency.RateStream, error) {
	args := r.Called(ctx, base, from, to)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(currency.RateStream), args.Error(1)
}

func (c *converterMock) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (currency.Conversion, error) {
	args := c.Called(ctx, amount, from, to)
	return args.Get(0).(currency.Conversion), args.Error(1)
}

func (s *sliceStream) Next() bool {
	if s.index >= len(s.rates) {
		return false
	}

	s.index++

	return true
}

func (s *sliceStream) Rate() currency.ExchangeRate {
	return s.rates[s.index-1]
}

func (s *sliceStream) Err() error {
	return s.err
}

func (s *sliceStream) Close() error {
	s.closed = true
	return s.err
}

func init() {
	gin.SetMode(gin.TestMode)
}

func day(d int) time.Time {
	return time.Date(2023, 10, d, 0, 0, 0, 0, time.UTC)
}

func rate(to string, d int, value string) currency.ExchangeRate {
	return currency.ExchangeRate{From: "EUR", To: to, Date: day(d), Rate: decimal.RequireFromString(value)}
}

func newRouter(reconciler currency.Reconciler, converter currency.Converter) *gin.Engine {
	return api.NewRouter(api.Config{
		Reconciler:      reconciler,
		Converter:       converter,
		RatePrecision:   6,
		AmountPrecision: 2,
	})
}

func get(router http.Handler, path string, query url.Values) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path+"?"+query.Encode(), nil)
	router.ServeHTTP(recorder, req)

	return recorder
}

func TestGetExchangeRates(t *testing.T) {
	t.Parallel()

	query := url.Values{"from_currency": {"EUR"}, "from_date": {"2023-10-26"}, "to_date": {"2023-10-27"}}

	t.Run("Success", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)

		stream := &sliceStream{rates: []currency.ExchangeRate{
			rate("USD", 26, "0.95"),
			rate("GBP", 26, "0.87"),
			rate("GBP", 27, "0.88"),
			rate("USD", 27, "0.96"),
		}}
		reconciler := &reconcilerMock{}
		reconciler.On("Reconcile", mock.Anything, "EUR", day(26), day(27)).Return(stream, nil).Once()

		response := get(newRouter(reconciler, nil), "/api/v1/rates", query)

		assert.Equal(http.StatusOK, response.Code)
		assert.NotEmpty(response.Header().Get("X-Request-ID"))
		assert.JSONEq(`[
			{"date": "2023-10-26", "from_currency": "EUR", "rates": [{"to_currency": "GBP", "rate": "0.870000"}, {"to_currency": "USD", "rate": "0.950000"}]},
			{"date": "2023-10-27", "from_currency": "EUR", "rates": [{"to_currency": "GBP", "rate": "0.880000"}, {"to_currency": "USD", "rate": "0.960000"}]}
		]`, response.Body.String())
		assert.True(stream.closed)
		reconciler.AssertExpectations(t)
	})

	t.Run("NoData", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)

		reconciler := &reconcilerMock{}
		reconciler.On("Reconcile", mock.Anything, "EUR", day(26), day(27)).Return(&sliceStream{}, nil).Once()

		response := get(newRouter(reconciler, nil), "/api/v1/rates", query)

		assert.Equal(http.StatusOK, response.Code)
		assert.JSONEq(`[]`, response.Body.String())
	})

	t.Run("InvalidCurrency", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)

		reconciler := &reconcilerMock{}
		reconciler.On("Reconcile", mock.Anything, "HUF", day(26), day(27)).
			Return(nil, currency.ErrCurrencyNotFound).Once()

		response := get(newRouter(reconciler, nil), "/api/v1/rates", url.Values{
			"from_currency": {"HUF"}, "from_date": {"2023-10-26"}, "to_date": {"2023-10-27"},
		})

		assert.Equal(http.StatusBadRequest, response.Code)
		assert.JSONEq(`{"error": "Invalid currency."}`, response.Body.String())
	})

	t.Run("InvalidDateFormat", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)

		response := get(newRouter(&reconcilerMock{}, nil), "/api/v1/rates", url.Values{
			"from_currency": {"EUR"}, "from_date": {"26-10-2023"}, "to_date": {"2023/10/27"},
		})

		var body map[string]string

		assert.Equal(http.StatusBadRequest, response.Code)
		assert.NoError(json.Unmarshal(response.Body.Bytes(), &body))
		assert.Contains(body, "from_date")
		assert.Contains(body, "to_date")
	})

	t.Run("MissingParameters", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)

		response := get(newRouter(&reconcilerMock{}, nil), "/api/v1/rates", url.Values{"from_date": {"2023-10-26"}})

		var body map[string]string

		assert.Equal(http.StatusBadRequest, response.Code)
		assert.NoError(json.Unmarshal(response.Body.Bytes(), &body))
		assert.Contains(body, "from_currency")
		assert.Contains(body, "to_date")
	})

	t.Run("InvertedRange", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)

		reconciler := &reconcilerMock{}
		reconciler.On("Reconcile", mock.Anything, "EUR", day(27), day(26)).Return(nil, services.ErrInvalidRange).Once()

		response := get(newRouter(reconciler, nil), "/api/v1/rates", url.Values{
			"from_currency": {"EUR"}, "from_date": {"2023-10-27"}, "to_date": {"2023-10-26"},
		})

		assert.Equal(http.StatusBadRequest, response.Code)
	})

	t.Run("StreamFailure", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)

		reconciler := &reconcilerMock{}
		reconciler.On("Reconcile", mock.Anything, "EUR", day(26), day(27)).
			Return(&sliceStream{rates: []currency.ExchangeRate{rate("USD", 26, "1")}, err: errors.New("flush failed")}, nil).Once()

		response := get(newRouter(reconciler, nil), "/api/v1/rates", query)

		assert.Equal(http.StatusInternalServerError, response.Code)
	})
}

func TestConvertAmount(t *testing.T) {
	t.Parallel()

	query := url.Values{"from_currency": {"EUR"}, "to_currency": {"USD"}, "amount": {"1000.00"}}

	t.Run("Success", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)

		converter := &converterMock{}
		converter.On("Convert", mock.Anything, mock.MatchedBy(func(amount decimal.Decimal) bool {
			return amount.Equal(decimal.NewFromInt(1000))
		}), "EUR", "USD").Return(currency.Conversion{
			From:   "EUR",
			To:     "USD",
			Amount: decimal.RequireFromString("909.09"),
			Rate:   decimal.RequireFromString("0.909091"),
			Date:   day(30),
		}, nil).Once()

		response := get(newRouter(nil, converter), "/api/v1/convert", query)

		assert.Equal(http.StatusOK, response.Code)
		assert.JSONEq(`{"from_currency": "EUR", "to_currency": "USD", "amount": "909.09", "rate": "0.909091"}`, response.Body.String())
		converter.AssertExpectations(t)
	})

	t.Run("MissingParameters", func(t *testing.T) {
		t.Parallel()

		for _, missing := range []string{"from_currency", "to_currency", "amount"} {
			params := url.Values{"from_currency": {"USD"}, "to_currency": {"EUR"}, "amount": {"100"}}
			params.Del(missing)

			response := get(newRouter(nil, &converterMock{}), "/api/v1/convert", params)

			var body map[string]string

			require.Equal(t, http.StatusBadRequest, response.Code)
			require.NoError(t, json.Unmarshal(response.Body.Bytes(), &body))
			require.Contains(t, body, missing)
		}
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)

		converter := &converterMock{}
		converter.On("Convert", mock.Anything, mock.Anything, "USD", "EUR").
			Return(currency.Conversion{}, services.ErrInvalidAmount).Once()

		for _, amount := range []string{"abc", "-50"} {
			response := get(newRouter(nil, converter), "/api/v1/convert", url.Values{
				"from_currency": {"USD"}, "to_currency": {"EUR"}, "amount": {amount},
			})

			var body map[string]string

			assert.Equal(http.StatusBadRequest, response.Code)
			assert.NoError(json.Unmarshal(response.Body.Bytes(), &body))
			assert.Contains(body, "amount")
		}

		converter.AssertExpectations(t)
	})

	t.Run("UnsupportedCurrency", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)

		converter := &converterMock{}
		converter.On("Convert", mock.Anything, mock.Anything, "EUR", "HUF").
			Return(currency.Conversion{}, currency.ErrCurrencyNotFound).Once()

		response := get(newRouter(nil, converter), "/api/v1/convert", url.Values{
			"from_currency": {"EUR"}, "to_currency": {"HUF"}, "amount": {"100"},
		})

		assert.Equal(http.StatusBadRequest, response.Code)
		assert.JSONEq(`{"error": "Invalid currency."}`, response.Body.String())
	})

	t.Run("RateNotAvailable", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)

		converter := &converterMock{}
		converter.On("Convert", mock.Anything, mock.Anything, "EUR", "GBP").
			Return(currency.Conversion{}, services.ErrRateNotAvailable).Once()

		response := get(newRouter(nil, converter), "/api/v1/convert", url.Values{
			"from_currency": {"EUR"}, "to_currency": {"GBP"}, "amount": {"100"},
		})

		assert.Equal(http.StatusNotFound, response.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	m.Backfilled(3)

	router := api.NewRouter(api.Config{Gatherer: registry})
	response := get(router, "/metrics", nil)

	assert.Equal(http.StatusOK, response.Code)
	assert.Contains(response.Body.String(), "currency_rates_backfill_inserted_total 3")
}

func TestGroupByDate(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	groups := api.GroupByDate([]currency.ExchangeRate{
		rate("USD", 1, "1"),
		rate("CHF", 1, "2"),
		rate("GBP", 2, "3"),
		rate("USD", 4, "4"),
		rate("CHF", 4, "5"),
	})

	assert.Len(groups, 3)
	assert.Equal(day(1), groups[0].Date)
	assert.Equal("EUR", groups[0].From)
	assert.Equal([]string{"CHF", "USD"}, []string{groups[0].Rates[0].To, groups[0].Rates[1].To})
	assert.Len(groups[1].Rates, 1)
	assert.Equal("CHF", groups[2].Rates[0].To)
	assert.Empty(api.GroupByDate(nil))
}
