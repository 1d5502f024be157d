package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	currency "github.com/malusev998/currency-rates"
	"github.com/malusev998/currency-rates/api"
	"github.com/malusev998/currency-rates/storage"
)

type currencyRepositoryMock struct {
	mock.Mock
}

func (r *currencyRepositoryMock) Currencies(ctx context.Context) ([]currency.Currency, error) {
	args := r.Called(ctx)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]currency.Currency), args.Error(1)
}

func (r *currencyRepositoryMock) CurrencyByCode(ctx context.Context, code string) (currency.Currency, error) {
	args := r.Called(ctx, code)
	return args.Get(0).(currency.Currency), args.Error(1)
}

func (r *currencyRepositoryMock) SaveCurrency(ctx context.Context, c currency.Currency) error {
	return r.Called(ctx, c).Error(0)
}

func (r *currencyRepositoryMock) DeleteCurrency(ctx context.Context, code string) error {
	return r.Called(ctx, code).Error(0)
}

func newCurrencyRouter(t *testing.T) (*gin.Engine, currency.Storage) {
	t.Helper()
	ctx := context.Background()

	s, err := storage.NewSQLiteStorage(ctx, storage.SQLiteConfig{
		BaseConfig: storage.BaseConfig{Migrate: true},
		Path:       filepath.Join(t.TempDir(), "currencies.db"),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
	})

	require.NoError(t, storage.Seed(ctx, s, []currency.Currency{
		{Code: "EUR", Name: "Euro"},
		{Code: "USD", Name: "US Dollar"},
		{Code: "CHF", Name: "Swiss Franc"},
	}, nil))

	return api.NewRouter(api.Config{Currencies: s}), s
}

func send(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, req)

	return recorder
}

func TestCurrencies(t *testing.T) {
	t.Parallel()

	t.Run("Create", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)
		router, s := newCurrencyRouter(t)

		response := send(router, http.MethodPost, "/api/v1/currencies", `{"code": "hrk", "name": "Croatian Kuna"}`)

		assert.Equal(http.StatusCreated, response.Code)
		assert.JSONEq(`{"code": "HRK", "name": "Croatian Kuna"}`, response.Body.String())

		stored, err := s.CurrencyByCode(context.Background(), "HRK")
		assert.NoError(err)
		assert.Equal("Croatian Kuna", stored.Name)

		response = send(router, http.MethodPost, "/api/v1/currencies", `{"code": "HRK", "name": "Kuna"}`)

		assert.Equal(http.StatusBadRequest, response.Code)
		assert.JSONEq(`{"code": "Currency with this code already exists."}`, response.Body.String())
	})

	t.Run("CreateValidation", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)
		router, _ := newCurrencyRouter(t)

		var body map[string]string

		response := send(router, http.MethodPost, "/api/v1/currencies", `{"code": "EURO"}`)

		assert.Equal(http.StatusBadRequest, response.Code)
		assert.NoError(json.Unmarshal(response.Body.Bytes(), &body))
		assert.Equal("Ensure this field has exactly 3 characters.", body["code"])
		assert.Equal("This field is required.", body["name"])

		response = send(router, http.MethodPost, "/api/v1/currencies", `{"code": "E1R", "name": "A name longer than twenty"}`)

		body = nil
		assert.Equal(http.StatusBadRequest, response.Code)
		assert.NoError(json.Unmarshal(response.Body.Bytes(), &body))
		assert.Contains(body, "code")
		assert.Equal("Ensure this field has no more than 20 characters.", body["name"])

		response = send(router, http.MethodPost, "/api/v1/currencies", `{"code":`)

		assert.Equal(http.StatusBadRequest, response.Code)
	})

	t.Run("List", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)
		router, _ := newCurrencyRouter(t)

		response := send(router, http.MethodGet, "/api/v1/currencies", "")

		assert.Equal(http.StatusOK, response.Code)
		assert.JSONEq(`[
			{"code": "CHF", "name": "Swiss Franc"},
			{"code": "EUR", "name": "Euro"},
			{"code": "USD", "name": "US Dollar"}
		]`, response.Body.String())
	})

	t.Run("Retrieve", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)
		router, _ := newCurrencyRouter(t)

		response := send(router, http.MethodGet, "/api/v1/currencies/eur", "")

		assert.Equal(http.StatusOK, response.Code)
		assert.JSONEq(`{"code": "EUR", "name": "Euro"}`, response.Body.String())

		response = send(router, http.MethodGet, "/api/v1/currencies/HUF", "")

		assert.Equal(http.StatusNotFound, response.Code)
	})

	t.Run("Update", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)
		router, s := newCurrencyRouter(t)

		response := send(router, http.MethodPut, "/api/v1/currencies/EUR", `{"code": "EUR", "name": "European Euro"}`)

		assert.Equal(http.StatusOK, response.Code)
		assert.JSONEq(`{"code": "EUR", "name": "European Euro"}`, response.Body.String())

		stored, err := s.CurrencyByCode(context.Background(), "EUR")
		assert.NoError(err)
		assert.Equal("European Euro", stored.Name)

		response = send(router, http.MethodPut, "/api/v1/currencies/EUR", `{"code": "HUF", "name": "Hungarian Forint"}`)

		assert.Equal(http.StatusBadRequest, response.Code)
		assert.JSONEq(`{"code": "Currency code cannot be changed."}`, response.Body.String())

		response = send(router, http.MethodPut, "/api/v1/currencies/EUR", `{"code": "EUR"}`)

		assert.Equal(http.StatusBadRequest, response.Code)

		response = send(router, http.MethodPut, "/api/v1/currencies/HUF", `{"name": "Hungarian Forint"}`)

		assert.Equal(http.StatusNotFound, response.Code)
	})

	t.Run("PartialUpdate", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)
		router, s := newCurrencyRouter(t)

		response := send(router, http.MethodPatch, "/api/v1/currencies/EUR", `{"name": "European currency"}`)

		assert.Equal(http.StatusOK, response.Code)

		stored, err := s.CurrencyByCode(context.Background(), "EUR")
		assert.NoError(err)
		assert.Equal("EUR", stored.Code)
		assert.Equal("European currency", stored.Name)

		response = send(router, http.MethodPatch, "/api/v1/currencies/EUR", `{}`)

		assert.Equal(http.StatusBadRequest, response.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)
		router, s := newCurrencyRouter(t)
		ctx := context.Background()

		assert.NoError(s.Store(ctx, []currency.ExchangeRate{rate("USD", 26, "1.05"), rate("CHF", 26, "0.96")}))

		response := send(router, http.MethodDelete, "/api/v1/currencies/USD", "")

		assert.Equal(http.StatusNoContent, response.Code)
		assert.Empty(response.Body.String())

		_, err := s.CurrencyByCode(ctx, "USD")
		assert.ErrorIs(err, currency.ErrCurrencyNotFound)

		rates, err := s.RatesBetween(ctx, "EUR", day(26), day(26))
		assert.NoError(err)
		assert.Len(rates, 1)
		assert.Equal("CHF", rates[0].To)

		response = send(router, http.MethodDelete, "/api/v1/currencies/USD", "")

		assert.Equal(http.StatusNotFound, response.Code)
	})

	t.Run("StorageFailure", func(t *testing.T) {
		t.Parallel()
		assert := require.New(t)

		repository := &currencyRepositoryMock{}
		repository.On("Currencies", mock.Anything).Return(nil, errors.New("connection refused")).Once()
		repository.On("DeleteCurrency", mock.Anything, "EUR").Return(errors.New("connection refused")).Once()

		router := api.NewRouter(api.Config{Currencies: repository})

		assert.Equal(http.StatusInternalServerError, send(router, http.MethodGet, "/api/v1/currencies", "").Code)
		assert.Equal(http.StatusInternalServerError, send(router, http.MethodDelete, "/api/v1/currencies/eur", "").Code)
		repository.AssertExpectations(t)
	})

	t.Run("NotMountedWithoutRepository", func(t *testing.T) {
		t.Parallel()

		router := api.NewRouter(api.Config{})

		require.Equal(t, http.StatusNotFound, send(router, http.MethodGet, "/api/v1/currencies", "").Code)
	})
}
