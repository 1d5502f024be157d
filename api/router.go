package api

import (
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	currency "github.com/malusev998/currency-rates"
)

type Config struct {
	Reconciler      currency.Reconciler
	Converter       currency.Converter
	Currencies      currency.CurrencyRepository
	RatePrecision   int32
	AmountPrecision int32
	Gatherer        prometheus.Gatherer
	Logger          *slog.Logger
}

var registerTagNames sync.Once

// NewRouter mounts the rate series, conversion and currency endpoints under /api/v1
// and the prometheus scrape endpoint at /metrics.
func NewRouter(c Config) *gin.Engine {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	registerTagNames.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(tagName)
		}
	})

	router := gin.New()
	router.Use(gin.Recovery(), StructuredLoggingMiddleware(c.Logger))

	h := &handler{
		reconciler:      c.Reconciler,
		converter:       c.Converter,
		currencies:      c.Currencies,
		ratePrecision:   c.RatePrecision,
		amountPrecision: c.AmountPrecision,
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/rates", h.getExchangeRates)
		v1.GET("/convert", h.convertAmount)
	}

	if c.Currencies != nil {
		currencies := v1.Group("/currencies")
		{
			currencies.GET("", h.listCurrencies)
			currencies.POST("", h.createCurrency)
			currencies.GET("/:code", h.getCurrency)
			currencies.PUT("/:code", h.updateCurrency)
			currencies.PATCH("/:code", h.patchCurrency)
			currencies.DELETE("/:code", h.deleteCurrency)
		}
	}

	if c.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(c.Gatherer, promhttp.HandlerOpts{})))
	}

	return router
}

// tagName reports a field by its query or JSON name.
func tagName(field reflect.StructField) string {
	for _, tag := range []string{"form", "json"} {
		name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]

		if name != "" && name != "-" {
			return name
		}
	}

	return field.Name
}
