package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	currency "github.com/malusev998/currency-rates"
	"github.com/malusev998/currency-rates/services"
)

const (
	errInvalidCurrency   = "Invalid currency."
	errRateNotAvailable  = "Exchange rate is not available."
	errInvalidDate       = "Date has wrong format. Use YYYY-MM-DD."
	errInvalidAmount     = "A valid number is required."
	errNegativeAmount    = "Ensure this value is greater than or equal to 0."
	errRequired          = "This field is required."
	errInternal          = "Internal server error."
	errInvalidDateRange  = "from_date must not be after to_date."
	errRatesNotAvailable = "Exchange rates could not be loaded."
)

type (
	handler struct {
		reconciler      currency.Reconciler
		converter       currency.Converter
		currencies      currency.CurrencyRepository
		ratePrecision   int32
		amountPrecision int32
	}

	ratesRequest struct {
		FromCurrency string `form:"from_currency" binding:"required"`
		FromDate     string `form:"from_date" binding:"required"`
		ToDate       string `form:"to_date" binding:"required"`
	}

	convertRequest struct {
		FromCurrency string `form:"from_currency" binding:"required"`
		ToCurrency   string `form:"to_currency" binding:"required"`
		Amount       string `form:"amount" binding:"required"`
	}

	rateResponse struct {
		ToCurrency string `json:"to_currency"`
		Rate       string `json:"rate"`
	}

	ratesResponse struct {
		Date         string         `json:"date"`
		FromCurrency string         `json:"from_currency"`
		Rates        []rateResponse `json:"rates"`
	}

	convertResponse struct {
		FromCurrency string `json:"from_currency"`
		ToCurrency   string `json:"to_currency"`
		Amount       string `json:"amount"`
		Rate         string `json:"rate"`
	}
)

// fieldErrors maps binding failures to one message per parameter.
func fieldErrors(err error) gin.H {
	var validationErrors validator.ValidationErrors

	if !errors.As(err, &validationErrors) {
		return gin.H{"error": err.Error()}
	}

	fields := gin.H{}

	for _, fieldErr := range validationErrors {
		fields[fieldErr.Field()] = fieldMessage(fieldErr)
	}

	return fields
}

func fieldMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return errRequired
	case "len":
		return "Ensure this field has exactly " + fieldErr.Param() + " characters."
	case "max":
		return "Ensure this field has no more than " + fieldErr.Param() + " characters."
	case "alpha":
		return "Only letters are allowed."
	default:
		return "Invalid value."
	}
}

func (h *handler) getExchangeRates(c *gin.Context) {
	logger := loggerFrom(c)

	var req ratesRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, fieldErrors(err))
		return
	}

	invalid := gin.H{}
	fromDate, err := currency.ParseDate(req.FromDate)

	if err != nil {
		invalid["from_date"] = errInvalidDate
	}

	toDate, err := currency.ParseDate(req.ToDate)

	if err != nil {
		invalid["to_date"] = errInvalidDate
	}

	if len(invalid) > 0 {
		c.JSON(http.StatusBadRequest, invalid)
		return
	}

	stream, err := h.reconciler.Reconcile(c.Request.Context(), req.FromCurrency, fromDate, toDate)

	switch {
	case errors.Is(err, currency.ErrCurrencyNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCurrency})
		return
	case errors.Is(err, services.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidDateRange})
		return
	case err != nil:
		logger.Error("error while reconciling exchange rates", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternal})
		return
	}

	rates, err := currency.Collect(stream)

	if err != nil {
		logger.Error("error while streaming exchange rates",
			slog.String("base", req.FromCurrency),
			slog.Int("received", len(rates)),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errRatesNotAvailable})

		return
	}

	groups := GroupByDate(rates)
	response := make([]ratesResponse, 0, len(groups))

	for _, group := range groups {
		item := ratesResponse{
			Date:         group.Date.Format(currency.DateLayout),
			FromCurrency: group.From,
			Rates:        make([]rateResponse, 0, len(group.Rates)),
		}

		for _, rate := range group.Rates {
			item.Rates = append(item.Rates, rateResponse{
				ToCurrency: rate.To,
				Rate:       rate.Rate.StringFixedBank(h.ratePrecision),
			})
		}

		response = append(response, item)
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) convertAmount(c *gin.Context) {
	logger := loggerFrom(c)

	var req convertRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, fieldErrors(err))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"amount": errInvalidAmount})
		return
	}

	conversion, err := h.converter.Convert(c.Request.Context(), amount, req.FromCurrency, req.ToCurrency)

	switch {
	case errors.Is(err, services.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"amount": errNegativeAmount})
		return
	case errors.Is(err, currency.ErrCurrencyNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCurrency})
		return
	case errors.Is(err, services.ErrRateNotAvailable):
		c.JSON(http.StatusNotFound, gin.H{"error": errRateNotAvailable})
		return
	case err != nil:
		logger.Error("error while converting amount", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternal})
		return
	}

	c.JSON(http.StatusOK, convertResponse{
		FromCurrency: conversion.From,
		ToCurrency:   conversion.To,
		Amount:       conversion.Amount.StringFixedBank(h.amountPrecision),
		Rate:         conversion.Rate.StringFixedBank(h.ratePrecision),
	})
}
