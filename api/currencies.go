package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	currency "github.com/malusev998/currency-rates"
)

const (
	errCurrencyExists    = "Currency with this code already exists."
	errCodeImmutable     = "Currency code cannot be changed."
	errCurrencyNotFound  = "Not found."
	errCurrencyUnchanged = "No field to update."
)

type (
	currencyRequest struct {
		Code string `json:"code" binding:"required,len=3,alpha"`
		Name string `json:"name" binding:"required,max=20"`
	}

	currencyUpdateRequest struct {
		Code string `json:"code" binding:"omitempty,len=3,alpha"`
		Name string `json:"name" binding:"required,max=20"`
	}

	currencyPatchRequest struct {
		Code string `json:"code" binding:"omitempty,len=3,alpha"`
		Name string `json:"name" binding:"omitempty,max=20"`
	}
)

func (h *handler) listCurrencies(c *gin.Context) {
	currencies, err := h.currencies.Currencies(c.Request.Context())

	if err != nil {
		loggerFrom(c).Error("error while listing currencies", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternal})

		return
	}

	c.JSON(http.StatusOK, currencies)
}

func (h *handler) createCurrency(c *gin.Context) {
	var req currencyRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, fieldErrors(err))
		return
	}

	created := currency.Currency{Code: strings.ToUpper(req.Code), Name: req.Name}
	_, err := h.currencies.CurrencyByCode(c.Request.Context(), created.Code)

	switch {
	case err == nil:
		c.JSON(http.StatusBadRequest, gin.H{"code": errCurrencyExists})
		return
	case !errors.Is(err, currency.ErrCurrencyNotFound):
		h.currencyFailure(c, "error while loading currency", err)
		return
	}

	if err := h.currencies.SaveCurrency(c.Request.Context(), created); err != nil {
		h.currencyFailure(c, "error while saving currency", err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *handler) getCurrency(c *gin.Context) {
	found, ok := h.findCurrency(c)

	if !ok {
		return
	}

	c.JSON(http.StatusOK, found)
}

func (h *handler) updateCurrency(c *gin.Context) {
	var req currencyUpdateRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, fieldErrors(err))
		return
	}

	h.applyCurrencyUpdate(c, req.Code, req.Name)
}

func (h *handler) patchCurrency(c *gin.Context) {
	var req currencyPatchRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, fieldErrors(err))
		return
	}

	if req.Code == "" && req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errCurrencyUnchanged})
		return
	}

	h.applyCurrencyUpdate(c, req.Code, req.Name)
}

// applyCurrencyUpdate renames the currency. Rates reference currencies by
// code, so the code itself stays fixed.
func (h *handler) applyCurrencyUpdate(c *gin.Context, code, name string) {
	found, ok := h.findCurrency(c)

	if !ok {
		return
	}

	if code != "" && strings.ToUpper(code) != found.Code {
		c.JSON(http.StatusBadRequest, gin.H{"code": errCodeImmutable})
		return
	}

	if name != "" {
		found.Name = name
	}

	if err := h.currencies.SaveCurrency(c.Request.Context(), found); err != nil {
		h.currencyFailure(c, "error while saving currency", err)
		return
	}

	c.JSON(http.StatusOK, found)
}

func (h *handler) deleteCurrency(c *gin.Context) {
	err := h.currencies.DeleteCurrency(c.Request.Context(), strings.ToUpper(c.Param("code")))

	switch {
	case errors.Is(err, currency.ErrCurrencyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errCurrencyNotFound})
	case err != nil:
		h.currencyFailure(c, "error while deleting currency", err)
	default:
		c.Status(http.StatusNoContent)
	}
}

func (h *handler) findCurrency(c *gin.Context) (currency.Currency, bool) {
	found, err := h.currencies.CurrencyByCode(c.Request.Context(), strings.ToUpper(c.Param("code")))

	switch {
	case errors.Is(err, currency.ErrCurrencyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errCurrencyNotFound})
		return currency.Currency{}, false
	case err != nil:
		h.currencyFailure(c, "error while loading currency", err)
		return currency.Currency{}, false
	}

	return found, true
}

func (h *handler) currencyFailure(c *gin.Context, message string, err error) {
	loggerFrom(c).Error(message, slog.String("code", c.Param("code")), slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": errInternal})
}
