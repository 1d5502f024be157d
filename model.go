package currency

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type (
	Currency struct {
		Code string `json:"code" bson:"code"`
		Name string `json:"name" bson:"name"`
	}

	// ExchangeRate is the rate of one unit of From expressed in To on Date.
	ExchangeRate struct {
		ID       interface{}     `json:"-"`
		From     string          `json:"from_currency"`
		To       string          `json:"to_currency"`
		Date     time.Time       `json:"date"`
		Rate     decimal.Decimal `json:"rate"`
		Provider Provider        `json:"provider,omitempty"`
	}
)

func (e ExchangeRate) Pair() string {
	return fmt.Sprintf("%s_%s", e.From, e.To)
}

func (e ExchangeRate) String() string {
	return fmt.Sprintf("%s %s -> %s %s", e.Date.Format(DateLayout), e.From, e.Rate.String(), e.To)
}
