package currency

import (
	"fmt"
	"strings"
)

type (
	Provider string

	// ProviderDescriptor is a registry entry. Lower priority is consulted first.
	ProviderDescriptor struct {
		Name     Provider `json:"name" mapstructure:"name"`
		Priority int      `json:"priority" mapstructure:"priority"`
		Active   bool     `json:"active" mapstructure:"active"`
	}
)

const (
	CurrencyBeaconProvider   Provider = "CurrencyBeacon"
	FreeConvProvider         Provider = "FreeCurrConversion"
	ExchangeRatesAPIProvider Provider = "ExchangeRatesAPI"
	EmptyProvider            Provider = ""
)

func ConvertToProviderFromString(str string) (Provider, error) {
	switch strings.ToLower(str) {
	case "currencybeacon":
		return CurrencyBeaconProvider, nil
	case "freecurrconversion", "freecurrconv":
		return FreeConvProvider, nil
	case "exchangeratesapi":
		return ExchangeRatesAPIProvider, nil
	}

	return "", fmt.Errorf("value %s is not valid Provider", str)
}

func (p Provider) String() string {
	return string(p)
}
