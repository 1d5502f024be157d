package api

import (
	"sort"
	"time"

	currency "github.com/malusev998/currency-rates"
)

// RateGroup is one day of a rate series.
type RateGroup struct {
	Date  time.Time
	From  string
	Rates []currency.ExchangeRate
}

// GroupByDate splits a date-ordered series into per-day groups whose rates
// are sorted by target currency code.
func GroupByDate(rates []currency.ExchangeRate) []RateGroup {
	groups := make([]RateGroup, 0)

	for _, rate := range rates {
		day := currency.Day(rate.Date)
		last := len(groups) - 1

		if last < 0 || !groups[last].Date.Equal(day) {
			groups = append(groups, RateGroup{Date: day, From: rate.From})
			last++
		}

		groups[last].Rates = append(groups[last].Rates, rate)
	}

	for _, group := range groups {
		sort.SliceStable(group.Rates, func(i, j int) bool {
			return group.Rates[i].To < group.Rates[j].To
		})
	}

	return groups
}
