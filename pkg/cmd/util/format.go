package util

import "github.com/shopspring/decimal"

// Percent formats a completion reward as percentage with two decimals
func Percent(v float64) string {
	return decimal.NewFromFloat(v).Shift(2).StringFixed(2) + "%"
}

// Fixed formats v with two decimals
func Fixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
