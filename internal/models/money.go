package models

import "github.com/shopspring/decimal"

// MoneyScale is the number of fractional digits kept for every monetary value.
const MoneyScale = 2

// RoundMoney rounds half up to MoneyScale digits.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// FormatMoney renders d with exactly two fractional digits.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

// FitsMoneyScale reports whether d carries no non-zero digits beyond
// MoneyScale, so rounding would not change it.
func FitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(RoundMoney(d))
}
