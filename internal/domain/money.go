package domain

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const defaultMoneyScale = 2

// CurrencyScale returns the number of fractional digits used for cash
// amounts in the given ISO 4217 currency. Unknown codes fall back to two
// digits.
func CurrencyScale(code string) int32 {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return defaultMoneyScale
	}
	scale, _ := currency.Cash.Rounding(unit)
	return int32(scale)
}

// RoundMoney rounds an amount to the cash scale of the currency using
// half-up rounding.
func RoundMoney(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Round(CurrencyScale(code))
}

// FormatMoney renders an amount with the fixed fractional digits of the
// currency, e.g. "12.50" for USD.
func FormatMoney(amount decimal.Decimal, code string) string {
	return amount.StringFixed(CurrencyScale(code))
}

// MinorUnits converts an amount to the currency's minor unit, e.g. cents
// for USD, as expected by payment providers.
func MinorUnits(amount decimal.Decimal, code string) int64 {
	scale := CurrencyScale(code)
	return amount.Round(scale).Shift(scale).IntPart()
}

// ClampNonNegative returns zero when the amount is negative.
func ClampNonNegative(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
