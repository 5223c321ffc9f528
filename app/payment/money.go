package payment

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "ISK": {}, "JPY": {}, "KMF": {}, "KRW": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

func CurrencyExponent(currency string) int32 {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return 0
	}
	return 2
}

// ToMinorUnits refuses amounts with more precision than the currency allows
// instead of rounding them away.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	exp := CurrencyExponent(currency)
	scaled := amount.Shift(exp)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places for %s", amount.String(), exp, currency)
	}
	return scaled.IntPart(), nil
}

func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -CurrencyExponent(currency))
}

// FormatMinorUnits renders minor units as the provider's major-unit decimal string.
func FormatMinorUnits(minor int64, currency string) string {
	return FromMinorUnits(minor, currency).StringFixed(CurrencyExponent(currency))
}
