package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ClampPrecision limits a decimal ETH amount to gwei precision.
// Amounts with up to 9 fractional digits are returned with their original digit count,
// longer fractions are rounded down (or up when roundUp is set) to exactly 9 digits.
// Inputs that are empty, carry no fractional part or cannot be parsed are returned as-is.
func ClampPrecision(amount string, roundUp bool) string {
	dotIdx := strings.LastIndex(amount, ".")
	if amount == "" || dotIdx == -1 || dotIdx == len(amount)-1 {
		return amount
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		return amount
	}

	digits := len(amount) - dotIdx - 1
	if digits <= GweiDecimals {
		return value.StringFixed(int32(digits))
	}

	if roundUp {
		value = value.RoundUp(GweiDecimals)
	} else {
		value = value.RoundDown(GweiDecimals)
	}
	return value.StringFixed(GweiDecimals)
}
