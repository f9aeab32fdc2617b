package ledger

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultTaxRate is applied when an order has tax enabled.
var DefaultTaxRate = decimal.RequireFromString("0.05")

// Round2 rounds to two decimals, half away from zero. Every amount in this
// package is non-negative, so this is round-half-up.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromFloat converts f to a decimal, mapping NaN and ±Inf to zero.
func FromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func lineSubtotal(qty int, unitPrice decimal.Decimal) decimal.Decimal {
	return Round2(unitPrice.Mul(decimal.NewFromInt(int64(qty))))
}
