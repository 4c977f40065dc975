package utils

import (
	"math"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places money is stored with
const MoneyScale = 2

// TruncateMoney drops anything below a cent so an amount matches what the
// store keeps. It never rounds up. NaN and infinities are returned as is.
func TruncateMoney(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Truncate(MoneyScale).InexactFloat64()
}
