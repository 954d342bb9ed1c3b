package support

import "github.com/shopspring/decimal"

// MinorUnitScale is the factor between major and minor units for the
// two-decimal currencies the gateways use.
const MinorUnitScale int64 = 100

// ToMinorUnits scales a major-unit amount, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal, scale int64) int64 {
	return amount.Mul(decimal.NewFromInt(scale)).Round(0).IntPart()
}

func FromMinorUnits(value int64, scale int64) decimal.Decimal {
	return decimal.NewFromInt(value).Div(decimal.NewFromInt(scale))
}

// WholeUnits rounds to an integer amount for providers that reject decimals.
func WholeUnits(amount decimal.Decimal) int64 {
	return amount.Round(0).IntPart()
}
