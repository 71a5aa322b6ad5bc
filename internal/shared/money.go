package shared

import "github.com/shopspring/decimal"

// SettlementEpsilon absorbs rounding from legacy rows stored as floating point.
var SettlementEpsilon = decimal.New(1, -2)

// MaxAmount is the largest value the NUMERIC(12,2) money columns hold.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// AmountProblem describes why d cannot be stored as money, or returns "".
// Negative values are left to the caller.
func AmountProblem(d decimal.Decimal) string {
	switch {
	case !d.Equal(d.Round(2)):
		return "must have at most 2 decimal places"
	case d.GreaterThan(MaxAmount):
		return "must not exceed " + MaxAmount.StringFixed(2)
	}
	return ""
}

// Outstanding returns total minus paid, floored at zero.
func Outstanding(total, paid decimal.Decimal) decimal.Decimal {
	out := total.Sub(paid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// Exceeds reports whether paid goes past total beyond the tolerance.
func Exceeds(paid, total decimal.Decimal) bool {
	return paid.GreaterThan(total.Add(SettlementEpsilon))
}

// Covers reports whether paid settles total within the tolerance.
func Covers(paid, total decimal.Decimal) bool {
	return paid.GreaterThanOrEqual(total.Sub(SettlementEpsilon))
}

// Sum adds the given amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
