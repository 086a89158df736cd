package types

import "github.com/shopspring/decimal"

var centsPerUnit = decimal.NewFromInt(100)

// AmountFromCents renders an integer cent value as a two-decimal amount
// string, e.g. 150000 -> "1500.00".
func AmountFromCents(cents int64) string {
	return decimal.NewFromInt(cents).Div(centsPerUnit).StringFixed(2)
}
