package shared

import "github.com/shopspring/decimal"

// MoneyScale is the number of decimal places money is rounded to
const MoneyScale int32 = 2

// RoundMoney rounds half away from zero to two decimal places
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// SumMoney adds amounts without intermediate rounding
func SumMoney(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
