package partner

import (
	"strings"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Customer is a buyer with cached running totals. TotalSales, TotalPayments
// and PendingBalance are derived from sale and payment rows; they are only
// written through SetTotals with values computed by the balance aggregator.
type Customer struct {
	shared.BaseAggregateRoot
	Code           string
	Name           string
	Phone          string
	Email          string
	Address        string
	CreditLimit    decimal.Decimal
	TotalSales     decimal.Decimal
	TotalPayments  decimal.Decimal
	PendingBalance decimal.Decimal
	// Balance mirrors PendingBalance for older clients.
	Balance decimal.Decimal
}

// NewCustomer creates a customer with zero totals
func NewCustomer(code, name string, creditLimit decimal.Decimal) (*Customer, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if code == "" {
		return nil, shared.NewValidationError("Customer code cannot be empty")
	}
	if len(code) > 50 {
		return nil, shared.NewValidationError("Customer code cannot exceed 50 characters")
	}
	if name == "" {
		return nil, shared.NewValidationError("Customer name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewValidationError("Customer name cannot exceed 200 characters")
	}
	if creditLimit.IsNegative() {
		return nil, shared.NewValidationError("Credit limit cannot be negative")
	}

	return &Customer{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Name:              name,
		CreditLimit:       creditLimit,
		TotalSales:        decimal.Zero,
		TotalPayments:     decimal.Zero,
		PendingBalance:    decimal.Zero,
		Balance:           decimal.Zero,
	}, nil
}

// SetContact updates the contact fields
func (c *Customer) SetContact(phone, email, address string) {
	c.Phone = strings.TrimSpace(phone)
	c.Email = strings.TrimSpace(email)
	c.Address = strings.TrimSpace(address)
	c.Touch()
}

// SetTotals replaces the cached totals. PendingBalance and Balance are always
// derived from the two sums so the identity cannot drift inside one write.
func (c *Customer) SetTotals(totalSales, totalPayments decimal.Decimal) {
	c.TotalSales = totalSales
	c.TotalPayments = totalPayments
	c.PendingBalance = totalSales.Sub(totalPayments)
	c.Balance = c.PendingBalance
	c.Touch()
}

// TotalsEqual reports whether the cached totals match the given values
func (c *Customer) TotalsEqual(totalSales, totalPayments decimal.Decimal) bool {
	return c.TotalSales.Equal(totalSales) &&
		c.TotalPayments.Equal(totalPayments) &&
		c.PendingBalance.Equal(totalSales.Sub(totalPayments))
}

// ExceedsCreditLimit reports whether adding amount to the pending balance
// would break a configured credit limit. A zero limit means unlimited.
func (c *Customer) ExceedsCreditLimit(amount decimal.Decimal) bool {
	if !c.CreditLimit.IsPositive() {
		return false
	}
	return c.PendingBalance.Add(amount).GreaterThan(c.CreditLimit)
}
