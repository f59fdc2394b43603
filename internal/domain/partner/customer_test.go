package partner

import (
	"testing"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNewCustomer(t *testing.T) {
	c, err := NewCustomer(" c-001 ", " Acme ", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, "C-001", c.Code)
	assert.Equal(t, "Acme", c.Name)
	assert.True(t, c.PendingBalance.IsZero())

	_, err = NewCustomer("", "Acme", decimal.Zero)
	assert.True(t, shared.IsCode(err, shared.CodeValidation))
	_, err = NewCustomer("C1", "Acme", dec("-1"))
	assert.True(t, shared.IsCode(err, shared.CodeValidation))
}

func TestCustomer_SetTotals(t *testing.T) {
	c, err := NewCustomer("C1", "Acme", decimal.Zero)
	require.NoError(t, err)

	c.SetTotals(dec("100"), dec("31.50"))
	assert.True(t, c.PendingBalance.Equal(dec("68.50")))
	assert.True(t, c.Balance.Equal(c.PendingBalance))
	assert.True(t, c.TotalsEqual(dec("100"), dec("31.50")))
	assert.False(t, c.TotalsEqual(dec("100"), dec("30")))
}

func TestCustomer_ExceedsCreditLimit(t *testing.T) {
	unlimited, err := NewCustomer("C1", "Acme", decimal.Zero)
	require.NoError(t, err)
	assert.False(t, unlimited.ExceedsCreditLimit(dec("1000000")))

	limited, err := NewCustomer("C2", "Bolt", dec("100"))
	require.NoError(t, err)
	limited.SetTotals(dec("80"), decimal.Zero)
	assert.False(t, limited.ExceedsCreditLimit(dec("20")))
	assert.True(t, limited.ExceedsCreditLimit(dec("20.01")))
}
