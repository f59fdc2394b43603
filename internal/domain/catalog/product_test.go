package catalog

import (
	"testing"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newProduct(t *testing.T, stock string) *Product {
	t.Helper()
	p, err := NewProduct(" sku-001 ", "Widget", "pcs", dec("5"), dec("10"), dec("2"))
	require.NoError(t, err)
	p.StockQty = dec(stock)
	return p
}

func TestNewProduct(t *testing.T) {
	p := newProduct(t, "0")
	assert.Equal(t, "SKU-001", p.SKU)
	assert.True(t, p.IsActive)
	assert.True(t, p.NeedsReorder())

	tests := []struct {
		name string
		sku  string
		unit string
		cost string
	}{
		{"empty sku", "", "pcs", "1"},
		{"bad sku chars", "A B", "pcs", "1"},
		{"empty unit", "A1", "", "1"},
		{"negative cost", "A1", "pcs", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProduct(tt.sku, "Name", tt.unit, dec(tt.cost), dec("1"), decimal.Zero)
			assert.True(t, shared.IsCode(err, shared.CodeValidation))
		})
	}
}

func TestProduct_ApplyStockDelta(t *testing.T) {
	t.Run("decrement within stock", func(t *testing.T) {
		p := newProduct(t, "5")
		before, after, err := p.ApplyStockDelta(dec("-3"), false)
		require.NoError(t, err)
		assert.True(t, before.Equal(dec("5")))
		assert.True(t, after.Equal(dec("2")))
		assert.True(t, p.StockQty.Equal(dec("2")))
	})

	t.Run("insufficient stock leaves quantity unchanged", func(t *testing.T) {
		p := newProduct(t, "1")
		_, _, err := p.ApplyStockDelta(dec("-2"), false)
		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeInsufficientStock))
		assert.True(t, p.StockQty.Equal(dec("1")))

		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "1", de.Details["available"])
		assert.Equal(t, "2", de.Details["requested"])
	})

	t.Run("override may go negative", func(t *testing.T) {
		p := newProduct(t, "1")
		_, after, err := p.ApplyStockDelta(dec("-4"), true)
		require.NoError(t, err)
		assert.True(t, after.Equal(dec("-3")))
	})

	t.Run("increments apply while below zero", func(t *testing.T) {
		p := newProduct(t, "0")
		_, _, err := p.ApplyStockDelta(dec("-10"), true)
		require.NoError(t, err)

		_, after, err := p.ApplyStockDelta(dec("3"), false)
		require.NoError(t, err)
		assert.True(t, after.Equal(dec("-7")))

		_, _, err = p.ApplyStockDelta(dec("-1"), false)
		assert.True(t, shared.IsCode(err, shared.CodeInsufficientStock))
		assert.True(t, p.StockQty.Equal(dec("-7")))
	})

	t.Run("disabled product cannot be sold", func(t *testing.T) {
		p := newProduct(t, "10")
		p.Disable()
		_, _, err := p.ApplyStockDelta(dec("-1"), false)
		assert.True(t, shared.IsCode(err, shared.CodeInvalidState))

		_, after, err := p.ApplyStockDelta(dec("1"), false)
		require.NoError(t, err, "returns into a disabled product are allowed")
		assert.True(t, after.Equal(dec("11")))
	})
}

func TestProduct_ChangePrices(t *testing.T) {
	p := newProduct(t, "0")
	actor := shared.NewActor(uuid.New(), shared.RoleAdmin)

	log, err := p.ChangePrices(dec("5"), dec("10"), "no-op", actor)
	require.NoError(t, err)
	assert.Nil(t, log)

	log, err = p.ChangePrices(dec("6"), dec("12"), "supplier increase", actor)
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.True(t, p.SellPrice.Equal(dec("12")))

	_, err = p.ChangePrices(dec("-1"), dec("12"), "bad", actor)
	assert.Error(t, err)
}
