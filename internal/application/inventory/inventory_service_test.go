package inventory_test

import (
	"context"
	"testing"

	appinventory "github.com/erp/poscore/internal/application/inventory"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dec = testutil.Dec

func TestRegisterProduct_OpeningStockIsLedgered(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	p := env.SeedProduct(t, "sku-1", "12", "4")

	assert.True(t, p.StockQty.Equal(dec("12")))
	assert.True(t, p.IsActive)
	assert.EqualValues(t, 1, p.RowVersion)

	rows, err := env.Inventory.ListTransactions(ctx, p.ID, appinventory.TransactionListFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, rows.Total)
	assert.Equal(t, "opening", rows.Items[0].TransactionType)
	assert.True(t, rows.Items[0].BalanceBefore.IsZero())
	assert.True(t, rows.Items[0].BalanceAfter.Equal(dec("12")))

	_, err = env.Inventory.RegisterProduct(ctx, appinventory.RegisterProductRequest{
		SKU: p.SKU, Name: "dup", UnitType: "pcs",
	}, env.Admin)
	assert.True(t, shared.IsCode(err, shared.CodeAlreadyExists))
}

func TestPurchaseAndPurchaseReturn(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	p := env.SeedProduct(t, "P1", "2", "10")
	ref := uuid.New()

	in, err := env.Inventory.ReceivePurchase(ctx, p.ID, appinventory.StockMovementRequest{
		Quantity: dec("8"), ReferenceID: &ref, Reason: "PO-7",
	}, env.Staff)
	require.NoError(t, err)
	assert.True(t, in.PreviousQty.Equal(dec("2")))
	assert.True(t, in.NewQty.Equal(dec("10")))
	require.NotNil(t, in.TransactionID)

	out, err := env.Inventory.ReturnPurchase(ctx, p.ID, appinventory.StockMovementRequest{Quantity: dec("4")}, env.Staff)
	require.NoError(t, err)
	assert.True(t, out.NewQty.Equal(dec("6")))

	_, err = env.Inventory.ReturnPurchase(ctx, p.ID, appinventory.StockMovementRequest{Quantity: dec("7")}, env.Staff)
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.CodeInsufficientStock))
	assert.True(t, env.StockOf(t, p.ID).Equal(dec("6")), "failed movement leaves stock untouched")

	_, err = env.Inventory.ReceivePurchase(ctx, p.ID, appinventory.StockMovementRequest{Quantity: dec("0")}, env.Staff)
	assert.True(t, shared.IsCode(err, shared.CodeValidation))

	rows, err := env.Inventory.ListTransactions(ctx, p.ID, appinventory.TransactionListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, rows.Total)
}

func TestAdjustStock(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	p := env.SeedProduct(t, "P1", "3", "10")

	tests := []struct {
		name     string
		req      appinventory.AdjustStockRequest
		actor    shared.Actor
		wantCode string
		wantQty  string
	}{
		{
			name:    "count correction",
			req:     appinventory.AdjustStockRequest{Delta: dec("-1"), Reason: "breakage"},
			actor:   env.Staff,
			wantQty: "2",
		},
		{
			name:     "below zero without override",
			req:      appinventory.AdjustStockRequest{Delta: dec("-5"), Reason: "shrinkage"},
			actor:    env.Staff,
			wantCode: shared.CodeInsufficientStock,
			wantQty:  "2",
		},
		{
			name:     "override by staff",
			req:      appinventory.AdjustStockRequest{Delta: dec("-5"), Reason: "shrinkage", Override: true},
			actor:    env.Staff,
			wantCode: shared.CodeForbidden,
			wantQty:  "2",
		},
		{
			name:    "override by admin",
			req:     appinventory.AdjustStockRequest{Delta: dec("-5"), Reason: "shrinkage", Override: true},
			actor:   env.Admin,
			wantQty: "-3",
		},
		{
			name:     "zero delta",
			req:      appinventory.AdjustStockRequest{Delta: dec("0"), Reason: "noop"},
			actor:    env.Staff,
			wantCode: shared.CodeValidation,
			wantQty:  "-3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := env.Inventory.AdjustStock(ctx, p.ID, tt.req, tt.actor)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, shared.IsCode(err, tt.wantCode), "got %v", err)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, resp.AdjustmentID)
			}
			assert.True(t, env.StockOf(t, p.ID).Equal(dec(tt.wantQty)))
		})
	}

	rows, err := env.Inventory.ListTransactions(ctx, p.ID, appinventory.TransactionListFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, rows.Items)
	newest := rows.Items[0]
	assert.True(t, newest.Override)
	assert.True(t, newest.Quantity.Equal(dec("-5")))
	assert.True(t, newest.BalanceAfter.Equal(dec("-3")))
}

func TestReturnSale(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	p := env.SeedProduct(t, "P1", "10", "10")
	sale := env.SellOne(t, p.ID, "4", "10", nil)
	require.True(t, env.StockOf(t, p.ID).Equal(dec("6")))

	resp, err := env.Inventory.ReturnSale(ctx, sale.ID, appinventory.SaleReturnRequest{
		ProductID: p.ID, Quantity: dec("3"), Restock: true, Reason: "wrong size",
	}, env.Staff)
	require.NoError(t, err)
	assert.True(t, resp.Restocked)
	assert.True(t, resp.NewQty.Equal(dec("9")))
	require.NotNil(t, resp.TransactionID)

	resp, err = env.Inventory.ReturnSale(ctx, sale.ID, appinventory.SaleReturnRequest{
		ProductID: p.ID, Quantity: dec("1"), Reason: "damaged",
	}, env.Staff)
	require.NoError(t, err)
	assert.False(t, resp.Restocked)
	assert.Nil(t, resp.TransactionID)
	assert.True(t, resp.NewQty.Equal(dec("9")))

	_, err = env.Inventory.ReturnSale(ctx, sale.ID, appinventory.SaleReturnRequest{
		ProductID: p.ID, Quantity: dec("5"), Restock: true, Reason: "too many",
	}, env.Staff)
	assert.True(t, shared.IsCode(err, shared.CodeValidation))

	_, err = env.Inventory.ReturnSale(ctx, uuid.New(), appinventory.SaleReturnRequest{
		ProductID: p.ID, Quantity: dec("1"), Reason: "ghost",
	}, env.Staff)
	assert.True(t, shared.IsCode(err, shared.CodeNotFound))
}

func TestChangePrice(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	p := env.SeedProduct(t, "P1", "1", "10")
	stale := p.RowVersion

	_, err := env.Inventory.ChangePrice(ctx, p.ID, appinventory.ChangePriceRequest{
		CostPrice: dec("6"), SellPrice: dec("12"), Reason: "supplier increase",
	}, env.Staff)
	assert.True(t, shared.IsCode(err, shared.CodeForbidden))

	updated, err := env.Inventory.ChangePrice(ctx, p.ID, appinventory.ChangePriceRequest{
		CostPrice: dec("6"), SellPrice: dec("12"), Reason: "supplier increase", ExpectedRowVersion: &stale,
	}, env.Admin)
	require.NoError(t, err)
	assert.True(t, updated.SellPrice.Equal(dec("12")))
	assert.Greater(t, updated.RowVersion, stale)

	_, err = env.Inventory.ChangePrice(ctx, p.ID, appinventory.ChangePriceRequest{
		CostPrice: dec("7"), SellPrice: dec("14"), Reason: "again", ExpectedRowVersion: &stale,
	}, env.Admin)
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.CodeConcurrencyConflict))

	same, err := env.Inventory.ChangePrice(ctx, p.ID, appinventory.ChangePriceRequest{
		CostPrice: dec("6"), SellPrice: dec("12"), Reason: "no-op",
	}, env.Admin)
	require.NoError(t, err)
	assert.Equal(t, updated.RowVersion, same.RowVersion)
}

func TestDisableProduct_BlocksSales(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	p := env.SeedProduct(t, "P1", "5", "10")

	_, err := env.Inventory.DisableProduct(ctx, p.ID, env.Staff)
	assert.True(t, shared.IsCode(err, shared.CodeForbidden))

	disabled, err := env.Inventory.DisableProduct(ctx, p.ID, env.Admin)
	require.NoError(t, err)
	assert.False(t, disabled.IsActive)

	_, err = env.Inventory.AdjustStock(ctx, p.ID, appinventory.AdjustStockRequest{Delta: dec("-1"), Reason: "x"}, env.Staff)
	assert.True(t, shared.IsCode(err, shared.CodeInvalidState))

	in, err := env.Inventory.ReceivePurchase(ctx, p.ID, appinventory.StockMovementRequest{Quantity: dec("1")}, env.Staff)
	require.NoError(t, err, "disabled products still receive stock")
	assert.True(t, in.NewQty.Equal(dec("6")))
}

func TestListProducts_Search(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	env.SeedProduct(t, "BOLT-10", "1", "1")
	env.SeedProduct(t, "BOLT-12", "1", "1")
	env.SeedProduct(t, "NUT-10", "1", "1")

	page, err := env.Inventory.ListProducts(ctx, appinventory.ProductListFilter{Search: "bolt"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	page, err = env.Inventory.ListProducts(ctx, appinventory.ProductListFilter{PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.TotalPages)
}
