package trade_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	appfinance "github.com/erp/poscore/internal/application/finance"
	appinventory "github.com/erp/poscore/internal/application/inventory"
	apptrade "github.com/erp/poscore/internal/application/trade"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dec = testutil.Dec

func item(productID uuid.UUID, qty, price string) apptrade.SaleItemRequest {
	return apptrade.SaleItemRequest{ProductID: productID, Qty: dec(qty), UnitPrice: dec(price)}
}

func update(items ...apptrade.SaleItemRequest) apptrade.UpdateSaleRequest {
	return apptrade.UpdateSaleRequest{Items: items, EditReason: "customer changed order"}
}

func rowVersion(v int64) *int64 { return &v }

func TestCreateSale_TotalsAndStock(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithDefaultVATRate(dec("0.05")))
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "10", "10.00")

	sale, err := env.Sales.CreateSale(ctx, apptrade.CreateSaleRequest{
		Items: []apptrade.SaleItemRequest{item(product.ID, "3", "10.00")},
	}, env.Staff)
	require.NoError(t, err)

	require.Len(t, sale.Items, 1)
	assert.True(t, sale.Items[0].VATAmount.Equal(dec("1.50")))
	assert.True(t, sale.Items[0].LineTotal.Equal(dec("31.50")))
	assert.True(t, sale.Subtotal.Equal(dec("30.00")))
	assert.True(t, sale.VATTotal.Equal(dec("1.50")))
	assert.True(t, sale.Discount.IsZero())
	assert.True(t, sale.GrandTotal.Equal(dec("31.50")))
	assert.Equal(t, "INV-000001", sale.InvoiceNo)
	assert.Equal(t, "pending", sale.PaymentStatus)
	assert.Equal(t, 1, sale.Version)
	assert.Equal(t, "pcs", sale.Items[0].UnitType, "unit type defaults from the product")
	assert.True(t, env.StockOf(t, product.ID).Equal(dec("7")))

	versions, err := env.Sales.ListVersions(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].VersionNumber)
}

func TestCreateSale_ThenPaymentMarksPaid(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithDefaultVATRate(dec("0.05")))
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "10", "10.00")
	customer := env.SeedCustomer(t, "C1", "")
	sale := env.SellOne(t, product.ID, "3", "10.00", &customer.ID)

	resp, replayed, err := env.Payments.CreatePayment(ctx, appfinance.CreatePaymentRequest{
		SaleID: &sale.ID,
		Amount: dec("31.50"),
		Mode:   "cash",
	}, env.Staff, "pay-1")
	require.NoError(t, err)
	assert.False(t, replayed)

	require.Len(t, resp.Sales, 1)
	assert.True(t, resp.Sales[0].PaidAmount.Equal(dec("31.50")))
	assert.Equal(t, "paid", resp.Sales[0].PaymentStatus)
	require.NotNil(t, resp.Customer)
	assert.True(t, resp.Customer.TotalPayments.Equal(dec("31.50")))
	assert.True(t, resp.Customer.PendingBalance.IsZero())

	got, err := env.Sales.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", got.PaymentStatus)
}

func TestCreateSale_InsufficientStock(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "2", "5")

	_, err := env.Sales.CreateSale(ctx, apptrade.CreateSaleRequest{
		Items: []apptrade.SaleItemRequest{item(product.ID, "3", "5")},
	}, env.Staff)
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.CodeInsufficientStock))
	assert.True(t, env.StockOf(t, product.ID).Equal(dec("2")))
	assert.EqualValues(t, 1, env.Metrics.Count(t, "pos_stock_rejections_total", "", ""))

	page, err := env.Sales.ListSales(ctx, apptrade.SaleListFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total, "rolled back sale leaves no row")

	t.Run("invoice number is not consumed by the failed create", func(t *testing.T) {
		sale := env.SellOne(t, product.ID, "1", "5", nil)
		assert.Equal(t, "INV-000001", sale.InvoiceNo)
	})
}

func TestCreateSaleWithOverride(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "1", "5")
	req := apptrade.CreateSaleRequest{Items: []apptrade.SaleItemRequest{item(product.ID, "3", "5")}}

	_, err := env.Sales.CreateSaleWithOverride(ctx, req, env.Staff, "walk-in rush")
	assert.True(t, shared.IsCode(err, shared.CodeForbidden))

	_, err = env.Sales.CreateSaleWithOverride(ctx, req, env.Admin, " ")
	assert.True(t, shared.IsCode(err, shared.CodeValidation))

	sale, err := env.Sales.CreateSaleWithOverride(ctx, req, env.Admin, "stock count pending")
	require.NoError(t, err)
	assert.Equal(t, "stock count pending", sale.OverrideReason)
	assert.True(t, env.StockOf(t, product.ID).Equal(dec("-2")))
}

func TestCreateSale_ExternalReferenceReplay(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "10", "5")
	req := apptrade.CreateSaleRequest{
		ExternalReference: "shop-order-77",
		Items:             []apptrade.SaleItemRequest{item(product.ID, "2", "5")},
	}

	first, err := env.Sales.CreateSale(ctx, req, env.Staff)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := env.Sales.CreateSale(ctx, req, env.Staff)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, env.StockOf(t, product.ID).Equal(dec("8")), "stock taken once")

	_, err = env.Sales.DeleteSale(ctx, first.ID, env.Admin)
	require.NoError(t, err)
	_, err = env.Sales.CreateSale(ctx, req, env.Staff)
	assert.True(t, shared.IsCode(err, shared.CodeDuplicateExternalReference))
}

func TestCreateSale_CreditLimit(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "10", "10")
	customer := env.SeedCustomer(t, "C1", "25")
	req := apptrade.CreateSaleRequest{
		CustomerID: &customer.ID,
		Items:      []apptrade.SaleItemRequest{item(product.ID, "3", "10")},
	}

	_, err := env.Sales.CreateSale(ctx, req, env.Staff)
	assert.True(t, shared.IsCode(err, shared.CodeCreditLimitExceeded))
	assert.True(t, env.StockOf(t, product.ID).Equal(dec("10")))

	_, err = env.Sales.CreateSale(ctx, req, env.Admin)
	assert.NoError(t, err, "admins are not bound by the credit limit")
}

func TestDraftSale_FinalizeTakesStock(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "10", "4")
	draft := false

	sale, err := env.Sales.CreateSale(ctx, apptrade.CreateSaleRequest{
		Finalized: &draft,
		Items:     []apptrade.SaleItemRequest{item(product.ID, "3", "4")},
	}, env.Staff)
	require.NoError(t, err)
	assert.False(t, sale.IsFinalized)
	assert.True(t, env.StockOf(t, product.ID).Equal(dec("10")))

	finalize := true
	req := update(item(product.ID, "4", "4"))
	req.Finalized = &finalize
	updated, err := env.Sales.UpdateSale(ctx, sale.ID, req, env.Staff, req.EditReason, nil)
	require.NoError(t, err)
	assert.True(t, updated.IsFinalized)
	assert.True(t, env.StockOf(t, product.ID).Equal(dec("6")))

	req.Finalized = &draft
	_, err = env.Sales.UpdateSale(ctx, sale.ID, req, env.Staff, req.EditReason, nil)
	assert.True(t, shared.IsCode(err, shared.CodeInvalidState))
}

func TestUpdateSale_StockDelta(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "4", "10")
	sale := env.SellOne(t, product.ID, "3", "10", nil)
	require.True(t, env.StockOf(t, product.ID).Equal(dec("1")))

	t.Run("qty 3 to 5 with one left fails and changes nothing", func(t *testing.T) {
		_, err := env.Sales.UpdateSale(ctx, sale.ID, update(item(product.ID, "5", "10")), env.Staff, "more", nil)
		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeInsufficientStock))
		assert.True(t, env.StockOf(t, product.ID).Equal(dec("1")))

		got, err := env.Sales.GetSale(ctx, sale.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Version)
		assert.True(t, got.Items[0].Qty.Equal(dec("3")))
	})

	t.Run("qty 3 to 4 takes the last unit", func(t *testing.T) {
		updated, err := env.Sales.UpdateSale(ctx, sale.ID, update(item(product.ID, "4", "10")), env.Staff, "one more", nil)
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)
		assert.True(t, updated.GrandTotal.Equal(dec("40")))
		assert.True(t, env.StockOf(t, product.ID).IsZero())
	})

	t.Run("reducing qty returns stock", func(t *testing.T) {
		_, err := env.Sales.UpdateSale(ctx, sale.ID, update(item(product.ID, "1", "10")), env.Staff, "returned three", nil)
		require.NoError(t, err)
		assert.True(t, env.StockOf(t, product.ID).Equal(dec("3")))
	})
}

func TestUpdateSale_StaleRowVersion(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "10", "10")
	sale := env.SellOne(t, product.ID, "1", "10", nil)
	loaded := sale.RowVersion

	first, err := env.Sales.UpdateSale(ctx, sale.ID, update(item(product.ID, "2", "10")), env.Staff, "first", rowVersion(loaded))
	require.NoError(t, err)
	assert.Greater(t, first.RowVersion, loaded)

	_, err = env.Sales.UpdateSale(ctx, sale.ID, update(item(product.ID, "3", "10")), env.Staff, "second", rowVersion(loaded))
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.CodeConcurrencyConflict))

	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.EqualValues(t, first.RowVersion, de.Details["current_row_version"])
	assert.True(t, env.StockOf(t, product.ID).Equal(dec("8")), "losing write applied no stock")
}

func TestUpdateSale_GrandTotalBelowPaid(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "10", "10")
	sale := env.SellOne(t, product.ID, "3", "10", nil)
	_, _, err := env.Payments.CreatePayment(ctx, appfinance.CreatePaymentRequest{
		SaleID: &sale.ID, Amount: dec("25"), Mode: "cash",
	}, env.Staff, "pay-below")
	require.NoError(t, err)

	_, err = env.Sales.UpdateSale(ctx, sale.ID, update(item(product.ID, "2", "10")), env.Staff, "fewer", nil)
	require.Error(t, err)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, shared.CodeValidation, de.Code)
	assert.Equal(t, "GRAND_TOTAL_BELOW_PAID", de.Details["reason"])
}

func TestUpdateSale_EditLock(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithEditWindow(48*time.Hour))
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "10", "10")
	sale := env.SellOne(t, product.ID, "1", "10", nil)

	_, err := env.Sales.UpdateSale(ctx, sale.ID, update(item(product.ID, "2", "10")), env.Staff, "", nil)
	assert.True(t, shared.IsCode(err, shared.CodeValidation), "staff edits need a reason")

	env.Clock.Advance(49 * time.Hour)
	_, err = env.Sales.UpdateSale(ctx, sale.ID, update(item(product.ID, "2", "10")), env.Staff, "late", nil)
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.CodeInvoiceLocked))

	got, err := env.Sales.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEditLocked)

	_, err = env.Sales.UnlockInvoice(ctx, sale.ID, env.Staff, "please")
	assert.True(t, shared.IsCode(err, shared.CodeForbidden))

	unlocked, err := env.Sales.UnlockInvoice(ctx, sale.ID, env.Admin, "customer dispute")
	require.NoError(t, err)
	assert.True(t, unlocked)

	_, err = env.Sales.UpdateSale(ctx, sale.ID, update(item(product.ID, "2", "10")), env.Staff, "after unlock", nil)
	assert.NoError(t, err)

	unlocked, err = env.Sales.UnlockInvoice(ctx, sale.ID, env.Admin, "again")
	require.NoError(t, err)
	assert.False(t, unlocked)
}

func TestLockExpired(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithEditWindow(48*time.Hour))
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "10", "10")
	old := env.SellOne(t, product.ID, "1", "10", nil)
	env.Clock.Advance(40 * time.Hour)
	fresh := env.SellOne(t, product.ID, "1", "10", nil)
	env.Clock.Advance(10 * time.Hour)

	locked, err := env.Sales.LockExpired(ctx, env.Clock.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, locked)

	got, err := env.Sales.GetSale(ctx, old.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLocked)
	require.NotNil(t, got.LockedAt)
	got, err = env.Sales.GetSale(ctx, fresh.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLocked)

	locked, err = env.Sales.LockExpired(ctx, env.Clock.Now(), 0)
	require.NoError(t, err)
	assert.Zero(t, locked, "second run finds nothing new")
}

func TestRestoreVersion_AppendsHistory(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "10", "10")
	sale := env.SellOne(t, product.ID, "3", "10", nil)
	_, err := env.Sales.UpdateSale(ctx, sale.ID, update(item(product.ID, "5", "10")), env.Staff, "five", nil)
	require.NoError(t, err)

	v1Before, err := env.Sales.GetVersion(ctx, sale.ID, 1)
	require.NoError(t, err)

	restored, err := env.Sales.RestoreVersion(ctx, sale.ID, 1, env.Staff, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, restored.Version)
	assert.True(t, restored.GrandTotal.Equal(dec("30")))
	assert.True(t, env.StockOf(t, product.ID).Equal(dec("7")))

	versions, err := env.Sales.ListVersions(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i, v := range versions {
		assert.Equal(t, i+1, v.VersionNumber)
	}
	assert.Equal(t, "Restored from version 1", versions[2].EditReason)

	v1After, err := env.Sales.GetVersion(ctx, sale.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, v1Before.ID, v1After.ID)
	assert.True(t, v1Before.Snapshot.GrandTotal.Equal(v1After.Snapshot.GrandTotal))
	assert.Equal(t, v1Before.EditedAt, v1After.EditedAt)

	_, err = env.Sales.RestoreVersion(ctx, sale.ID, 9, env.Staff, nil)
	assert.True(t, shared.IsCode(err, shared.CodeVersionNotFound))
}

func TestDeleteSale_RestoresStockOnce(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "PA", "5", "10")
	customer := env.SeedCustomer(t, "C1", "")
	sale := env.SellOne(t, product.ID, "2", "10", &customer.ID)
	require.True(t, env.StockOf(t, product.ID).Equal(dec("3")))

	_, err := env.Sales.DeleteSale(ctx, sale.ID, env.Staff)
	assert.True(t, shared.IsCode(err, shared.CodeForbidden))

	deleted, err := env.Sales.DeleteSale(ctx, sale.ID, env.Admin)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.True(t, env.StockOf(t, product.ID).Equal(dec("5")))

	deleted, err = env.Sales.DeleteSale(ctx, sale.ID, env.Admin)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.True(t, env.StockOf(t, product.ID).Equal(dec("5")))

	txns, err := env.Inventory.ListTransactions(ctx, product.ID, appinventory.TransactionListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, txns.Total, "opening, sale, and one reversal")

	got, err := env.Sales.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)

	c, err := env.Customers.GetCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, c.TotalSales.IsZero())
	assert.True(t, c.PendingBalance.IsZero())

	_, err = env.Sales.UpdateSale(ctx, sale.ID, update(item(product.ID, "1", "10")), env.Admin, "", nil)
	assert.True(t, shared.IsCode(err, shared.CodeInvalidState))
}

func TestOverrideSales_StockRecoversFromNegative(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "PN", "0", "4")
	req := apptrade.CreateSaleRequest{Items: []apptrade.SaleItemRequest{item(product.ID, "5", "4")}}

	first, err := env.Sales.CreateSaleWithOverride(ctx, req, env.Admin, "shelf stock not yet received")
	require.NoError(t, err)
	second, err := env.Sales.CreateSaleWithOverride(ctx, req, env.Admin, "shelf stock not yet received")
	require.NoError(t, err)
	require.True(t, env.StockOf(t, product.ID).Equal(dec("-10")))

	in, err := env.Inventory.ReceivePurchase(ctx, product.ID, appinventory.StockMovementRequest{Quantity: dec("3")}, env.Staff)
	require.NoError(t, err)
	assert.True(t, in.NewQty.Equal(dec("-7")))

	deleted, err := env.Sales.DeleteSale(ctx, first.ID, env.Admin)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.True(t, env.StockOf(t, product.ID).Equal(dec("-2")))

	_, err = env.Sales.UpdateSale(ctx, second.ID, update(item(product.ID, "1", "4")), env.Admin, "", rowVersion(second.RowVersion))
	require.NoError(t, err)
	assert.True(t, env.StockOf(t, product.ID).Equal(dec("2")), "reducing quantity gives stock back")

	_, err = env.Sales.CreateSale(ctx, apptrade.CreateSaleRequest{
		Items: []apptrade.SaleItemRequest{item(product.ID, "3", "4")},
	}, env.Staff)
	assert.True(t, shared.IsCode(err, shared.CodeInsufficientStock), "decrements still respect the floor")
	assert.True(t, env.StockOf(t, product.ID).Equal(dec("2")))
}

// Random finalized sales, edits and deletes without override never take
// stock below zero, and a rejected operation leaves stock untouched.
func TestStockNeverNegativeWithoutOverride(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	products := []uuid.UUID{
		env.SeedProduct(t, "A", "6", "1").ID,
		env.SeedProduct(t, "B", "3", "1").ID,
	}
	rng := rand.New(rand.NewSource(42))
	var live []uuid.UUID

	for step := 0; step < 60; step++ {
		pid := products[rng.Intn(len(products))]
		qty := decimal.NewFromInt(int64(rng.Intn(4) + 1))
		before := env.StockOf(t, pid)

		var err error
		switch op := rng.Intn(3); {
		case op == 0 || len(live) == 0:
			var sale *apptrade.SaleResponse
			sale, err = env.Sales.CreateSale(ctx, apptrade.CreateSaleRequest{
				Items: []apptrade.SaleItemRequest{{ProductID: pid, Qty: qty, UnitPrice: dec("1")}},
			}, env.Staff)
			if err == nil {
				live = append(live, sale.ID)
			}
		case op == 1:
			id := live[rng.Intn(len(live))]
			_, err = env.Sales.UpdateSale(ctx, id, apptrade.UpdateSaleRequest{
				Items:      []apptrade.SaleItemRequest{{ProductID: pid, Qty: qty, UnitPrice: dec("1")}},
				EditReason: "shuffle",
			}, env.Staff, "shuffle", nil)
		default:
			i := rng.Intn(len(live))
			_, err = env.Sales.DeleteSale(ctx, live[i], env.Admin)
			live = append(live[:i], live[i+1:]...)
		}

		if err != nil {
			require.True(t, shared.IsCode(err, shared.CodeInsufficientStock), "step %d: %v", step, err)
			assert.True(t, env.StockOf(t, pid).Equal(before), "step %d: rejected op changed stock", step)
		}
		for _, p := range products {
			require.False(t, env.StockOf(t, p).IsNegative(), "step %d: negative stock", step)
		}
	}

	report, err := env.Reconciliation.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Healthy(), "%+v", report.Alerts)
}
