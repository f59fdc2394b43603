package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/poscore/internal/application/txn"
	"github.com/erp/poscore/internal/domain/catalog"
	"github.com/erp/poscore/internal/domain/finance"
	"github.com/erp/poscore/internal/domain/inventory"
	"github.com/erp/poscore/internal/domain/partner"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/internal/domain/trade"
	"github.com/erp/poscore/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{
		Driver:   "sqlite",
		DBName:   ":memory:",
		LogLevel: "silent",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var testActor = shared.NewActor(uuid.New(), shared.RoleStaff)

func createProduct(t *testing.T, repo *GormProductRepository, sku string) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(sku, "Product "+sku, "pcs", dec("5"), dec("10"), decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func createSale(t *testing.T, repo *GormSaleRepository, invoiceNo string, customerID *uuid.UUID, items ...trade.SaleItemInput) *trade.Sale {
	t.Helper()
	if len(items) == 0 {
		items = []trade.SaleItemInput{{ProductID: uuid.New(), UnitType: "pcs", Qty: dec("1"), UnitPrice: dec("100")}}
	}
	sale, err := trade.NewSale(invoiceNo, trade.SaleContent{
		InvoiceDate: time.Now().UTC(),
		CustomerID:  customerID,
		Items:       items,
	}, true, testActor)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), sale))
	return sale
}

func TestProductRepository(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormProductRepository(db.DB)
	ctx := context.Background()

	t.Run("create and find by sku", func(t *testing.T) {
		p := createProduct(t, repo, "ABC-1")

		found, err := repo.FindBySKU(ctx, "ABC-1")
		require.NoError(t, err)
		assert.Equal(t, p.ID, found.ID)
		assert.True(t, found.SellPrice.Equal(dec("10")))
		assert.Equal(t, int64(1), found.RowVersion)
	})

	t.Run("duplicate sku", func(t *testing.T) {
		p, err := catalog.NewProduct("ABC-1", "Other", "pcs", decimal.Zero, decimal.Zero, decimal.Zero)
		require.NoError(t, err)
		err = repo.Create(ctx, p)
		assert.True(t, shared.IsCode(err, shared.CodeAlreadyExists))
	})

	t.Run("missing product", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.True(t, shared.IsCode(err, shared.CodeNotFound))
	})

	t.Run("stale copy loses the race", func(t *testing.T) {
		p := createProduct(t, repo, "RACE-1")
		first, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		second, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)

		_, _, err = first.ApplyStockDelta(dec("3"), false)
		require.NoError(t, err)
		require.NoError(t, repo.SaveWithLock(ctx, first))
		assert.Equal(t, int64(2), first.RowVersion)

		_, _, err = second.ApplyStockDelta(dec("1"), false)
		require.NoError(t, err)
		err = repo.SaveWithLock(ctx, second)
		assert.True(t, shared.IsCode(err, shared.CodeConcurrencyConflict))

		stored, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, stored.StockQty.Equal(dec("3")))
	})

	t.Run("search is case insensitive", func(t *testing.T) {
		items, total, err := repo.FindAll(ctx, shared.Filter{Search: "race"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, items, 1)
		assert.Equal(t, "RACE-1", items[0].SKU)
	})
}

func TestCustomerRepository_UpdateTotals(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormCustomerRepository(db.DB)
	ctx := context.Background()

	c, err := partner.NewCustomer("C-001", "Acme", dec("1000"))
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, c))

	c.SetTotals(dec("250"), dec("100"))
	require.NoError(t, repo.UpdateTotals(ctx, c))

	stored, err := repo.FindByCode(ctx, "C-001")
	require.NoError(t, err)
	assert.True(t, stored.TotalSales.Equal(dec("250")))
	assert.True(t, stored.PendingBalance.Equal(dec("150")))
	assert.Equal(t, int64(2), stored.RowVersion)

	dup, err := partner.NewCustomer("C-001", "Other", decimal.Zero)
	require.NoError(t, err)
	assert.True(t, shared.IsCode(repo.Create(ctx, dup), shared.CodeAlreadyExists))
}

func TestSaleRepository(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormSaleRepository(db.DB)
	ctx := context.Background()

	t.Run("loads items in line order", func(t *testing.T) {
		a, b := uuid.New(), uuid.New()
		sale := createSale(t, repo, "INV-000001", nil,
			trade.SaleItemInput{ProductID: a, UnitType: "pcs", Qty: dec("2"), UnitPrice: dec("10")},
			trade.SaleItemInput{ProductID: b, UnitType: "box", Qty: dec("1"), UnitPrice: dec("5")},
		)

		found, err := repo.FindByID(ctx, sale.ID)
		require.NoError(t, err)
		require.Len(t, found.Items, 2)
		assert.Equal(t, a, found.Items[0].ProductID)
		assert.Equal(t, b, found.Items[1].ProductID)
		assert.True(t, found.GrandTotal.Equal(sale.GrandTotal))
	})

	t.Run("external reference stays owned", func(t *testing.T) {
		first, err := trade.NewSale("INV-000002", trade.SaleContent{
			InvoiceDate: time.Now().UTC(),
			Items:       []trade.SaleItemInput{{ProductID: uuid.New(), UnitType: "pcs", Qty: dec("1"), UnitPrice: dec("1")}},
		}, true, testActor)
		require.NoError(t, err)
		first.SetExternalReference("ext-1")
		require.NoError(t, repo.Create(ctx, first))

		second, err := trade.NewSale("INV-000003", first.Content(), true, testActor)
		require.NoError(t, err)
		second.SetExternalReference("ext-1")
		err = repo.Create(ctx, second)
		assert.True(t, shared.IsCode(err, shared.CodeDuplicateExternalReference))

		found, err := repo.FindByExternalReference(ctx, "ext-1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, found.ID)
	})

	t.Run("invoice number is free again after delete", func(t *testing.T) {
		old := createSale(t, repo, "INV-000010", nil)
		require.True(t, old.MarkDeleted(shared.NewActor(uuid.New(), shared.RoleAdmin), time.Now().UTC()))
		require.NoError(t, repo.UpdateHeaderWithLock(ctx, old))

		createSale(t, repo, "INV-000010", nil)

		dup, err := trade.NewSale("INV-000010", old.Content(), true, testActor)
		require.NoError(t, err)
		err = repo.Create(ctx, dup)
		assert.True(t, shared.IsCode(err, shared.CodeDuplicateInvoiceNumber))

		dupes, err := repo.FindDuplicateInvoiceNumbers(ctx)
		require.NoError(t, err)
		assert.Empty(t, dupes)
	})

	t.Run("update replaces items and bumps row version", func(t *testing.T) {
		sale := createSale(t, repo, "INV-000020", nil)
		loaded, err := repo.FindByIDForUpdate(ctx, sale.ID)
		require.NoError(t, err)

		content := loaded.Content()
		content.Items = append(content.Items, trade.SaleItemInput{ProductID: uuid.New(), UnitType: "pcs", Qty: dec("3"), UnitPrice: dec("2")})
		require.NoError(t, loaded.Edit(content, true, testActor))
		require.NoError(t, repo.UpdateWithLock(ctx, loaded))

		found, err := repo.FindByID(ctx, sale.ID)
		require.NoError(t, err)
		assert.Len(t, found.Items, 2)
		assert.Equal(t, int64(2), found.RowVersion)
		assert.Equal(t, 2, found.Version)

		err = repo.UpdateWithLock(ctx, sale)
		assert.True(t, shared.IsCode(err, shared.CodeConcurrencyConflict))
	})

	t.Run("lock candidates respect the unlock anchor", func(t *testing.T) {
		cutoff := time.Now().UTC().Add(time.Minute)
		candidates, err := repo.FindLockCandidates(ctx, cutoff, 100)
		require.NoError(t, err)
		for _, c := range candidates {
			assert.False(t, c.IsDeleted)
			assert.False(t, c.IsLocked)
		}
		assert.NotEmpty(t, candidates)

		none, err := repo.FindLockCandidates(ctx, time.Now().UTC().Add(-time.Hour), 100)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestInvoiceSequenceRepository_Next(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormInvoiceSequenceRepository(db.DB)
	ctx := context.Background()

	n, err := repo.Next(ctx, "invoice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Next(ctx, "invoice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.Next(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestInvoiceVersionRepository(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormInvoiceVersionRepository(db.DB)
	ctx := context.Background()
	saleID := uuid.New()

	for i := 1; i <= 2; i++ {
		v, err := trade.NewInvoiceVersion(saleID, i, []byte(`{"version":1}`), testActor.ID, "edit", "")
		require.NoError(t, err)
		require.NoError(t, repo.Append(ctx, v))
	}

	dup, err := trade.NewInvoiceVersion(saleID, 2, []byte(`{}`), testActor.ID, "edit", "")
	require.NoError(t, err)
	assert.True(t, shared.IsCode(repo.Append(ctx, dup), shared.CodeVersionConflict))

	maxVersion, err := repo.MaxVersion(ctx, saleID)
	require.NoError(t, err)
	assert.Equal(t, 2, maxVersion)

	none, err := repo.MaxVersion(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, none)

	versions, err := repo.FindBySale(ctx, saleID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.JSONEq(t, `{"version":1}`, string(versions[0].Snapshot))

	_, err = repo.FindBySaleAndNumber(ctx, saleID, 3)
	assert.True(t, shared.IsCode(err, shared.CodeNotFound))
}

func TestPaymentSums(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	sales := NewGormSaleRepository(db.DB)
	payments := NewGormPaymentRepository(db.DB)
	allocations := NewGormPaymentAllocationRepository(db.DB)

	customerID := uuid.New()
	sale := createSale(t, sales, "INV-000100", &customerID)

	record := func(amount string, mode finance.PaymentMode, saleID, custID *uuid.UUID, allocate string) *finance.Payment {
		p, err := finance.NewPayment(finance.NewPaymentParams{
			SaleID:     saleID,
			CustomerID: custID,
			Amount:     dec(amount),
			Mode:       mode,
			CreatedBy:  testActor.ID,
		})
		require.NoError(t, err)
		require.NoError(t, payments.Create(ctx, p))
		if allocate != "" {
			require.NoError(t, allocations.CreateBatch(ctx, []finance.PaymentAllocation{
				finance.NewPaymentAllocation(p.ID, sale.ID, dec(allocate)),
			}))
		}
		return p
	}

	record("60", finance.PaymentModeCash, &sale.ID, nil, "60")
	record("20", finance.PaymentModeCheque, &sale.ID, nil, "20")
	record("50", finance.PaymentModeCash, nil, &customerID, "")
	split := record("30", finance.PaymentModeCard, nil, &customerID, "10")

	cleared, err := allocations.SumClearedBySale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, cleared.Equal(dec("70")), cleared.String())

	active, err := allocations.SumActiveBySale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, active.Equal(dec("90")), active.String())

	byCustomer, err := payments.SumClearedByCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.True(t, byCustomer.Equal(dec("140")), byCustomer.String())

	total, err := sales.SumGrandTotalByCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.True(t, total.Equal(sale.GrandTotal))

	voided, err := split.TransitionTo(finance.PaymentStatusVoid)
	require.NoError(t, err)
	require.True(t, voided)
	require.NoError(t, payments.SaveWithLock(ctx, split))

	byCustomer, err = payments.SumClearedByCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.True(t, byCustomer.Equal(dec("110")), byCustomer.String())

	listed, count, err := payments.FindAll(ctx, finance.PaymentFilter{SaleID: &sale.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Len(t, listed, 3)
}

func TestPaymentIdempotencyRepository(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormPaymentIdempotencyRepository(db.DB)
	ctx := context.Background()

	_, err := repo.FindByKey(ctx, "key-1")
	assert.True(t, shared.IsCode(err, shared.CodeNotFound))

	rec := finance.NewPaymentIdempotency("key-1", uuid.New(), "create_payment", "hash", []byte(`{"id":"x"}`), testActor.ID)
	require.NoError(t, repo.Create(ctx, rec))
	assert.True(t, shared.IsCode(repo.Create(ctx, rec), shared.CodeAlreadyExists))

	found, err := repo.FindByKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, rec.PaymentID, found.PaymentID)
	assert.JSONEq(t, `{"id":"x"}`, string(found.ResponseSnapshot))
}

func TestInventoryTransactionRepository_SumByProduct(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormInventoryTransactionRepository(db.DB)
	ctx := context.Background()
	productID := uuid.New()

	moves := []struct{ qty, before, after string }{
		{"10", "0", "10"},
		{"-2.5", "10", "7.5"},
	}
	for _, m := range moves {
		tx, err := inventory.NewInventoryTransaction(productID, inventory.TransactionTypeAdjustment, dec(m.qty), dec(m.before), dec(m.after))
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, tx))
	}

	sums, err := repo.SumByProduct(ctx)
	require.NoError(t, err)
	assert.True(t, sums[productID].Equal(dec("7.5")), sums[productID].String())

	list, total, err := repo.FindByProduct(ctx, productID, shared.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)
}

func TestGormTransactionScope(t *testing.T) {
	db := newTestDatabase(t)
	scope := NewGormTransactionScope(db.DB)
	ctx := context.Background()
	boom := errors.New("boom")

	err := scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
		p, err := catalog.NewProduct("TX-1", "Rolled back", "pcs", decimal.Zero, decimal.Zero, decimal.Zero)
		require.NoError(t, err)
		if err := repos.ProductRepo().Create(ctx, p); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = scope.Repositories().ProductRepo().FindBySKU(ctx, "TX-1")
	assert.True(t, shared.IsCode(err, shared.CodeNotFound))

	err = scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
		p, err := catalog.NewProduct("TX-2", "Committed", "pcs", decimal.Zero, decimal.Zero, decimal.Zero)
		require.NoError(t, err)
		return repos.ProductRepo().Create(ctx, p)
	})
	require.NoError(t, err)

	_, err = scope.Repositories().ProductRepo().FindBySKU(ctx, "TX-2")
	assert.NoError(t, err)
}
