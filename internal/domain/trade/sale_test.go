package trade

import (
	"strings"
	"testing"
	"time"

	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func staff() shared.Actor { return shared.NewActor(uuid.New(), shared.RoleStaff) }

func admin() shared.Actor { return shared.NewActor(uuid.New(), shared.RoleAdmin) }

func oneLine(productID uuid.UUID, qty, price string) SaleContent {
	return SaleContent{
		VATRate: dec("0.05"),
		Items:   []SaleItemInput{{ProductID: productID, Qty: dec(qty), UnitPrice: dec(price)}},
	}
}

func TestNewSale_ComputesTotals(t *testing.T) {
	productID := uuid.New()
	sale, err := NewSale("INV-000001", oneLine(productID, "3", "10.00"), true, staff())

	require.NoError(t, err)
	require.Len(t, sale.Items, 1)
	item := sale.Items[0]
	assert.True(t, item.LineSubtotal().Equal(dec("30.00")))
	assert.True(t, item.VATAmount.Equal(dec("1.50")))
	assert.True(t, item.LineTotal.Equal(dec("31.50")))
	assert.True(t, sale.Subtotal.Equal(dec("30.00")))
	assert.True(t, sale.VATTotal.Equal(dec("1.50")))
	assert.True(t, sale.Discount.IsZero())
	assert.True(t, sale.GrandTotal.Equal(dec("31.50")))
	assert.Equal(t, PaymentStatusPending, sale.PaymentStatus)
	assert.Equal(t, 1, sale.Version)
	assert.Equal(t, int64(1), sale.RowVersion)
	assert.Equal(t, sale.ID, item.SaleID)
}

func TestNewSale_Rounding(t *testing.T) {
	tests := []struct {
		name      string
		qty       string
		price     string
		discount  string
		rate      string
		wantVAT   string
		wantTotal string
	}{
		{"half up on VAT", "1", "0.10", "0", "0.05", "0.01", "0.11"},
		{"fractional quantity", "2.5", "3.33", "0", "0.2", "1.67", "10.00"},
		{"line discount", "4", "2.50", "1.00", "0.1", "0.90", "9.90"},
		{"zero rate", "7", "1.99", "0", "0", "0", "13.93"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sale, err := NewSale("INV-1", SaleContent{
				VATRate: dec(tt.rate),
				Items: []SaleItemInput{{
					ProductID: uuid.New(),
					Qty:       dec(tt.qty),
					UnitPrice: dec(tt.price),
					Discount:  dec(tt.discount),
				}},
			}, true, staff())
			require.NoError(t, err)
			assert.Equal(t, dec(tt.wantVAT).StringFixed(2), sale.VATTotal.StringFixed(2))
			assert.Equal(t, dec(tt.wantTotal).StringFixed(2), sale.GrandTotal.StringFixed(2))
		})
	}
}

func TestNewSale_PerItemRateOverridesDefault(t *testing.T) {
	zero := decimal.Zero
	sale, err := NewSale("INV-1", SaleContent{
		VATRate: dec("0.1"),
		Items: []SaleItemInput{
			{ProductID: uuid.New(), Qty: dec("1"), UnitPrice: dec("100")},
			{ProductID: uuid.New(), Qty: dec("1"), UnitPrice: dec("100"), VATRate: &zero},
		},
	}, true, staff())

	require.NoError(t, err)
	assert.True(t, sale.VATTotal.Equal(dec("10")))
	assert.True(t, sale.GrandTotal.Equal(dec("210")))
	assert.Equal(t, 1, sale.Items[1].SortOrder)
}

func TestNewSale_Validation(t *testing.T) {
	productID := uuid.New()
	nilCustomer := uuid.Nil
	tests := []struct {
		name    string
		invoice string
		content SaleContent
		message string
	}{
		{"no invoice number", " ", oneLine(productID, "1", "1"), "Invoice number"},
		{"no items", "INV-1", SaleContent{}, "at least one item"},
		{"zero qty", "INV-1", oneLine(productID, "0", "1"), "quantity must be positive"},
		{"negative price", "INV-1", oneLine(productID, "1", "-1"), "price cannot be negative"},
		{"missing product", "INV-1", oneLine(uuid.Nil, "1", "1"), "requires a product"},
		{"rate above one", "INV-1", SaleContent{VATRate: dec("1.5"), Items: oneLine(productID, "1", "1").Items}, "VAT rate"},
		{"nil customer", "INV-1", SaleContent{CustomerID: &nilCustomer, Items: oneLine(productID, "1", "1").Items}, "Customer reference"},
		{"discount above total", "INV-1", SaleContent{Discount: dec("50"), Items: oneLine(productID, "1", "10").Items}, "Discount cannot exceed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSale(tt.invoice, tt.content, true, staff())
			require.Error(t, err)
			assert.True(t, shared.IsCode(err, shared.CodeValidation))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestDerivePaymentStatus(t *testing.T) {
	total := dec("31.50")
	assert.Equal(t, PaymentStatusPending, DerivePaymentStatus(decimal.Zero, total))
	assert.Equal(t, PaymentStatusPartial, DerivePaymentStatus(dec("10"), total))
	assert.Equal(t, PaymentStatusPaid, DerivePaymentStatus(dec("31.50"), total))
	assert.Equal(t, PaymentStatusPaid, DerivePaymentStatus(dec("40"), total))
	assert.Equal(t, PaymentStatusPaid, DerivePaymentStatus(decimal.Zero, decimal.Zero))
}

func TestSale_Edit(t *testing.T) {
	productID := uuid.New()
	sale, err := NewSale("INV-1", oneLine(productID, "3", "10"), true, staff())
	require.NoError(t, err)
	sale.ApplyPaymentState(dec("31.50"))
	require.Equal(t, PaymentStatusPaid, sale.PaymentStatus)

	editor := staff()
	require.NoError(t, sale.Edit(oneLine(productID, "5", "10"), true, editor))

	assert.Equal(t, 2, sale.Version)
	assert.True(t, sale.GrandTotal.Equal(dec("52.50")))
	assert.Equal(t, PaymentStatusPartial, sale.PaymentStatus)
	require.NotNil(t, sale.UpdatedBy)
	assert.Equal(t, editor.ID, *sale.UpdatedBy)

	t.Run("finalized cannot return to draft", func(t *testing.T) {
		err := sale.Edit(oneLine(productID, "1", "10"), false, editor)
		assert.True(t, shared.IsCode(err, shared.CodeInvalidState))
		assert.Equal(t, 2, sale.Version)
	})

	t.Run("deleted sale cannot be edited", func(t *testing.T) {
		require.True(t, sale.MarkDeleted(editor, time.Now()))
		err := sale.Edit(oneLine(productID, "1", "10"), true, editor)
		assert.True(t, shared.IsCode(err, shared.CodeInvalidState))
	})
}

func TestSale_EditLockWindow(t *testing.T) {
	window := 48 * time.Hour
	sale, err := NewSale("INV-1", oneLine(uuid.New(), "1", "10"), true, staff())
	require.NoError(t, err)
	created := sale.CreatedAt

	t.Run("staff may edit inside the window with a reason", func(t *testing.T) {
		now := created.Add(47 * time.Hour)
		assert.False(t, sale.IsEditLocked(now, window))
		assert.NoError(t, sale.CheckEditable(staff(), "typo", now, window))
	})

	t.Run("staff must give a reason", func(t *testing.T) {
		err := sale.CheckEditable(staff(), "  ", created.Add(time.Hour), window)
		assert.True(t, shared.IsCode(err, shared.CodeValidation))
	})

	t.Run("window is anchored to creation", func(t *testing.T) {
		assert.Equal(t, created.Add(window), sale.LockExpiresAt(window))
		err := sale.CheckEditable(staff(), "late fix", created.Add(49*time.Hour), window)
		require.Error(t, err)
		assert.True(t, shared.IsCode(err, shared.CodeInvoiceLocked))
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Contains(t, de.Details, "lock_expires_at")
	})

	t.Run("admin bypasses the lock", func(t *testing.T) {
		assert.NoError(t, sale.CheckEditable(admin(), "", created.Add(100*time.Hour), window))
	})

	t.Run("unlock re-anchors the window", func(t *testing.T) {
		now := created.Add(60 * time.Hour)
		assert.True(t, sale.Unlock(now, window))
		assert.False(t, sale.IsEditLocked(now.Add(time.Hour), window))
		assert.Equal(t, now.Add(window), sale.LockExpiresAt(window))
		assert.False(t, sale.Unlock(now.Add(time.Hour), window), "already unlocked")
	})

	t.Run("explicit lock blocks staff", func(t *testing.T) {
		now := created.Add(61 * time.Hour)
		assert.True(t, sale.Lock(now))
		assert.False(t, sale.Lock(now), "lock is idempotent")
		assert.True(t, sale.IsEditLocked(now, window))
		assert.True(t, shared.IsCode(sale.CheckEditable(staff(), "x", now, window), shared.CodeInvoiceLocked))
	})
}

func TestSale_MarkDeleted(t *testing.T) {
	sale, err := NewSale("INV-1", oneLine(uuid.New(), "1", "10"), true, staff())
	require.NoError(t, err)
	actor := admin()
	now := time.Now().UTC()

	assert.True(t, sale.MarkDeleted(actor, now))
	assert.True(t, sale.IsDeleted)
	assert.Equal(t, actor.ID, *sale.DeletedBy)
	assert.False(t, sale.MarkDeleted(actor, now.Add(time.Minute)))
	assert.Equal(t, now, *sale.DeletedAt)
}

func TestSale_SetExternalReference(t *testing.T) {
	sale := &Sale{}
	sale.SetExternalReference("  ext-1 ")
	require.NotNil(t, sale.ExternalReference)
	assert.Equal(t, "ext-1", *sale.ExternalReference)
	sale.SetExternalReference("")
	assert.Nil(t, sale.ExternalReference)
}

func TestSale_QuantitiesByProduct(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	sale, err := NewSale("INV-1", SaleContent{Items: []SaleItemInput{
		{ProductID: a, Qty: dec("2"), UnitPrice: dec("1")},
		{ProductID: b, Qty: dec("1"), UnitPrice: dec("1")},
		{ProductID: a, Qty: dec("3"), UnitPrice: dec("1")},
	}}, true, staff())
	require.NoError(t, err)

	qty := sale.QuantitiesByProduct()
	assert.True(t, qty[a].Equal(dec("5")))
	assert.True(t, qty[b].Equal(dec("1")))
	assert.Equal(t, []uuid.UUID{a, b}, sale.ProductIDs())
}

func TestSale_Outstanding(t *testing.T) {
	sale := &Sale{GrandTotal: dec("100")}
	assert.True(t, sale.Outstanding(dec("40")).Equal(dec("60")))
	assert.True(t, sale.Outstanding(dec("120")).IsZero())
}

func TestStockDeltas(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	qty := func(pairs ...any) map[uuid.UUID]decimal.Decimal {
		m := map[uuid.UUID]decimal.Decimal{}
		for i := 0; i < len(pairs); i += 2 {
			m[pairs[i].(uuid.UUID)] = dec(pairs[i+1].(string))
		}
		return m
	}
	find := func(deltas []ProductDelta, id uuid.UUID) decimal.Decimal {
		for _, d := range deltas {
			if d.ProductID == id {
				return d.Delta
			}
		}
		return decimal.Zero
	}

	t.Run("create finalized takes stock", func(t *testing.T) {
		deltas := StockDeltas(nil, false, qty(a, "3"), true)
		require.Len(t, deltas, 1)
		assert.True(t, deltas[0].Delta.Equal(dec("-3")))
	})

	t.Run("qty 3 to 5 takes two more", func(t *testing.T) {
		deltas := StockDeltas(qty(a, "3"), true, qty(a, "5"), true)
		require.Len(t, deltas, 1)
		assert.True(t, deltas[0].Delta.Equal(dec("-2")))
	})

	t.Run("swapping products returns old and takes new", func(t *testing.T) {
		deltas := StockDeltas(qty(a, "2"), true, qty(b, "4"), true)
		require.Len(t, deltas, 2)
		assert.True(t, find(deltas, a).Equal(dec("2")))
		assert.True(t, find(deltas, b).Equal(dec("-4")))
		assert.True(t, deltas[0].ProductID.String() < deltas[1].ProductID.String())
	})

	t.Run("draft edits touch nothing", func(t *testing.T) {
		assert.Empty(t, StockDeltas(qty(a, "2"), false, qty(a, "9"), false))
	})

	t.Run("delete restores stock", func(t *testing.T) {
		deltas := StockDeltas(qty(a, "2"), true, nil, false)
		require.Len(t, deltas, 1)
		assert.True(t, deltas[0].Delta.Equal(dec("2")))
	})

	t.Run("unchanged edit yields nothing", func(t *testing.T) {
		assert.Empty(t, StockDeltas(qty(a, "2", b, "1"), true, qty(a, "2", b, "1"), true))
	})
}

func TestDiffSummary(t *testing.T) {
	productID := uuid.New()
	before, err := NewSale("INV-1", oneLine(productID, "3", "10"), true, staff())
	require.NoError(t, err)
	after, err := NewSale("INV-1", oneLine(productID, "5", "10"), true, staff())
	require.NoError(t, err)
	after.InvoiceDate = before.InvoiceDate

	diff := DiffSummary(NewSaleSnapshot(before), NewSaleSnapshot(after))
	assert.True(t, strings.HasPrefix(diff, "qty "+productID.String()[:8]+" 3->5"), diff)
	assert.Contains(t, diff, "total 31.50->52.50")
	assert.Equal(t, "no changes", DiffSummary(NewSaleSnapshot(before), NewSaleSnapshot(before)))
}

func TestSaleSnapshot_RoundTripContent(t *testing.T) {
	customerID := uuid.New()
	content := oneLine(uuid.New(), "2", "7.25")
	content.CustomerID = &customerID
	content.Notes = "deliver friday"
	sale, err := NewSale("INV-9", content, true, staff())
	require.NoError(t, err)

	raw, err := NewSaleSnapshot(sale).Encode()
	require.NoError(t, err)
	version, err := NewInvoiceVersion(sale.ID, 1, raw, sale.CreatedBy, "Created", "created")
	require.NoError(t, err)

	snap, err := version.DecodeSnapshot()
	require.NoError(t, err)
	restored := snap.Content()
	require.Len(t, restored.Items, 1)
	assert.True(t, restored.Items[0].Qty.Equal(dec("2")))
	assert.Equal(t, customerID, *restored.CustomerID)
	assert.Equal(t, "deliver friday", restored.Notes)
	assert.True(t, snap.GrandTotal.Equal(sale.GrandTotal))
}
