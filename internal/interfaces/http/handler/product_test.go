package handler_test

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/erp/poscore/internal/application/inventory"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductHandler_Lifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	srv := testutil.NewServer(t, env)
	staff := srv.As(t, env.Token(t, env.Staff))
	admin := srv.As(t, env.Token(t, env.Admin))

	w := staff(http.MethodPost, "/api/v1/products", map[string]any{
		"sku": "TILE-60", "name": "Floor tile 60cm", "unit_type": "box",
		"cost_price": "12.5", "sell_price": "19.99", "opening_stock": "4",
	})
	testutil.AssertStatus(t, w, http.StatusCreated)
	p := testutil.DecodeData[inventory.ProductResponse](t, w)
	base := "/api/v1/products/" + p.ID.String()

	w = staff(http.MethodPost, base+"/purchases", map[string]any{"quantity": "6", "reason": "PO-19"})
	testutil.AssertStatus(t, w, http.StatusCreated)
	moved := testutil.DecodeData[inventory.StockMovementResponse](t, w)
	assert.True(t, moved.NewQty.Equal(testutil.Dec("10")))

	w = staff(http.MethodPost, base+"/purchase-returns", map[string]any{"quantity": "11"})
	info := testutil.AssertErrorCode(t, w, http.StatusUnprocessableEntity, shared.CodeInsufficientStock)
	assert.Equal(t, "10", info.Details["available"])
	assert.Equal(t, "11", info.Details["requested"])

	w = staff(http.MethodPost, base+"/adjustments", map[string]any{"delta": "-12", "reason": "flood", "override": true})
	testutil.AssertErrorCode(t, w, http.StatusForbidden, shared.CodeForbidden)

	w = admin(http.MethodPost, base+"/adjustments", map[string]any{"delta": "-12", "reason": "flood", "override": true})
	testutil.AssertStatus(t, w, http.StatusCreated)

	w = staff(http.MethodGet, base+"/transactions?page_size=2", nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	rows := testutil.DecodeData[[]inventory.TransactionResponse](t, w)
	require.Len(t, rows, 2)
	assert.Equal(t, "adjustment", rows[0].TransactionType)
	assert.EqualValues(t, 3, testutil.DecodeMeta(t, w).Total)

	w = staff(http.MethodGet, base, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	current := testutil.DecodeData[inventory.ProductResponse](t, w)
	assert.True(t, current.StockQty.Equal(testutil.Dec("-2")))

	price := map[string]any{"cost_price": "13", "sell_price": "21", "reason": "new list"}
	w = admin(http.MethodPut, base+"/price", price, "If-Match", strconv.FormatInt(current.RowVersion-1, 10))
	testutil.AssertErrorCode(t, w, http.StatusConflict, shared.CodeConcurrencyConflict)

	w = admin(http.MethodPut, base+"/price", price, "If-Match", strconv.FormatInt(current.RowVersion, 10))
	testutil.AssertStatus(t, w, http.StatusOK)
	assert.True(t, testutil.DecodeData[inventory.ProductResponse](t, w).SellPrice.Equal(testutil.Dec("21")))

	w = admin(http.MethodPost, base+"/disable", nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	assert.False(t, testutil.DecodeData[inventory.ProductResponse](t, w).IsActive)
}

func TestProductHandler_SaleReturn(t *testing.T) {
	env := testutil.NewEnv(t)
	srv := testutil.NewServer(t, env)
	p := env.SeedProduct(t, "P1", "5", "10")
	sale := env.SellOne(t, p.ID, "2", "10", nil)

	w := srv.As(t, env.Token(t, env.Staff))(http.MethodPost, "/api/v1/sales/"+sale.ID.String()+"/returns", map[string]any{
		"product_id": p.ID.String(), "quantity": "2", "restock": true, "reason": "unopened",
	})
	testutil.AssertStatus(t, w, http.StatusCreated)
	assert.True(t, env.StockOf(t, p.ID).Equal(testutil.Dec("5")))
}

func TestProductHandler_DuplicateSKU(t *testing.T) {
	env := testutil.NewEnv(t)
	srv := testutil.NewServer(t, env)
	env.SeedProduct(t, "P1", "1", "1")

	w := srv.As(t, env.Token(t, env.Staff))(http.MethodPost, "/api/v1/products",
		map[string]any{"sku": "P1", "name": "again", "unit_type": "pcs"})
	testutil.AssertErrorCode(t, w, http.StatusConflict, shared.CodeAlreadyExists)
}
