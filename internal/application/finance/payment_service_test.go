package finance_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	appfinance "github.com/erp/poscore/internal/application/finance"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var dec = testutil.Dec

func cash(saleID uuid.UUID, amount string) appfinance.CreatePaymentRequest {
	return appfinance.CreatePaymentRequest{SaleID: &saleID, Amount: dec(amount), Mode: "cash"}
}

func TestCreatePayment_IdempotentReplay(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "10", "10")
	sale := env.SellOne(t, product.ID, "3", "10", nil)
	req := cash(sale.ID, "12.50")

	first, replayed, err := env.Payments.CreatePayment(ctx, req, env.Staff, "key-1")
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := env.Payments.CreatePayment(ctx, req, env.Staff, "key-1")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.EqualValues(t, 1, env.Metrics.Count(t, "pos_payment_idempotent_replays_total", "operation", "create_payment"))

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))

	t.Run("database answers when the cache is cold", func(t *testing.T) {
		cold := appfinance.NewPaymentService(appfinance.PaymentServiceConfig{
			Scope:    env.Scope,
			Guard:    appfinance.NewIdempotencyGuard(env.Scope, nil, time.Hour, zap.NewNop()),
			Balances: appfinance.NewBalanceSync(appfinance.NewBalanceAggregator()),
		})
		third, replayed, err := cold.CreatePayment(ctx, req, env.Staff, "key-1")
		require.NoError(t, err)
		assert.True(t, replayed)
		thirdJSON, err := json.Marshal(third)
		require.NoError(t, err)
		assert.Equal(t, string(firstJSON), string(thirdJSON))
	})

	page, err := env.Payments.ListPayments(ctx, appfinance.PaymentListFilter{SaleID: &sale.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total, "exactly one payment row")

	got, err := env.Sales.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, got.PaidAmount.Equal(dec("12.50")))
	assert.Equal(t, "partial", got.PaymentStatus)
}

func TestCreatePayment_KeyReusedWithDifferentPayload(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "10", "10")
	sale := env.SellOne(t, product.ID, "3", "10", nil)

	_, _, err := env.Payments.CreatePayment(ctx, cash(sale.ID, "5"), env.Staff, "key-2")
	require.NoError(t, err)

	_, _, err = env.Payments.CreatePayment(ctx, cash(sale.ID, "6"), env.Staff, "key-2")
	assert.True(t, shared.IsCode(err, shared.CodeIdempotencyKeyReused))

	_, _, err = env.Payments.CreatePayment(ctx, cash(sale.ID, "6"), env.Staff, "")
	assert.True(t, shared.IsCode(err, shared.CodeValidation), "key is required")
}

func TestCreatePayment_Overpayment(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "10", "10")
	sale := env.SellOne(t, product.ID, "3", "10", nil)

	_, _, err := env.Payments.CreatePayment(ctx, cash(sale.ID, "30.01"), env.Staff, "over-1")
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.CodeOverpayment))

	page, err := env.Payments.ListPayments(ctx, appfinance.PaymentListFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	_, _, err = env.Payments.CreatePayment(ctx, cash(sale.ID, "30.01"), env.Staff, "over-1")
	assert.True(t, shared.IsCode(err, shared.CodeOverpayment), "a failed request records no key")
}

func TestChequeClearsLater(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "10", "10")
	customer := env.SeedCustomer(t, "C1", "")
	sale := env.SellOne(t, product.ID, "2", "10", &customer.ID)

	resp, _, err := env.Payments.CreatePayment(ctx, appfinance.CreatePaymentRequest{
		SaleID: &sale.ID, Amount: dec("20"), Mode: "cheque", Reference: "CHQ-1",
	}, env.Staff, "chq-1")
	require.NoError(t, err)
	assert.Equal(t, "pending", resp.Payment.Status)
	assert.True(t, resp.Sales[0].PaidAmount.IsZero())
	assert.True(t, resp.Sales[0].Outstanding.IsZero(), "pending money is committed")

	_, _, err = env.Payments.CreatePayment(ctx, cash(sale.ID, "1"), env.Staff, "chq-2")
	assert.True(t, shared.IsCode(err, shared.CodeOverpayment))

	_, err = env.Payments.UpdatePaymentStatus(ctx, resp.Payment.ID, "cleared", env.Staff, nil)
	assert.True(t, shared.IsCode(err, shared.CodeForbidden))

	changed, err := env.Payments.UpdatePaymentStatus(ctx, resp.Payment.ID, "cleared", env.Admin, nil)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := env.Sales.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", got.PaymentStatus)

	changed, err = env.Payments.UpdatePaymentStatus(ctx, resp.Payment.ID, "cleared", env.Admin, nil)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = env.Payments.UpdatePaymentStatus(ctx, resp.Payment.ID, "pending", env.Admin, nil)
	assert.True(t, shared.IsCode(err, shared.CodeInvalidState))

	c, err := env.Customers.GetCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, c.TotalPayments.Equal(dec("20")))
	assert.True(t, c.PendingBalance.IsZero())
}

func TestAllocatePayment_FIFO(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "100", "10")
	customer := env.SeedCustomer(t, "C1", "")
	older := env.SellOne(t, product.ID, "3", "10", &customer.ID)
	env.Clock.Advance(time.Hour)
	newer := env.SellOne(t, product.ID, "2", "10", &customer.ID)

	resp, replayed, err := env.Payments.AllocatePayment(ctx, appfinance.AllocatePaymentRequest{
		CustomerID: customer.ID,
		Amount:     dec("60"),
		Mode:       "bank_transfer",
	}, env.Staff, "alloc-1")
	require.NoError(t, err)
	assert.False(t, replayed)

	require.Len(t, resp.Allocations, 2)
	assert.Equal(t, older.ID, resp.Allocations[0].SaleID)
	assert.True(t, resp.Allocations[0].Amount.Equal(dec("30")))
	assert.Equal(t, newer.ID, resp.Allocations[1].SaleID)
	assert.True(t, resp.Allocations[1].Amount.Equal(dec("20")))
	assert.True(t, resp.UnallocatedAmount.Equal(dec("10")))
	assert.True(t, resp.Customer.TotalPayments.Equal(dec("60")))
	assert.True(t, resp.Customer.PendingBalance.Equal(dec("-10")), "credit stays on account")

	for _, id := range []uuid.UUID{older.ID, newer.ID} {
		got, err := env.Sales.GetSale(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "paid", got.PaymentStatus)
	}

	detail, err := env.Payments.GetPayment(ctx, resp.Payment.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Allocations, 2)
}

func TestAllocatePayment_ManualOrderRejectsForeignSale(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "100", "10")
	mine := env.SeedCustomer(t, "C1", "")
	other := env.SeedCustomer(t, "C2", "")
	foreign := env.SellOne(t, product.ID, "1", "10", &other.ID)

	_, _, err := env.Payments.AllocatePayment(ctx, appfinance.AllocatePaymentRequest{
		CustomerID: mine.ID,
		Amount:     dec("10"),
		Mode:       "cash",
		SaleIDs:    []uuid.UUID{foreign.ID},
	}, env.Staff, "alloc-2")
	assert.True(t, shared.IsCode(err, shared.CodeValidation))
}

func TestDeletePayment(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "10", "10")
	customer := env.SeedCustomer(t, "C1", "")
	sale := env.SellOne(t, product.ID, "1", "10", &customer.ID)
	resp, _, err := env.Payments.CreatePayment(ctx, cash(sale.ID, "10"), env.Staff, "del-1")
	require.NoError(t, err)

	_, err = env.Payments.DeletePayment(ctx, resp.Payment.ID, env.Staff)
	assert.True(t, shared.IsCode(err, shared.CodeForbidden))

	deleted, err := env.Payments.DeletePayment(ctx, resp.Payment.ID, env.Admin)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = env.Payments.DeletePayment(ctx, resp.Payment.ID, env.Admin)
	require.NoError(t, err)
	assert.False(t, deleted)

	got, err := env.Sales.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", got.PaymentStatus)
	assert.True(t, got.PaidAmount.IsZero())

	c, err := env.Customers.GetCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, c.PendingBalance.Equal(dec("10")))
}

// After any mix of sales, edits, payments, status changes and deletes the
// cached customer totals equal the recomputed ones.
func TestBalanceIdentity(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithDefaultVATRate(dec("0.05")))
	ctx := context.Background()
	product := env.SeedProduct(t, "P1", "100", "10")
	customer := env.SeedCustomer(t, "C1", "")

	s1 := env.SellOne(t, product.ID, "3", "10", &customer.ID)
	s2 := env.SellOne(t, product.ID, "5", "7.77", &customer.ID)
	s3 := env.SellOne(t, product.ID, "1", "99.99", &customer.ID)

	p1, _, err := env.Payments.CreatePayment(ctx, cash(s1.ID, "31.50"), env.Staff, "bi-1")
	require.NoError(t, err)
	cheque := s2.ID
	p2, _, err := env.Payments.CreatePayment(ctx, appfinance.CreatePaymentRequest{
		SaleID: &cheque, Amount: dec("20"), Mode: "cheque",
	}, env.Staff, "bi-2")
	require.NoError(t, err)
	_, _, err = env.Payments.CreatePayment(ctx, appfinance.CreatePaymentRequest{
		CustomerID: &customer.ID, Amount: dec("5"), Mode: "cash",
	}, env.Staff, "bi-3")
	require.NoError(t, err)

	_, err = env.Payments.UpdatePaymentStatus(ctx, p2.Payment.ID, "cleared", env.Admin, nil)
	require.NoError(t, err)
	_, err = env.Sales.DeleteSale(ctx, s3.ID, env.Admin)
	require.NoError(t, err)
	_, err = env.Payments.UpdatePaymentStatus(ctx, p1.Payment.ID, "returned", env.Admin, nil)
	require.NoError(t, err)

	repos := env.Scope.Repositories()
	cached, err := repos.CustomerRepo().FindByID(ctx, customer.ID)
	require.NoError(t, err)
	ok, expected, err := appfinance.NewBalanceAggregator().VerifyCustomer(ctx, repos, cached)
	require.NoError(t, err)
	assert.True(t, ok, "cached %s/%s expected %s/%s",
		cached.TotalSales, cached.TotalPayments, expected.TotalSales, expected.TotalPayments)

	// 31.50 + 40.79 live sales, 20 + 5 cleared
	assert.True(t, expected.TotalSales.Equal(dec("72.29")), expected.TotalSales.String())
	assert.True(t, expected.TotalPayments.Equal(dec("25")), expected.TotalPayments.String())
	assert.True(t, cached.PendingBalance.Equal(dec("47.29")))
}
