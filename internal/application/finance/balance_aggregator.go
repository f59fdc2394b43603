package finance

import (
	"context"

	"github.com/erp/poscore/internal/application/txn"
	"github.com/erp/poscore/internal/domain/partner"
	"github.com/erp/poscore/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerBalance is the first-principles value of a customer's cached totals
type CustomerBalance struct {
	CustomerID     uuid.UUID       `json:"customer_id"`
	TotalSales     decimal.Decimal `json:"total_sales"`
	TotalPayments  decimal.Decimal `json:"total_payments"`
	PendingBalance decimal.Decimal `json:"pending_balance"`
}

// SalePaymentState is the first-principles value of a sale's payment fields.
// Committed also counts pending payments and bounds new payments.
type SalePaymentState struct {
	SaleID      uuid.UUID           `json:"sale_id"`
	GrandTotal  decimal.Decimal     `json:"grand_total"`
	PaidAmount  decimal.Decimal     `json:"paid_amount"`
	Committed   decimal.Decimal     `json:"committed"`
	Outstanding decimal.Decimal     `json:"outstanding"`
	Status      trade.PaymentStatus `json:"status"`
}

// BalanceAggregator derives cached totals by summing live rows. It never
// writes; the transaction managers store what it returns.
type BalanceAggregator struct{}

// NewBalanceAggregator creates a BalanceAggregator
func NewBalanceAggregator() *BalanceAggregator {
	return &BalanceAggregator{}
}

// RecomputeCustomerBalance sums the customer's non-deleted sale grand totals
// and cleared payments
func (a *BalanceAggregator) RecomputeCustomerBalance(ctx context.Context, repos txn.TransactionalRepositories, customerID uuid.UUID) (CustomerBalance, error) {
	totalSales, err := repos.SaleRepo().SumGrandTotalByCustomer(ctx, customerID)
	if err != nil {
		return CustomerBalance{}, err
	}
	totalPayments, err := repos.PaymentRepo().SumClearedByCustomer(ctx, customerID)
	if err != nil {
		return CustomerBalance{}, err
	}
	return CustomerBalance{
		CustomerID:     customerID,
		TotalSales:     totalSales,
		TotalPayments:  totalPayments,
		PendingBalance: totalSales.Sub(totalPayments),
	}, nil
}

// RecomputeSalePaymentState loads a sale and derives its payment fields
func (a *BalanceAggregator) RecomputeSalePaymentState(ctx context.Context, repos txn.TransactionalRepositories, saleID uuid.UUID) (SalePaymentState, error) {
	sale, err := repos.SaleRepo().FindByID(ctx, saleID)
	if err != nil {
		return SalePaymentState{}, err
	}
	return a.PaymentStateOf(ctx, repos, sale)
}

// PaymentStateOf derives the payment fields of an already loaded sale, using
// its current grand total
func (a *BalanceAggregator) PaymentStateOf(ctx context.Context, repos txn.TransactionalRepositories, sale *trade.Sale) (SalePaymentState, error) {
	allocations := repos.PaymentAllocationRepo()
	paid, err := allocations.SumClearedBySale(ctx, sale.ID)
	if err != nil {
		return SalePaymentState{}, err
	}
	committed, err := allocations.SumActiveBySale(ctx, sale.ID)
	if err != nil {
		return SalePaymentState{}, err
	}
	return SalePaymentState{
		SaleID:      sale.ID,
		GrandTotal:  sale.GrandTotal,
		PaidAmount:  paid,
		Committed:   committed,
		Outstanding: sale.Outstanding(committed),
		Status:      trade.DerivePaymentStatus(paid, sale.GrandTotal),
	}, nil
}

// VerifyCustomer compares a customer's cached totals with recomputed ones
func (a *BalanceAggregator) VerifyCustomer(ctx context.Context, repos txn.TransactionalRepositories, customer *partner.Customer) (bool, CustomerBalance, error) {
	expected, err := a.RecomputeCustomerBalance(ctx, repos, customer.ID)
	if err != nil {
		return false, CustomerBalance{}, err
	}
	return customer.TotalsEqual(expected.TotalSales, expected.TotalPayments), expected, nil
}

// VerifySale compares a sale's cached payment fields with recomputed ones
func (a *BalanceAggregator) VerifySale(ctx context.Context, repos txn.TransactionalRepositories, sale *trade.Sale) (bool, SalePaymentState, error) {
	expected, err := a.PaymentStateOf(ctx, repos, sale)
	if err != nil {
		return false, SalePaymentState{}, err
	}
	ok := sale.PaidAmount.Equal(expected.PaidAmount) && sale.PaymentStatus == expected.Status
	return ok, expected, nil
}
