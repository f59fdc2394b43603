package finance

import (
	"context"

	"github.com/erp/poscore/internal/application/txn"
	"github.com/erp/poscore/internal/domain/partner"
	"github.com/erp/poscore/internal/domain/trade"
	"github.com/google/uuid"
)

// BalanceSync stores aggregator results in the cached columns. It is used by
// the sale and payment transaction managers inside their transactions.
type BalanceSync struct {
	aggregator *BalanceAggregator
}

// NewBalanceSync creates a BalanceSync
func NewBalanceSync(aggregator *BalanceAggregator) *BalanceSync {
	if aggregator == nil {
		aggregator = NewBalanceAggregator()
	}
	return &BalanceSync{aggregator: aggregator}
}

// Aggregator returns the underlying aggregator
func (b *BalanceSync) Aggregator() *BalanceAggregator {
	return b.aggregator
}

// SyncCustomer recomputes and writes a customer's totals. Customers are
// locked for the rest of the transaction and written at most once per call.
func (b *BalanceSync) SyncCustomer(ctx context.Context, repos txn.TransactionalRepositories, customerID uuid.UUID) (*partner.Customer, error) {
	customers := repos.CustomerRepo()
	customer, err := customers.FindByIDForUpdate(ctx, customerID)
	if err != nil {
		return nil, err
	}
	balance, err := b.aggregator.RecomputeCustomerBalance(ctx, repos, customerID)
	if err != nil {
		return nil, err
	}
	if customer.TotalsEqual(balance.TotalSales, balance.TotalPayments) {
		return customer, nil
	}
	customer.SetTotals(balance.TotalSales, balance.TotalPayments)
	if err := customers.UpdateTotals(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// SyncCustomers syncs each distinct, non-nil customer id once
func (b *BalanceSync) SyncCustomers(ctx context.Context, repos txn.TransactionalRepositories, ids ...*uuid.UUID) ([]*partner.Customer, error) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]*partner.Customer, 0, len(ids))
	for _, id := range ids {
		if id == nil || *id == uuid.Nil {
			continue
		}
		if _, ok := seen[*id]; ok {
			continue
		}
		seen[*id] = struct{}{}
		customer, err := b.SyncCustomer(ctx, repos, *id)
		if err != nil {
			return nil, err
		}
		out = append(out, customer)
	}
	return out, nil
}

// SyncSale recomputes and writes a sale's paid amount and status. The sale
// must have been loaded in the current transaction.
func (b *BalanceSync) SyncSale(ctx context.Context, repos txn.TransactionalRepositories, sale *trade.Sale) (SalePaymentState, error) {
	state, err := b.aggregator.PaymentStateOf(ctx, repos, sale)
	if err != nil {
		return SalePaymentState{}, err
	}
	if sale.PaidAmount.Equal(state.PaidAmount) && sale.PaymentStatus == state.Status {
		return state, nil
	}
	sale.ApplyPaymentState(state.PaidAmount)
	if err := repos.SaleRepo().UpdatePaymentState(ctx, sale); err != nil {
		return SalePaymentState{}, err
	}
	return state, nil
}
