// Package txn defines the unit of work shared by the transaction managers.
// One Execute call is one database transaction; every repository handed to
// the callback is bound to it, so a sale, its stock movements, invoice
// versions, payments and customer totals commit or roll back together.
package txn

import (
	"context"

	"github.com/erp/poscore/internal/domain/audit"
	"github.com/erp/poscore/internal/domain/catalog"
	"github.com/erp/poscore/internal/domain/finance"
	"github.com/erp/poscore/internal/domain/inventory"
	"github.com/erp/poscore/internal/domain/partner"
	"github.com/erp/poscore/internal/domain/trade"
)

// TransactionScope runs work inside one database transaction.
type TransactionScope interface {
	// Execute runs fn within a transaction. A returned error rolls back
	// everything fn wrote; a nil error commits.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error

	// Repositories returns repositories bound to the base connection, for
	// reads outside a transaction
	Repositories() TransactionalRepositories
}

// TransactionalRepositories provides every repository of the core. All
// repositories returned by one instance share the same transaction.
type TransactionalRepositories interface {
	ProductRepo() catalog.ProductRepository
	PriceChangeLogRepo() catalog.PriceChangeLogRepository
	InventoryTransactionRepo() inventory.InventoryTransactionRepository
	StockAdjustmentRepo() inventory.StockAdjustmentRepository
	CustomerRepo() partner.CustomerRepository
	SaleRepo() trade.SaleRepository
	InvoiceVersionRepo() trade.InvoiceVersionRepository
	InvoiceSequenceRepo() trade.InvoiceSequenceRepository
	PaymentRepo() finance.PaymentRepository
	PaymentAllocationRepo() finance.PaymentAllocationRepository
	PaymentIdempotencyRepo() finance.PaymentIdempotencyRepository
	AuditLogRepo() audit.AuditLogRepository
}
