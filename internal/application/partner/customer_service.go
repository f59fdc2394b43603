package partner

import (
	"context"

	appfinance "github.com/erp/poscore/internal/application/finance"
	"github.com/erp/poscore/internal/application/txn"
	"github.com/erp/poscore/internal/domain/audit"
	"github.com/erp/poscore/internal/domain/partner"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CustomerService handles customer-related business operations
type CustomerService struct {
	scope    txn.TransactionScope
	balances *appfinance.BalanceSync
	logger   *zap.Logger
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(scope txn.TransactionScope, balances *appfinance.BalanceSync, logger *zap.Logger) *CustomerService {
	if balances == nil {
		balances = appfinance.NewBalanceSync(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerService{scope: scope, balances: balances, logger: logger}
}

// RegisterCustomer creates a new customer with zero totals
func (s *CustomerService) RegisterCustomer(ctx context.Context, req CreateCustomerRequest, actor shared.Actor) (*CustomerResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	customer, err := partner.NewCustomer(req.Code, req.Name, req.CreditLimit)
	if err != nil {
		return nil, err
	}
	customer.SetContact(req.Phone, req.Email, req.Address)

	repo := s.scope.Repositories().CustomerRepo()
	if _, err := repo.FindByCode(ctx, customer.Code); err == nil {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists, "Customer with this code already exists").
			WithDetail("code", customer.Code)
	} else if !shared.IsCode(err, shared.CodeNotFound) {
		return nil, err
	}

	if err := repo.Create(ctx, customer); err != nil {
		return nil, err
	}
	s.logger.Info("customer registered",
		zap.String("customer_id", customer.ID.String()),
		zap.String("code", customer.Code))
	resp := ToCustomerResponse(customer)
	return &resp, nil
}

// GetCustomer retrieves a customer by ID
func (s *CustomerService) GetCustomer(ctx context.Context, id uuid.UUID) (*CustomerResponse, error) {
	customer, err := s.scope.Repositories().CustomerRepo().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToCustomerResponse(customer)
	return &resp, nil
}

// ListCustomers lists customers with pagination
func (s *CustomerService) ListCustomers(ctx context.Context, filter CustomerListFilter) (shared.Paginated[CustomerResponse], error) {
	f := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
	}.Normalize()

	customers, total, err := s.scope.Repositories().CustomerRepo().FindAll(ctx, f)
	if err != nil {
		return shared.Paginated[CustomerResponse]{}, err
	}
	items := make([]CustomerResponse, len(customers))
	for i := range customers {
		items[i] = ToCustomerResponse(&customers[i])
	}
	return shared.NewPaginated(items, total, f.Page, f.PageSize), nil
}

// RecomputeCustomer rewrites the cached totals from sale and payment rows.
// Admin only.
func (s *CustomerService) RecomputeCustomer(ctx context.Context, id uuid.UUID, actor shared.Actor) (*RecomputeResponse, error) {
	if err := actor.RequireAdmin("recompute_customer"); err != nil {
		return nil, err
	}

	var result RecomputeResponse
	err := s.scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
		current, err := repos.CustomerRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		result.Before = TotalsResponse{
			TotalSales:     current.TotalSales,
			TotalPayments:  current.TotalPayments,
			PendingBalance: current.PendingBalance,
		}

		customer, err := s.balances.SyncCustomer(ctx, repos, id)
		if err != nil {
			return err
		}
		result.Changed = !current.TotalsEqual(customer.TotalSales, customer.TotalPayments)
		result.Customer = ToCustomerResponse(customer)

		if !result.Changed {
			return nil
		}
		entry, err := audit.NewAuditLog(actor, audit.ActionCustomerRecomputed, audit.EntityCustomer, id, "")
		if err != nil {
			return err
		}
		entry.With("before_total_sales", current.TotalSales.String()).
			With("before_total_payments", current.TotalPayments.String()).
			With("total_sales", customer.TotalSales.String()).
			With("total_payments", customer.TotalPayments.String())
		return repos.AuditLogRepo().Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	if result.Changed {
		s.logger.Warn("customer totals repaired",
			zap.String("customer_id", id.String()),
			zap.String("before_pending", result.Before.PendingBalance.String()),
			zap.String("pending", result.Customer.PendingBalance.String()),
			zap.String("actor_id", actor.ID.String()))
	}
	return &result, nil
}
