package finance

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/erp/poscore/internal/application/txn"
	"github.com/erp/poscore/internal/domain/audit"
	"github.com/erp/poscore/internal/domain/finance"
	"github.com/erp/poscore/internal/domain/partner"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/internal/domain/trade"
	"github.com/erp/poscore/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// PaymentServiceConfig holds the collaborators of PaymentService
type PaymentServiceConfig struct {
	Scope    txn.TransactionScope
	Guard    *IdempotencyGuard
	Balances *BalanceSync
	Logger   *zap.Logger
	// Clock defaults payment dates and stamps deletions; nil means UTC wall time
	Clock func() time.Time
}

// PaymentService is the payment transaction manager. Every mutation records
// the payment, its allocations, the affected sales' payment state and the
// customer totals in one transaction.
type PaymentService struct {
	scope    txn.TransactionScope
	guard    *IdempotencyGuard
	balances *BalanceSync
	logger   *zap.Logger
	now      func() time.Time
	metrics  *telemetry.BusinessMetrics
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(cfg PaymentServiceConfig) *PaymentService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	guard := cfg.Guard
	if guard == nil {
		guard = NewIdempotencyGuard(cfg.Scope, nil, DefaultReplayTTL, logger)
	}
	balances := cfg.Balances
	if balances == nil {
		balances = NewBalanceSync(nil)
	}
	now := cfg.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &PaymentService{
		scope:    cfg.Scope,
		guard:    guard,
		balances: balances,
		logger:   logger,
		now:      now,
	}
}

// SetBusinessMetrics sets the counters replays are recorded on
func (s *PaymentService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.metrics = bm
}

// CreatePayment records a payment once per idempotency key. The second
// return value is true when the response is a replay of an earlier call.
func (s *PaymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest, actor shared.Actor, idempotencyKey string) (*CreatePaymentResponse, bool, error) {
	if err := actor.Validate(); err != nil {
		return nil, false, err
	}
	params, err := s.paymentParams(req.SaleID, req.CustomerID, req.Amount, req.Mode, req.Status, req.Reference, req.PaymentDate, req.Notes, actor)
	if err != nil {
		return nil, false, err
	}

	return s.idempotent(ctx, finance.OperationCreatePayment, idempotencyKey, req, actor,
		func(ctx context.Context, repos txn.TransactionalRepositories) (*CreatePaymentResponse, error) {
			return s.applyPayment(ctx, repos, params)
		})
}

// ApplyPaymentInTx records a payment inside a transaction owned by the
// caller. The sale transaction manager uses it for payments supplied with a
// new sale.
func (s *PaymentService) ApplyPaymentInTx(ctx context.Context, repos txn.TransactionalRepositories, req CreatePaymentRequest, actor shared.Actor) (*CreatePaymentResponse, error) {
	params, err := s.paymentParams(req.SaleID, req.CustomerID, req.Amount, req.Mode, req.Status, req.Reference, req.PaymentDate, req.Notes, actor)
	if err != nil {
		return nil, err
	}
	return s.applyPayment(ctx, repos, params)
}

// AllocatePayment records one customer payment and splits it across open
// invoices. Whatever is left after every target is paid stays as account
// credit.
func (s *PaymentService) AllocatePayment(ctx context.Context, req AllocatePaymentRequest, actor shared.Actor, idempotencyKey string) (*CreatePaymentResponse, bool, error) {
	if err := actor.Validate(); err != nil {
		return nil, false, err
	}
	customerID := req.CustomerID
	params, err := s.paymentParams(nil, &customerID, req.Amount, req.Mode, req.Status, req.Reference, req.PaymentDate, req.Notes, actor)
	if err != nil {
		return nil, false, err
	}

	return s.idempotent(ctx, finance.OperationAllocatePayment, idempotencyKey, req, actor,
		func(ctx context.Context, repos txn.TransactionalRepositories) (*CreatePaymentResponse, error) {
			return s.allocate(ctx, repos, params, req.SaleIDs)
		})
}

// idempotent runs apply at most once per key and always answers from the
// stored snapshot, so a first call and its replays serialize identically
func (s *PaymentService) idempotent(
	ctx context.Context,
	operation, key string,
	request any,
	actor shared.Actor,
	apply func(ctx context.Context, repos txn.TransactionalRepositories) (*CreatePaymentResponse, error),
) (*CreatePaymentResponse, bool, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", operation,
		telemetry.SpanAttrIdempotency, key,
		telemetry.SpanAttrActorID, actor.ID.String())
	defer span.End()

	requestHash, err := finance.HashRequest(operation, request)
	if err != nil {
		return nil, false, fmt.Errorf("hash payment request: %w", err)
	}

	existing, err := s.guard.CheckOrReserve(ctx, key, operation, requestHash)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, false, err
	}
	if existing != nil {
		return s.replay(ctx, span, operation, key, existing)
	}

	var record *finance.PaymentIdempotency
	replayed := false
	err = s.scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
		// a concurrent request with the same key may have committed since
		// the check above
		committed, err := repos.PaymentIdempotencyRepo().FindByKey(ctx, key)
		if err == nil {
			if err := checkMatch(committed, operation, requestHash); err != nil {
				return err
			}
			record, replayed = committed, true
			return nil
		}
		if !shared.IsCode(err, shared.CodeNotFound) {
			return err
		}

		resp, err := apply(ctx, repos)
		if err != nil {
			return err
		}
		snapshot, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("encode payment response: %w", err)
		}
		record = finance.NewPaymentIdempotency(key, resp.Payment.ID, operation, requestHash, snapshot, actor.ID)
		return s.guard.Record(ctx, repos, record)
	})
	if err != nil {
		// the loser of a same-key race fails on the winner's effects
		// (OVERPAYMENT, a unique violation) and answers with its snapshot
		winner, resolveErr := s.guard.ResolveConflict(ctx, key, operation, requestHash)
		if resolveErr == nil {
			return s.replay(ctx, span, operation, key, winner)
		}
		if !shared.IsCode(resolveErr, shared.CodeNotFound) {
			telemetry.RecordError(span, resolveErr)
			return nil, false, resolveErr
		}
		telemetry.RecordError(span, err)
		return nil, false, err
	}
	if replayed {
		s.guard.Remember(ctx, record)
		return s.replay(ctx, span, operation, key, record)
	}

	s.guard.Remember(ctx, record)
	resp, err := decodeSnapshot(record)
	if err != nil {
		return nil, false, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, resp.Payment.ID.String(),
		telemetry.SpanAttrAmount, resp.Payment.Amount.String(),
		telemetry.SpanAttrReplayed, false)
	s.logger.Info("payment created",
		zap.String("payment_id", resp.Payment.ID.String()),
		zap.String("operation", operation),
		zap.String("amount", resp.Payment.Amount.String()),
		zap.String("status", resp.Payment.Status),
		zap.String("idempotency_key", key))
	return resp, false, nil
}

func (s *PaymentService) replay(ctx context.Context, span trace.Span, operation, key string, record *finance.PaymentIdempotency) (*CreatePaymentResponse, bool, error) {
	telemetry.SetAttributes(span, telemetry.SpanAttrReplayed, true)
	resp, err := decodeSnapshot(record)
	if err != nil {
		return nil, false, err
	}
	s.metrics.RecordIdempotentReplay(ctx, operation)
	s.logger.Debug("payment replayed",
		zap.String("operation", operation),
		zap.String("idempotency_key", key),
		zap.String("payment_id", record.PaymentID.String()))
	return resp, true, nil
}

func (s *PaymentService) applyPayment(ctx context.Context, repos txn.TransactionalRepositories, params finance.NewPaymentParams) (*CreatePaymentResponse, error) {
	if params.SaleID == nil {
		return s.recordCredit(ctx, repos, params)
	}

	sale, err := repos.SaleRepo().FindByIDForUpdate(ctx, *params.SaleID)
	if err != nil {
		return nil, err
	}
	if sale.IsDeleted {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Cannot pay a deleted sale").
			WithDetail("sale_id", sale.ID.String())
	}
	if params.CustomerID != nil && (sale.CustomerID == nil || *sale.CustomerID != *params.CustomerID) {
		return nil, shared.NewValidationError("Payment customer does not match the sale customer")
	}
	params.CustomerID = sale.CustomerID

	state, err := s.balances.Aggregator().PaymentStateOf(ctx, repos, sale)
	if err != nil {
		return nil, err
	}
	amount := shared.RoundMoney(params.Amount)
	if amount.GreaterThan(state.Outstanding) {
		return nil, overpayment(sale, state.Outstanding, amount)
	}

	payment, err := finance.NewPayment(params)
	if err != nil {
		return nil, err
	}
	if err := repos.PaymentRepo().Create(ctx, payment); err != nil {
		return nil, err
	}
	allocations := []finance.PaymentAllocation{finance.NewPaymentAllocation(payment.ID, sale.ID, payment.Amount)}
	if err := repos.PaymentAllocationRepo().CreateBatch(ctx, allocations); err != nil {
		return nil, err
	}

	newState, err := s.balances.SyncSale(ctx, repos, sale)
	if err != nil {
		return nil, err
	}
	var customer *partner.Customer
	if sale.CustomerID != nil {
		if customer, err = s.balances.SyncCustomer(ctx, repos, *sale.CustomerID); err != nil {
			return nil, err
		}
	}

	return &CreatePaymentResponse{
		Payment:           ToPaymentResponse(payment),
		Allocations:       ToAllocationResponses(allocations),
		UnallocatedAmount: decimal.Zero,
		Sales:             []SaleBalanceResponse{ToSaleBalanceResponse(sale, newState)},
		Customer:          ToCustomerBalanceResponse(customer),
	}, nil
}

// recordCredit stores a customer payment that is not applied to any invoice
func (s *PaymentService) recordCredit(ctx context.Context, repos txn.TransactionalRepositories, params finance.NewPaymentParams) (*CreatePaymentResponse, error) {
	if _, err := repos.CustomerRepo().FindByID(ctx, *params.CustomerID); err != nil {
		return nil, err
	}
	payment, err := finance.NewPayment(params)
	if err != nil {
		return nil, err
	}
	if err := repos.PaymentRepo().Create(ctx, payment); err != nil {
		return nil, err
	}
	customer, err := s.balances.SyncCustomer(ctx, repos, *params.CustomerID)
	if err != nil {
		return nil, err
	}
	return &CreatePaymentResponse{
		Payment:           ToPaymentResponse(payment),
		Allocations:       []AllocationResponse{},
		UnallocatedAmount: payment.Amount,
		Sales:             []SaleBalanceResponse{},
		Customer:          ToCustomerBalanceResponse(customer),
	}, nil
}

func (s *PaymentService) allocate(ctx context.Context, repos txn.TransactionalRepositories, params finance.NewPaymentParams, saleIDs []uuid.UUID) (*CreatePaymentResponse, error) {
	customerID := *params.CustomerID
	// sales are locked before the customer row; SyncCustomer takes that lock
	if _, err := repos.CustomerRepo().FindByID(ctx, customerID); err != nil {
		return nil, err
	}

	strategyType := finance.AllocationStrategyFIFO
	ids := saleIDs
	if len(ids) > 0 {
		strategyType = finance.AllocationStrategyManual
	} else {
		open, err := repos.SaleRepo().FindOpenByCustomer(ctx, customerID)
		if err != nil {
			return nil, err
		}
		for i := range open {
			ids = append(ids, open[i].ID)
		}
	}

	// lock in id order so concurrent allocations cannot deadlock
	lockOrder := slices.Clone(ids)
	slices.SortFunc(lockOrder, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	lockOrder = slices.Compact(lockOrder)
	sales := make(map[uuid.UUID]*trade.Sale, len(ids))
	for _, id := range lockOrder {
		sale, err := repos.SaleRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		sales[id] = sale
	}

	targets := make([]finance.AllocationTarget, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		sale := sales[id]
		if sale.IsDeleted {
			return nil, shared.NewDomainError(shared.CodeInvalidState, "Cannot pay a deleted sale").
				WithDetail("sale_id", sale.ID.String())
		}
		if sale.CustomerID == nil || *sale.CustomerID != customerID {
			return nil, shared.NewValidationError("Sale does not belong to the customer").
				WithDetail("sale_id", sale.ID.String())
		}
		state, err := s.balances.Aggregator().PaymentStateOf(ctx, repos, sale)
		if err != nil {
			return nil, err
		}
		targets = append(targets, finance.AllocationTarget{
			SaleID:      sale.ID,
			InvoiceNo:   sale.InvoiceNo,
			Outstanding: state.Outstanding,
			InvoiceDate: sale.InvoiceDate,
			CreatedAt:   sale.CreatedAt,
		})
	}

	payment, err := finance.NewPayment(params)
	if err != nil {
		return nil, err
	}
	strategy, err := finance.NewAllocationStrategy(strategyType)
	if err != nil {
		return nil, err
	}
	plan, err := strategy.Allocate(payment.Amount, targets)
	if err != nil {
		return nil, err
	}

	if err := repos.PaymentRepo().Create(ctx, payment); err != nil {
		return nil, err
	}
	allocations := make([]finance.PaymentAllocation, 0, len(plan.Lines))
	for _, line := range plan.Lines {
		allocations = append(allocations, finance.NewPaymentAllocation(payment.ID, line.SaleID, line.Amount))
	}
	if len(allocations) > 0 {
		if err := repos.PaymentAllocationRepo().CreateBatch(ctx, allocations); err != nil {
			return nil, err
		}
	}

	balances := make([]SaleBalanceResponse, 0, len(plan.Lines))
	for _, line := range plan.Lines {
		sale := sales[line.SaleID]
		state, err := s.balances.SyncSale(ctx, repos, sale)
		if err != nil {
			return nil, err
		}
		balances = append(balances, ToSaleBalanceResponse(sale, state))
	}
	customer, err := s.balances.SyncCustomer(ctx, repos, customerID)
	if err != nil {
		return nil, err
	}

	return &CreatePaymentResponse{
		Payment:           ToPaymentResponse(payment),
		Allocations:       ToAllocationResponses(allocations),
		UnallocatedAmount: plan.Remaining,
		Sales:             balances,
		Customer:          ToCustomerBalanceResponse(customer),
	}, nil
}

// UpdatePaymentStatus moves a payment along its status graph. Admin only.
// It returns false when the payment already had the requested status.
func (s *PaymentService) UpdatePaymentStatus(ctx context.Context, paymentID uuid.UUID, status string, actor shared.Actor, expectedRowVersion *int64) (bool, error) {
	if err := actor.RequireAdmin("update_payment_status"); err != nil {
		return false, err
	}
	target := finance.PaymentStatus(status)
	if !target.IsValid() {
		return false, shared.NewValidationError("Invalid payment status").WithDetail("status", status)
	}

	var from finance.PaymentStatus
	changed := false
	err := s.scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
		payment, err := repos.PaymentRepo().FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := payment.CheckRowVersion("Payment", expectedRowVersion); err != nil {
			return err
		}
		from = payment.Status
		changed, err = payment.TransitionTo(target)
		if err != nil || !changed {
			return err
		}

		allocations, err := repos.PaymentAllocationRepo().FindByPayment(ctx, payment.ID)
		if err != nil {
			return err
		}
		if target == finance.PaymentStatusCleared {
			if err := s.checkClearable(ctx, repos, allocations); err != nil {
				return err
			}
		}
		if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
			return err
		}
		if err := s.resync(ctx, repos, payment, allocations); err != nil {
			return err
		}

		entry, err := audit.NewAuditLog(actor, audit.ActionPaymentStatusChanged, audit.EntityPayment, payment.ID, "")
		if err != nil {
			return err
		}
		entry.With("from", string(from)).With("to", string(target))
		return repos.AuditLogRepo().Append(ctx, entry)
	})
	if err != nil {
		return false, err
	}
	if changed {
		s.logger.Info("payment status changed",
			zap.String("payment_id", paymentID.String()),
			zap.String("from", string(from)),
			zap.String("to", string(target)),
			zap.String("actor_id", actor.ID.String()))
	}
	return changed, nil
}

// checkClearable makes sure clearing a pending payment cannot push a sale's
// paid amount above its grand total
func (s *PaymentService) checkClearable(ctx context.Context, repos txn.TransactionalRepositories, allocations []finance.PaymentAllocation) error {
	for _, a := range allocations {
		sale, err := repos.SaleRepo().FindByIDForUpdate(ctx, a.SaleID)
		if err != nil {
			return err
		}
		state, err := s.balances.Aggregator().PaymentStateOf(ctx, repos, sale)
		if err != nil {
			return err
		}
		if state.PaidAmount.Add(a.Amount).GreaterThan(sale.GrandTotal) {
			return overpayment(sale, sale.GrandTotal.Sub(state.PaidAmount), a.Amount)
		}
	}
	return nil
}

// UpdatePayment edits a payment. Admin only. The amount can change only while
// the payment is pending and applied to at most one sale.
func (s *PaymentService) UpdatePayment(ctx context.Context, paymentID uuid.UUID, req UpdatePaymentRequest, actor shared.Actor, expectedRowVersion *int64) (*PaymentResponse, error) {
	if err := actor.RequireAdmin("update_payment"); err != nil {
		return nil, err
	}

	var payment *finance.Payment
	err := s.scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
		var err error
		payment, err = repos.PaymentRepo().FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := payment.CheckRowVersion("Payment", expectedRowVersion); err != nil {
			return err
		}
		if payment.IsDeleted {
			return shared.NewDomainError(shared.CodeInvalidState, "Payment is deleted")
		}

		allocations, err := repos.PaymentAllocationRepo().FindByPayment(ctx, payment.ID)
		if err != nil {
			return err
		}
		oldAmount := payment.Amount
		if req.Amount != nil && !shared.RoundMoney(*req.Amount).Equal(payment.Amount) {
			if err := payment.ChangeAmount(*req.Amount); err != nil {
				return err
			}
			if err := s.reallocate(ctx, repos, payment, oldAmount, allocations); err != nil {
				return err
			}
		}

		var date time.Time
		if req.PaymentDate != nil {
			date = *req.PaymentDate
		}
		if err := payment.UpdateDetails(finance.PaymentMode(req.Mode), req.Reference, date, req.Notes); err != nil {
			return err
		}
		if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
			return err
		}
		if err := s.resync(ctx, repos, payment, allocations); err != nil {
			return err
		}

		entry, err := audit.NewAuditLog(actor, audit.ActionPaymentUpdated, audit.EntityPayment, payment.ID, "")
		if err != nil {
			return err
		}
		entry.With("old_amount", oldAmount.String()).With("new_amount", payment.Amount.String())
		return repos.AuditLogRepo().Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment updated",
		zap.String("payment_id", paymentID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("actor_id", actor.ID.String()))
	resp := ToPaymentResponse(payment)
	return &resp, nil
}

// reallocate follows an amount change of a pending payment into its single
// allocation
func (s *PaymentService) reallocate(ctx context.Context, repos txn.TransactionalRepositories, payment *finance.Payment, oldAmount decimal.Decimal, allocations []finance.PaymentAllocation) error {
	switch len(allocations) {
	case 0:
		return nil
	case 1:
	default:
		return shared.NewDomainError(shared.CodeInvalidState,
			"Amount of a payment split across invoices cannot change; void it and allocate again")
	}

	a := &allocations[0]
	sale, err := repos.SaleRepo().FindByIDForUpdate(ctx, a.SaleID)
	if err != nil {
		return err
	}
	state, err := s.balances.Aggregator().PaymentStateOf(ctx, repos, sale)
	if err != nil {
		return err
	}
	available := state.Outstanding.Add(a.Amount)
	if payment.Amount.GreaterThan(available) {
		return overpayment(sale, available, payment.Amount)
	}
	if !oldAmount.Equal(a.Amount) {
		return shared.NewDomainError(shared.CodeInvalidState, "Payment allocation does not match payment amount")
	}
	if err := repos.PaymentAllocationRepo().UpdateAmount(ctx, a.ID, payment.Amount); err != nil {
		return err
	}
	a.Amount = payment.Amount
	return nil
}

// DeletePayment voids and soft-deletes a payment. Admin only. Deleting an
// already deleted payment returns false.
func (s *PaymentService) DeletePayment(ctx context.Context, paymentID uuid.UUID, actor shared.Actor) (bool, error) {
	if err := actor.RequireAdmin("delete_payment"); err != nil {
		return false, err
	}

	deleted := false
	err := s.scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
		payment, err := repos.PaymentRepo().FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		previous := payment.Status
		if !payment.MarkDeleted(actor, s.now().UTC()) {
			return nil
		}
		if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
			return err
		}
		allocations, err := repos.PaymentAllocationRepo().FindByPayment(ctx, payment.ID)
		if err != nil {
			return err
		}
		if err := s.resync(ctx, repos, payment, allocations); err != nil {
			return err
		}

		entry, err := audit.NewAuditLog(actor, audit.ActionPaymentDeleted, audit.EntityPayment, payment.ID, "")
		if err != nil {
			return err
		}
		entry.With("previous_status", string(previous)).With("amount", payment.Amount.String())
		if err := repos.AuditLogRepo().Append(ctx, entry); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("payment deleted",
			zap.String("payment_id", paymentID.String()),
			zap.String("actor_id", actor.ID.String()))
	}
	return deleted, nil
}

// resync re-derives every cached total a payment contributes to
func (s *PaymentService) resync(ctx context.Context, repos txn.TransactionalRepositories, payment *finance.Payment, allocations []finance.PaymentAllocation) error {
	customerIDs := []*uuid.UUID{payment.CustomerID}
	seen := make(map[uuid.UUID]struct{}, len(allocations))
	for _, a := range allocations {
		if _, ok := seen[a.SaleID]; ok {
			continue
		}
		seen[a.SaleID] = struct{}{}
		sale, err := repos.SaleRepo().FindByIDForUpdate(ctx, a.SaleID)
		if err != nil {
			return err
		}
		if _, err := s.balances.SyncSale(ctx, repos, sale); err != nil {
			return err
		}
		customerIDs = append(customerIDs, sale.CustomerID)
	}
	_, err := s.balances.SyncCustomers(ctx, repos, customerIDs...)
	return err
}

// GetPayment returns a payment with its allocations
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*PaymentDetailResponse, error) {
	repos := s.scope.Repositories()
	payment, err := repos.PaymentRepo().FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	allocations, err := repos.PaymentAllocationRepo().FindByPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return &PaymentDetailResponse{
		PaymentResponse: ToPaymentResponse(payment),
		Allocations:     ToAllocationResponses(allocations),
	}, nil
}

// ListPayments lists payments with filtering and pagination
func (s *PaymentService) ListPayments(ctx context.Context, filter PaymentListFilter) (shared.Paginated[PaymentResponse], error) {
	f := finance.PaymentFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
		}.Normalize(),
		SaleID:         filter.SaleID,
		CustomerID:     filter.CustomerID,
		From:           filter.From,
		To:             filter.To,
		IncludeDeleted: filter.IncludeDeleted,
	}
	if filter.Status != "" {
		st := finance.PaymentStatus(filter.Status)
		f.Status = &st
	}
	if filter.Mode != "" {
		m := finance.PaymentMode(filter.Mode)
		f.Mode = &m
	}

	payments, total, err := s.scope.Repositories().PaymentRepo().FindAll(ctx, f)
	if err != nil {
		return shared.Paginated[PaymentResponse]{}, err
	}
	items := make([]PaymentResponse, len(payments))
	for i := range payments {
		items[i] = ToPaymentResponse(&payments[i])
	}
	return shared.NewPaginated(items, total, f.Page, f.PageSize), nil
}

func (s *PaymentService) paymentParams(saleID, customerID *uuid.UUID, amount decimal.Decimal, mode, status, reference string, paymentDate *time.Time, notes string, actor shared.Actor) (finance.NewPaymentParams, error) {
	if !amount.IsPositive() {
		return finance.NewPaymentParams{}, shared.NewValidationError("Payment amount must be positive")
	}
	params := finance.NewPaymentParams{
		SaleID:     saleID,
		CustomerID: customerID,
		Amount:     amount,
		Mode:       finance.PaymentMode(mode),
		Reference:  reference,
		Notes:      notes,
		CreatedBy:  actor.ID,
	}
	if !params.Mode.IsValid() {
		return finance.NewPaymentParams{}, shared.NewValidationError("Invalid payment mode").WithDetail("mode", mode)
	}
	if status != "" {
		st := finance.PaymentStatus(status)
		params.Status = &st
	}
	params.PaymentDate = s.now().UTC()
	if paymentDate != nil {
		params.PaymentDate = *paymentDate
	}
	if saleID == nil && customerID == nil {
		return finance.NewPaymentParams{}, shared.NewValidationError("A payment requires a sale or a customer")
	}
	return params, nil
}

func decodeSnapshot(record *finance.PaymentIdempotency) (*CreatePaymentResponse, error) {
	var resp CreatePaymentResponse
	if err := json.Unmarshal(record.ResponseSnapshot, &resp); err != nil {
		return nil, fmt.Errorf("decode payment snapshot %s: %w", record.Key, err)
	}
	return &resp, nil
}

func overpayment(sale *trade.Sale, outstanding, amount decimal.Decimal) error {
	return shared.NewDomainError(shared.CodeOverpayment, "Payment exceeds the invoice outstanding amount").
		WithDetail("sale_id", sale.ID.String()).
		WithDetail("invoice_no", sale.InvoiceNo).
		WithDetail("outstanding", outstanding.String()).
		WithDetail("amount", amount.String())
}
