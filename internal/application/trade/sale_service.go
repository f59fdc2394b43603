package trade

import (
	"context"
	"fmt"
	"strings"
	"time"

	appfinance "github.com/erp/poscore/internal/application/finance"
	appinventory "github.com/erp/poscore/internal/application/inventory"
	"github.com/erp/poscore/internal/application/txn"
	"github.com/erp/poscore/internal/domain/audit"
	"github.com/erp/poscore/internal/domain/inventory"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/internal/domain/trade"
	"github.com/erp/poscore/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultEditWindow is how long a sale stays editable without override
const DefaultEditWindow = 48 * time.Hour

// PaymentApplier records payments inside an open transaction
type PaymentApplier interface {
	ApplyPaymentInTx(ctx context.Context, repos txn.TransactionalRepositories, req appfinance.CreatePaymentRequest, actor shared.Actor) (*appfinance.CreatePaymentResponse, error)
}

// SaleServiceConfig holds the collaborators and settings of SaleService
type SaleServiceConfig struct {
	Scope          txn.TransactionScope
	Ledger         *appinventory.StockLedger
	Versions       *InvoiceVersionStore
	Balances       *appfinance.BalanceSync
	Payments       PaymentApplier
	InvoiceNumbers InvoiceNumberAllocator
	EditWindow     time.Duration
	DefaultVATRate decimal.Decimal
	Logger         *zap.Logger
	Clock          func() time.Time
}

// SaleService is the sale transaction manager. Each operation is a single
// transaction covering the sale, its items, stock movements, invoice
// versions, payments and customer totals.
type SaleService struct {
	scope          txn.TransactionScope
	ledger         *appinventory.StockLedger
	versions       *InvoiceVersionStore
	balances       *appfinance.BalanceSync
	payments       PaymentApplier
	invoiceNumbers InvoiceNumberAllocator
	editWindow     time.Duration
	defaultVATRate decimal.Decimal
	logger         *zap.Logger
	now            func() time.Time
}

// NewSaleService creates a new SaleService
func NewSaleService(cfg SaleServiceConfig) *SaleService {
	s := &SaleService{
		scope:          cfg.Scope,
		ledger:         cfg.Ledger,
		versions:       cfg.Versions,
		balances:       cfg.Balances,
		payments:       cfg.Payments,
		invoiceNumbers: cfg.InvoiceNumbers,
		editWindow:     cfg.EditWindow,
		defaultVATRate: cfg.DefaultVATRate,
		logger:         cfg.Logger,
		now:            cfg.Clock,
	}
	if s.ledger == nil {
		s.ledger = appinventory.NewStockLedger()
	}
	if s.versions == nil {
		s.versions = NewInvoiceVersionStore()
	}
	if s.balances == nil {
		s.balances = appfinance.NewBalanceSync(nil)
	}
	if s.invoiceNumbers == nil {
		s.invoiceNumbers = NewSequenceInvoiceNumberAllocator("", "")
	}
	if s.editWindow <= 0 {
		s.editWindow = DefaultEditWindow
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// EditWindow returns the configured edit window
func (s *SaleService) EditWindow() time.Duration {
	return s.editWindow
}

// CreateSale creates a sale, decrementing stock when finalized
func (s *SaleService) CreateSale(ctx context.Context, req CreateSaleRequest, actor shared.Actor) (*SaleResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	return s.create(ctx, req, actor, "")
}

// CreateSaleWithOverride creates a sale that may take stock below zero.
// Admin only; the reason is stored on the sale and in the audit log.
func (s *SaleService) CreateSaleWithOverride(ctx context.Context, req CreateSaleRequest, actor shared.Actor, overrideReason string) (*SaleResponse, error) {
	if err := actor.RequireAdmin("create_sale_with_override"); err != nil {
		return nil, err
	}
	overrideReason = strings.TrimSpace(overrideReason)
	if overrideReason == "" {
		return nil, shared.NewValidationError("An override reason is required")
	}
	return s.create(ctx, req, actor, overrideReason)
}

func (s *SaleService) create(ctx context.Context, req CreateSaleRequest, actor shared.Actor, overrideReason string) (*SaleResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sale", "create",
		telemetry.SpanAttrActorID, actor.ID.String(),
		"override", overrideReason != "")
	defer span.End()

	content := s.contentFrom(req.InvoiceDate, req.CustomerID, req.VATRate, req.Discount, req.Notes, req.Items)
	if err := content.Validate(); err != nil {
		return nil, err
	}
	finalized := true
	if req.Finalized != nil {
		finalized = *req.Finalized
	}
	externalRef := strings.TrimSpace(req.ExternalReference)
	override := overrideReason != ""

	if externalRef != "" {
		if existing, err := s.findByExternalReference(ctx, externalRef); err != nil || existing != nil {
			return existing, err
		}
	}

	var sale *trade.Sale
	err := s.scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
		if err := s.fillUnitTypes(ctx, repos, content.Items); err != nil {
			return err
		}

		invoiceNo, err := s.invoiceNumbers.Next(ctx, repos)
		if err != nil {
			return err
		}
		sale, err = trade.NewSale(invoiceNo, content, finalized, actor)
		if err != nil {
			return err
		}
		now := s.now()
		sale.CreatedAt, sale.UpdatedAt = now, now
		sale.SetExternalReference(externalRef)
		sale.OverrideReason = overrideReason

		if finalized && sale.CustomerID != nil && !actor.IsPrivileged() {
			if err := s.checkCreditLimit(ctx, repos, *sale.CustomerID, sale.GrandTotal); err != nil {
				return err
			}
		} else if sale.CustomerID != nil {
			if _, err := repos.CustomerRepo().FindByID(ctx, *sale.CustomerID); err != nil {
				return err
			}
		}

		if err := repos.SaleRepo().Create(ctx, sale); err != nil {
			return err
		}

		if finalized {
			deltas := trade.StockDeltas(nil, false, sale.QuantitiesByProduct(), true)
			reason := fmt.Sprintf("Sale %s", sale.InvoiceNo)
			if _, err := s.ledger.ApplyStockChanges(ctx, repos, s.stockChanges(deltas, sale.ID, reason, override, actor)); err != nil {
				return err
			}
		}

		versionReason := "Created"
		if override {
			versionReason = "Created with override: " + overrideReason
		}
		if _, err := s.versions.Snapshot(ctx, repos, SnapshotInput{
			SaleID:        sale.ID,
			VersionNumber: sale.Version,
			EditorID:      actor.ID,
			Reason:        versionReason,
			DiffSummary:   "created",
			State:         trade.NewSaleSnapshot(sale),
		}); err != nil {
			return err
		}

		for _, p := range req.Payments {
			if s.payments == nil {
				return shared.NewDomainError(shared.CodeInternal, "Payments are not available")
			}
			saleID := sale.ID
			if _, err := s.payments.ApplyPaymentInTx(ctx, repos, appfinance.CreatePaymentRequest{
				SaleID:      &saleID,
				Amount:      p.Amount,
				Mode:        p.Mode,
				Status:      p.Status,
				Reference:   p.Reference,
				PaymentDate: p.PaymentDate,
				Notes:       p.Notes,
			}, actor); err != nil {
				return err
			}
		}

		if _, err := s.balances.SyncCustomers(ctx, repos, sale.CustomerID); err != nil {
			return err
		}

		if override {
			entry, err := audit.NewAuditLog(actor, audit.ActionSaleCreatedWithOverride, audit.EntitySale, sale.ID, overrideReason)
			if err != nil {
				return err
			}
			entry.With("invoice_no", sale.InvoiceNo).With("grand_total", sale.GrandTotal.String())
			if err := repos.AuditLogRepo().Append(ctx, entry); err != nil {
				return err
			}
		}

		sale, err = repos.SaleRepo().FindByID(ctx, sale.ID)
		return err
	})
	if err != nil {
		if externalRef != "" && shared.IsCode(err, shared.CodeDuplicateExternalReference) {
			if existing, findErr := s.findByExternalReference(ctx, externalRef); findErr == nil && existing != nil {
				return existing, nil
			}
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrSaleID, sale.ID.String(),
		telemetry.SpanAttrInvoiceNo, sale.InvoiceNo,
		telemetry.SpanAttrAmount, sale.GrandTotal.String())
	s.logger.Info("sale created",
		zap.String("sale_id", sale.ID.String()),
		zap.String("invoice_no", sale.InvoiceNo),
		zap.Bool("finalized", sale.IsFinalized),
		zap.Bool("override", override),
		zap.String("grand_total", sale.GrandTotal.String()),
		zap.String("actor_id", actor.ID.String()))
	resp := s.toResponse(sale)
	return &resp, nil
}

// findByExternalReference returns the live sale created for ref, marked as a
// replay. A deleted sale still owns the reference.
func (s *SaleService) findByExternalReference(ctx context.Context, ref string) (*SaleResponse, error) {
	existing, err := s.scope.Repositories().SaleRepo().FindByExternalReference(ctx, ref)
	if err != nil {
		if shared.IsCode(err, shared.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if existing.IsDeleted {
		return nil, shared.NewDomainError(shared.CodeDuplicateExternalReference,
			"External reference belongs to a deleted sale").
			WithDetail("external_reference", ref).
			WithDetail("sale_id", existing.ID.String())
	}
	resp := s.toResponse(existing)
	resp.Replayed = true
	return &resp, nil
}

// UpdateSale replaces the content of a sale. The stock effect of the old
// content is reversed and the new one applied in one pass, the payment state
// and customer totals are re-derived, and a new invoice version is appended.
func (s *SaleService) UpdateSale(ctx context.Context, saleID uuid.UUID, req UpdateSaleRequest, actor shared.Actor, editReason string, expectedRowVersion *int64) (*SaleResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	content := s.contentFrom(req.InvoiceDate, req.CustomerID, req.VATRate, req.Discount, req.Notes, req.Items)
	if err := content.Validate(); err != nil {
		return nil, err
	}

	sale, err := s.update(ctx, saleID, content, req.Finalized, actor, editReason, expectedRowVersion, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info("sale updated",
		zap.String("sale_id", sale.ID.String()),
		zap.Int("version", sale.Version),
		zap.String("grand_total", sale.GrandTotal.String()),
		zap.String("actor_id", actor.ID.String()))
	resp := s.toResponse(sale)
	return &resp, nil
}

func (s *SaleService) update(
	ctx context.Context,
	saleID uuid.UUID,
	content trade.SaleContent,
	finalized *bool,
	actor shared.Actor,
	editReason string,
	expectedRowVersion *int64,
	afterSave func(repos txn.TransactionalRepositories, sale *trade.Sale) error,
) (*trade.Sale, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sale", "update",
		telemetry.SpanAttrSaleID, saleID.String(),
		telemetry.SpanAttrActorID, actor.ID.String())
	defer span.End()

	var sale *trade.Sale
	err := s.scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
		var err error
		sale, err = repos.SaleRepo().FindByIDForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if err := sale.CheckRowVersion("Sale", expectedRowVersion); err != nil {
			return err
		}
		if err := sale.CheckEditable(actor, editReason, s.now(), s.editWindow); err != nil {
			return err
		}
		if err := s.fillUnitTypes(ctx, repos, content.Items); err != nil {
			return err
		}

		before := trade.NewSaleSnapshot(sale)
		oldQty := sale.QuantitiesByProduct()
		oldFinalized := sale.IsFinalized
		oldGrandTotal := sale.GrandTotal
		oldCustomer := copyID(sale.CustomerID)

		finalize := sale.IsFinalized
		if finalized != nil {
			finalize = *finalized
		}
		if err := sale.Edit(content, finalize, actor); err != nil {
			return err
		}

		committed, err := repos.PaymentAllocationRepo().SumActiveBySale(ctx, sale.ID)
		if err != nil {
			return err
		}
		if sale.GrandTotal.LessThan(committed) {
			return shared.NewValidationError("Grand total cannot fall below the amount already paid").
				WithDetail("reason", "GRAND_TOTAL_BELOW_PAID").
				WithDetail("grand_total", sale.GrandTotal.String()).
				WithDetail("paid", committed.String())
		}

		if sale.CustomerID != nil {
			increase := sale.GrandTotal
			if sameID(oldCustomer, sale.CustomerID) {
				increase = sale.GrandTotal.Sub(oldGrandTotal)
			}
			if sale.IsFinalized && increase.IsPositive() && !actor.IsPrivileged() {
				if err := s.checkCreditLimit(ctx, repos, *sale.CustomerID, increase); err != nil {
					return err
				}
			} else if _, err := repos.CustomerRepo().FindByID(ctx, *sale.CustomerID); err != nil {
				return err
			}
		}

		deltas := trade.StockDeltas(oldQty, oldFinalized, sale.QuantitiesByProduct(), sale.IsFinalized)
		reason := fmt.Sprintf("Sale %s edited", sale.InvoiceNo)
		if _, err := s.ledger.ApplyStockChanges(ctx, repos, s.stockChanges(deltas, sale.ID, reason, false, actor)); err != nil {
			return err
		}

		if err := repos.SaleRepo().UpdateWithLock(ctx, sale); err != nil {
			return err
		}
		if _, err := s.balances.SyncSale(ctx, repos, sale); err != nil {
			return err
		}
		if _, err := s.balances.SyncCustomers(ctx, repos, oldCustomer, sale.CustomerID); err != nil {
			return err
		}

		after := trade.NewSaleSnapshot(sale)
		if _, err := s.versions.Snapshot(ctx, repos, SnapshotInput{
			SaleID:        sale.ID,
			VersionNumber: sale.Version,
			EditorID:      actor.ID,
			Reason:        strings.TrimSpace(editReason),
			DiffSummary:   trade.DiffSummary(before, after),
			State:         after,
		}); err != nil {
			return err
		}

		if afterSave != nil {
			if err := afterSave(repos, sale); err != nil {
				return err
			}
		}

		sale, err = repos.SaleRepo().FindByID(ctx, sale.ID)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, "version", sale.Version, telemetry.SpanAttrAmount, sale.GrandTotal.String())
	return sale, nil
}

// RestoreVersion makes an earlier version current again by editing the sale
// back to that content. History is kept: the restore is a new version.
func (s *SaleService) RestoreVersion(ctx context.Context, saleID uuid.UUID, versionNumber int, actor shared.Actor, expectedRowVersion *int64) (*SaleResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	version, err := s.versions.GetVersion(ctx, s.scope.Repositories(), saleID, versionNumber)
	if err != nil {
		return nil, err
	}
	snap, err := version.DecodeSnapshot()
	if err != nil {
		return nil, err
	}

	reason := fmt.Sprintf("Restored from version %d", versionNumber)
	finalized := snap.IsFinalized
	sale, err := s.update(ctx, saleID, snap.Content(), &finalized, actor, reason, expectedRowVersion,
		func(repos txn.TransactionalRepositories, sale *trade.Sale) error {
			entry, err := audit.NewAuditLog(actor, audit.ActionSaleRestored, audit.EntitySale, sale.ID, reason)
			if err != nil {
				return err
			}
			entry.With("restored_version", versionNumber).With("new_version", sale.Version)
			return repos.AuditLogRepo().Append(ctx, entry)
		})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sale version restored",
		zap.String("sale_id", saleID.String()),
		zap.Int("restored_version", versionNumber),
		zap.Int("version", sale.Version),
		zap.String("actor_id", actor.ID.String()))
	resp := s.toResponse(sale)
	return &resp, nil
}

// DeleteSale soft-deletes a sale and gives its stock back. Admin only.
// Deleting a sale twice returns false the second time.
func (s *SaleService) DeleteSale(ctx context.Context, saleID uuid.UUID, actor shared.Actor) (bool, error) {
	if err := actor.RequireAdmin("delete_sale"); err != nil {
		return false, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "sale", "delete",
		telemetry.SpanAttrSaleID, saleID.String(),
		telemetry.SpanAttrActorID, actor.ID.String())
	defer span.End()

	deleted := false
	var invoiceNo string
	err := s.scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
		sale, err := repos.SaleRepo().FindByIDForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		invoiceNo = sale.InvoiceNo
		if !sale.MarkDeleted(actor, s.now()) {
			return nil
		}

		if sale.IsFinalized {
			deltas := trade.StockDeltas(sale.QuantitiesByProduct(), true, nil, false)
			reason := fmt.Sprintf("Sale %s deleted", sale.InvoiceNo)
			if _, err := s.ledger.ApplyStockChanges(ctx, repos, s.stockChanges(deltas, sale.ID, reason, false, actor)); err != nil {
				return err
			}
		}
		if err := repos.SaleRepo().UpdateHeaderWithLock(ctx, sale); err != nil {
			return err
		}
		if _, err := s.balances.SyncCustomers(ctx, repos, sale.CustomerID); err != nil {
			return err
		}

		entry, err := audit.NewAuditLog(actor, audit.ActionSaleDeleted, audit.EntitySale, sale.ID, "")
		if err != nil {
			return err
		}
		entry.With("invoice_no", sale.InvoiceNo).
			With("grand_total", sale.GrandTotal.String()).
			With("stock_restored", sale.IsFinalized)
		if err := repos.AuditLogRepo().Append(ctx, entry); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return false, err
	}
	telemetry.SetAttributes(span, "deleted", deleted)
	if deleted {
		s.logger.Info("sale deleted",
			zap.String("sale_id", saleID.String()),
			zap.String("invoice_no", invoiceNo),
			zap.String("actor_id", actor.ID.String()))
	}
	return deleted, nil
}

// UnlockInvoice reopens a locked sale for editing. Admin only. The edit
// window restarts from now. It returns false if the sale was not locked.
func (s *SaleService) UnlockInvoice(ctx context.Context, saleID uuid.UUID, actor shared.Actor, reason string) (bool, error) {
	if err := actor.RequireAdmin("unlock_invoice"); err != nil {
		return false, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return false, shared.NewValidationError("An unlock reason is required")
	}

	unlocked := false
	err := s.scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
		sale, err := repos.SaleRepo().FindByIDForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.IsDeleted {
			return shared.NewDomainError(shared.CodeInvalidState, "Sale is deleted").
				WithDetail("sale_id", sale.ID.String())
		}
		lockedAt := sale.LockedAt
		if !sale.Unlock(s.now(), s.editWindow) {
			return nil
		}
		if err := repos.SaleRepo().UpdateHeaderWithLock(ctx, sale); err != nil {
			return err
		}

		entry, err := audit.NewAuditLog(actor, audit.ActionSaleUnlocked, audit.EntitySale, sale.ID, reason)
		if err != nil {
			return err
		}
		if lockedAt != nil {
			entry.With("locked_at", lockedAt.Format(time.RFC3339))
		}
		entry.With("invoice_no", sale.InvoiceNo)
		if err := repos.AuditLogRepo().Append(ctx, entry); err != nil {
			return err
		}
		unlocked = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if unlocked {
		s.logger.Info("sale unlocked",
			zap.String("sale_id", saleID.String()),
			zap.String("reason", reason),
			zap.String("actor_id", actor.ID.String()))
	}
	return unlocked, nil
}

// LockExpired flags sales whose edit window has closed. Each sale is locked
// in its own transaction; a sale changed concurrently is left for the next run.
func (s *SaleService) LockExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 500
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "sale", "lock_expired")
	defer span.End()

	candidates, err := s.scope.Repositories().SaleRepo().FindLockCandidates(ctx, now.Add(-s.editWindow), limit)
	if err != nil {
		return 0, err
	}

	locked := 0
	for i := range candidates {
		id := candidates[i].ID
		changed := false
		err := s.scope.Execute(ctx, func(repos txn.TransactionalRepositories) error {
			sale, err := repos.SaleRepo().FindByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if sale.IsDeleted || !sale.IsEditLocked(now, s.editWindow) || !sale.Lock(now) {
				return nil
			}
			changed = true
			return repos.SaleRepo().UpdateHeaderWithLock(ctx, sale)
		})
		if err != nil {
			if shared.IsCode(err, shared.CodeConcurrencyConflict) {
				s.logger.Debug("sale changed while locking, skipped", zap.String("sale_id", id.String()))
				continue
			}
			telemetry.RecordError(span, err)
			return locked, err
		}
		if changed {
			locked++
		}
	}
	telemetry.SetAttributes(span, "candidates", len(candidates), "locked", locked)
	return locked, nil
}

// GetSale returns a sale, including a soft-deleted one
func (s *SaleService) GetSale(ctx context.Context, saleID uuid.UUID) (*SaleResponse, error) {
	sale, err := s.scope.Repositories().SaleRepo().FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(sale)
	return &resp, nil
}

// ListSales lists sales with filtering and pagination
func (s *SaleService) ListSales(ctx context.Context, filter SaleListFilter) (shared.Paginated[SaleResponse], error) {
	f := trade.SaleFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		}.Normalize(),
		CustomerID:     filter.CustomerID,
		Finalized:      filter.Finalized,
		From:           filter.From,
		To:             filter.To,
		IncludeDeleted: filter.IncludeDeleted,
	}
	if filter.PaymentStatus != "" {
		st := trade.PaymentStatus(filter.PaymentStatus)
		f.PaymentStatus = &st
	}

	sales, total, err := s.scope.Repositories().SaleRepo().FindAll(ctx, f)
	if err != nil {
		return shared.Paginated[SaleResponse]{}, err
	}
	items := make([]SaleResponse, len(sales))
	for i := range sales {
		items[i] = s.toResponse(&sales[i])
	}
	return shared.NewPaginated(items, total, f.Page, f.PageSize), nil
}

// ListVersions lists the invoice versions of a sale, oldest first
func (s *SaleService) ListVersions(ctx context.Context, saleID uuid.UUID) ([]InvoiceVersionResponse, error) {
	repos := s.scope.Repositories()
	if _, err := repos.SaleRepo().FindByID(ctx, saleID); err != nil {
		return nil, err
	}
	versions, err := s.versions.ListVersions(ctx, repos, saleID)
	if err != nil {
		return nil, err
	}
	out := make([]InvoiceVersionResponse, 0, len(versions))
	for i := range versions {
		resp, err := ToInvoiceVersionResponse(&versions[i], false)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, nil
}

// GetVersion returns one invoice version with its snapshot
func (s *SaleService) GetVersion(ctx context.Context, saleID uuid.UUID, versionNumber int) (*InvoiceVersionResponse, error) {
	version, err := s.versions.GetVersion(ctx, s.scope.Repositories(), saleID, versionNumber)
	if err != nil {
		return nil, err
	}
	resp, err := ToInvoiceVersionResponse(version, true)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *SaleService) contentFrom(invoiceDate *time.Time, customerID *uuid.UUID, vatRate *decimal.Decimal, discount decimal.Decimal, notes string, items []SaleItemRequest) trade.SaleContent {
	c := trade.SaleContent{
		CustomerID: customerID,
		VATRate:    s.defaultVATRate,
		Discount:   discount,
		Notes:      notes,
		Items:      toItemInputs(items),
	}
	c.InvoiceDate = s.now().UTC()
	if invoiceDate != nil {
		c.InvoiceDate = invoiceDate.UTC()
	}
	if vatRate != nil {
		c.VATRate = *vatRate
	}
	return c
}

// fillUnitTypes checks that every product exists and defaults missing unit
// types from the product
func (s *SaleService) fillUnitTypes(ctx context.Context, repos txn.TransactionalRepositories, items []trade.SaleItemInput) error {
	ids := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	products, err := repos.ProductRepo().FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	units := make(map[uuid.UUID]string, len(products))
	for _, p := range products {
		units[p.ID] = p.UnitType
	}
	for i := range items {
		unit, ok := units[items[i].ProductID]
		if !ok {
			return shared.NewNotFoundError("Product", items[i].ProductID)
		}
		if items[i].UnitType == "" {
			items[i].UnitType = unit
		}
	}
	return nil
}

func (s *SaleService) checkCreditLimit(ctx context.Context, repos txn.TransactionalRepositories, customerID uuid.UUID, amount decimal.Decimal) error {
	customer, err := repos.CustomerRepo().FindByID(ctx, customerID)
	if err != nil {
		return err
	}
	if customer.ExceedsCreditLimit(amount) {
		return shared.NewDomainError(shared.CodeCreditLimitExceeded, "Sale exceeds the customer credit limit").
			WithDetail("customer_id", customerID.String()).
			WithDetail("credit_limit", customer.CreditLimit.String()).
			WithDetail("pending_balance", customer.PendingBalance.String()).
			WithDetail("amount", amount.String())
	}
	return nil
}

func (s *SaleService) stockChanges(deltas []trade.ProductDelta, saleID uuid.UUID, reason string, override bool, actor shared.Actor) []appinventory.StockChange {
	changes := make([]appinventory.StockChange, 0, len(deltas))
	for _, d := range deltas {
		changes = append(changes, appinventory.StockChange{
			ProductID:   d.ProductID,
			Delta:       d.Delta,
			Type:        inventory.TransactionTypeSale,
			ReferenceID: saleID,
			Reason:      reason,
			Override:    override,
			ActorID:     actor.ID,
		})
	}
	return changes
}

func (s *SaleService) toResponse(sale *trade.Sale) SaleResponse {
	return ToSaleResponse(sale, s.editWindow, s.now())
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
