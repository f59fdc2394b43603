// Package reconciliation re-derives cached figures from the rows they
// summarize and reports every drift it finds. It never repairs anything.
package reconciliation

import (
	"context"
	"fmt"
	"time"

	appfinance "github.com/erp/poscore/internal/application/finance"
	"github.com/erp/poscore/internal/application/txn"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AlertKind identifies the check that produced an alert
type AlertKind string

const (
	AlertCustomerBalanceMismatch AlertKind = "customer_balance_mismatch"
	AlertSalePaymentMismatch     AlertKind = "sale_payment_mismatch"
	AlertNegativeStock           AlertKind = "negative_stock"
	AlertLedgerMismatch          AlertKind = "ledger_mismatch"
	AlertDuplicateInvoiceNumber  AlertKind = "duplicate_invoice_number"
)

// Severity of an alert
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one finding
type Alert struct {
	Kind       AlertKind  `json:"kind"`
	Severity   Severity   `json:"severity"`
	EntityType string     `json:"entity_type"`
	EntityID   *uuid.UUID `json:"entity_id,omitempty"`
	Message    string     `json:"message"`
	Expected   string     `json:"expected,omitempty"`
	Actual     string     `json:"actual,omitempty"`
}

// Report is the result of one scan
type Report struct {
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	CustomersChecked int       `json:"customers_checked"`
	SalesChecked     int       `json:"sales_checked"`
	ProductsChecked  int       `json:"products_checked"`
	Alerts           []Alert   `json:"alerts"`
}

// Healthy reports whether the scan found nothing
func (r *Report) Healthy() bool {
	return len(r.Alerts) == 0
}

// CountByKind groups alert counts by kind
func (r *Report) CountByKind() map[AlertKind]int {
	out := make(map[AlertKind]int)
	for _, a := range r.Alerts {
		out[a.Kind]++
	}
	return out
}

const scanBatchSize = 100

// Service runs reconciliation scans
type Service struct {
	scope      txn.TransactionScope
	aggregator *appfinance.BalanceAggregator
	logger     *zap.Logger
	metrics    *telemetry.BusinessMetrics
}

// NewService creates a reconciliation Service
func NewService(scope txn.TransactionScope, aggregator *appfinance.BalanceAggregator, logger *zap.Logger) *Service {
	if aggregator == nil {
		aggregator = appfinance.NewBalanceAggregator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{scope: scope, aggregator: aggregator, logger: logger}
}

// SetBusinessMetrics sets the counters alerts are recorded on
func (s *Service) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.metrics = bm
}

// Report runs a scan on behalf of an admin
func (s *Service) Report(ctx context.Context, actor shared.Actor) (*Report, error) {
	if err := actor.RequireAdmin("reconciliation_report"); err != nil {
		return nil, err
	}
	return s.Run(ctx)
}

// Run scans customers, sales, products and invoice numbers. Reads happen
// outside a transaction, so a write racing the scan can produce a transient
// alert that disappears on the next run.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "run")
	defer span.End()

	report := &Report{StartedAt: time.Now().UTC(), Alerts: []Alert{}}
	repos := s.scope.Repositories()

	checks := []func(context.Context, txn.TransactionalRepositories, *Report) error{
		s.checkCustomers,
		s.checkSales,
		s.checkProducts,
		s.checkInvoiceNumbers,
	}
	for _, check := range checks {
		if err := check(ctx, repos, report); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}
	report.FinishedAt = time.Now().UTC()
	telemetry.SetAttributes(span, "alerts", len(report.Alerts), "customers_checked", report.CustomersChecked)

	for _, a := range report.Alerts {
		s.metrics.RecordReconciliationAlert(ctx, string(a.Kind), string(a.Severity))
		fields := []zap.Field{
			zap.String("kind", string(a.Kind)),
			zap.String("severity", string(a.Severity)),
			zap.String("entity_type", a.EntityType),
			zap.String("expected", a.Expected),
			zap.String("actual", a.Actual),
		}
		if a.EntityID != nil {
			fields = append(fields, zap.String("entity_id", a.EntityID.String()))
		}
		s.logger.Warn(a.Message, fields...)
	}
	s.logger.Info("reconciliation finished",
		zap.Int("customers", report.CustomersChecked),
		zap.Int("sales", report.SalesChecked),
		zap.Int("products", report.ProductsChecked),
		zap.Int("alerts", len(report.Alerts)),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

func (s *Service) checkCustomers(ctx context.Context, repos txn.TransactionalRepositories, report *Report) error {
	ids, err := repos.CustomerRepo().FindAllIDs(ctx)
	if err != nil {
		return fmt.Errorf("list customers: %w", err)
	}
	for _, id := range ids {
		customer, err := repos.CustomerRepo().FindByID(ctx, id)
		if err != nil {
			if shared.IsCode(err, shared.CodeNotFound) {
				continue
			}
			return err
		}
		report.CustomersChecked++

		ok, expected, err := s.aggregator.VerifyCustomer(ctx, repos, customer)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		cid := customer.ID
		report.Alerts = append(report.Alerts, Alert{
			Kind:       AlertCustomerBalanceMismatch,
			Severity:   SeverityCritical,
			EntityType: "customer",
			EntityID:   &cid,
			Message:    fmt.Sprintf("customer %s cached totals differ from sale and payment rows", customer.Code),
			Expected:   totals(expected.TotalSales, expected.TotalPayments, expected.PendingBalance),
			Actual:     totals(customer.TotalSales, customer.TotalPayments, customer.PendingBalance),
		})
	}
	return nil
}

func (s *Service) checkSales(ctx context.Context, repos txn.TransactionalRepositories, report *Report) error {
	ids, err := repos.SaleRepo().FindActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("list sales: %w", err)
	}
	for start := 0; start < len(ids); start += scanBatchSize {
		end := min(start+scanBatchSize, len(ids))
		sales, err := repos.SaleRepo().FindByIDs(ctx, ids[start:end])
		if err != nil {
			return err
		}
		for i := range sales {
			sale := &sales[i]
			report.SalesChecked++
			ok, expected, err := s.aggregator.VerifySale(ctx, repos, sale)
			if err != nil {
				return err
			}
			if ok {
				continue
			}
			sid := sale.ID
			report.Alerts = append(report.Alerts, Alert{
				Kind:       AlertSalePaymentMismatch,
				Severity:   SeverityCritical,
				EntityType: "sale",
				EntityID:   &sid,
				Message:    fmt.Sprintf("sale %s paid amount differs from cleared allocations", sale.InvoiceNo),
				Expected:   fmt.Sprintf("paid=%s status=%s", expected.PaidAmount, expected.Status),
				Actual:     fmt.Sprintf("paid=%s status=%s", sale.PaidAmount, sale.PaymentStatus),
			})
		}
	}
	return nil
}

func (s *Service) checkProducts(ctx context.Context, repos txn.TransactionalRepositories, report *Report) error {
	ledger, err := repos.InventoryTransactionRepo().SumByProduct(ctx)
	if err != nil {
		return fmt.Errorf("sum ledger: %w", err)
	}

	filter := shared.Filter{Page: 1, PageSize: scanBatchSize, OrderBy: "created_at", OrderDir: "asc"}
	for {
		products, total, err := repos.ProductRepo().FindAll(ctx, filter)
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}
		for i := range products {
			p := &products[i]
			report.ProductsChecked++
			pid := p.ID
			if p.StockQty.IsNegative() {
				report.Alerts = append(report.Alerts, Alert{
					Kind:       AlertNegativeStock,
					Severity:   SeverityWarning,
					EntityType: "product",
					EntityID:   &pid,
					Message:    fmt.Sprintf("product %s has negative stock", p.SKU),
					Expected:   ">= 0",
					Actual:     p.StockQty.String(),
				})
			}
			sum := ledger[p.ID]
			if !sum.Equal(p.StockQty) {
				report.Alerts = append(report.Alerts, Alert{
					Kind:       AlertLedgerMismatch,
					Severity:   SeverityCritical,
					EntityType: "product",
					EntityID:   &pid,
					Message:    fmt.Sprintf("product %s stock differs from its ledger", p.SKU),
					Expected:   sum.String(),
					Actual:     p.StockQty.String(),
				})
			}
		}
		if int64(filter.Page*filter.PageSize) >= total || len(products) == 0 {
			return nil
		}
		filter.Page++
	}
}

func (s *Service) checkInvoiceNumbers(ctx context.Context, repos txn.TransactionalRepositories, report *Report) error {
	dupes, err := repos.SaleRepo().FindDuplicateInvoiceNumbers(ctx)
	if err != nil {
		return fmt.Errorf("find duplicate invoice numbers: %w", err)
	}
	for _, no := range dupes {
		report.Alerts = append(report.Alerts, Alert{
			Kind:       AlertDuplicateInvoiceNumber,
			Severity:   SeverityCritical,
			EntityType: "sale",
			Message:    fmt.Sprintf("invoice number %s is used by more than one live sale", no),
			Actual:     no,
		})
	}
	return nil
}

func totals(sales, payments, pending decimal.Decimal) string {
	return fmt.Sprintf("sales=%s payments=%s pending=%s", sales, payments, pending)
}
