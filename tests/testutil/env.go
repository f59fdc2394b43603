package testutil

import (
	"context"
	"testing"
	"time"

	appfinance "github.com/erp/poscore/internal/application/finance"
	appinventory "github.com/erp/poscore/internal/application/inventory"
	apppartner "github.com/erp/poscore/internal/application/partner"
	"github.com/erp/poscore/internal/application/reconciliation"
	apptrade "github.com/erp/poscore/internal/application/trade"
	"github.com/erp/poscore/internal/domain/shared"
	"github.com/erp/poscore/internal/infrastructure/auth"
	"github.com/erp/poscore/internal/infrastructure/cache"
	"github.com/erp/poscore/internal/infrastructure/config"
	"github.com/erp/poscore/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestJWTSecret signs the tokens issued by Env.Token
const TestJWTSecret = "poscore-test-secret-0123456789abcdef"

// Clock is a settable time source shared by the services of an Env
type Clock struct {
	now time.Time
}

// Now returns the current fake time
func (c *Clock) Now() time.Time { return c.now }

// Advance moves the clock forward
func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// Env is a fully wired service graph over a private in-memory database
type Env struct {
	DB             *persistence.Database
	Scope          *persistence.GormTransactionScope
	Clock          *Clock
	ReplayCache    *cache.InMemoryReplayCache
	Sales          *apptrade.SaleService
	Payments       *appfinance.PaymentService
	Inventory      *appinventory.InventoryService
	Customers      *apppartner.CustomerService
	Reconciliation *reconciliation.Service
	JWT            *auth.JWTService
	Admin          shared.Actor
	Staff          shared.Actor
	Logger         *zap.Logger
	Metrics        *Metrics
}

type envOptions struct {
	editWindow time.Duration
	vatRate    decimal.Decimal
	logger     *zap.Logger
}

// Option customizes NewEnv
type Option func(*envOptions)

// WithEditWindow sets the sale edit window
func WithEditWindow(d time.Duration) Option {
	return func(o *envOptions) { o.editWindow = d }
}

// WithDefaultVATRate sets the VAT rate applied when a sale has none
func WithDefaultVATRate(rate decimal.Decimal) Option {
	return func(o *envOptions) { o.vatRate = rate }
}

// WithLogger replaces the zaptest logger, e.g. with an observer core
func WithLogger(l *zap.Logger) Option {
	return func(o *envOptions) { o.logger = l }
}

// NewEnv opens a fresh SQLite database and wires every service the way the
// server does
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()
	o := envOptions{editWindow: 24 * time.Hour}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
	}

	db, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver:   "sqlite",
		DBName:   ":memory:",
		LogLevel: "silent",
	}, log)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	env := newEnv(db, o, log)
	t.Cleanup(func() { _ = env.ReplayCache.Close() })
	return env
}

// NewEnvWithDatabase wires the services over an already migrated database
func NewEnvWithDatabase(t *testing.T, db *persistence.Database, opts ...Option) *Env {
	t.Helper()
	o := envOptions{editWindow: 24 * time.Hour}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
	}
	env := newEnv(db, o, log)
	t.Cleanup(func() { _ = env.ReplayCache.Close() })
	return env
}

func newEnv(db *persistence.Database, o envOptions, log *zap.Logger) *Env {
	clock := &Clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	scope := persistence.NewGormTransactionScope(db.DB)
	aggregator := appfinance.NewBalanceAggregator()
	balances := appfinance.NewBalanceSync(aggregator)
	metrics := newMetrics()
	ledger := appinventory.NewStockLedger()
	ledger.SetBusinessMetrics(metrics.Business)

	replay := cache.NewInMemoryReplayCache()

	payments := appfinance.NewPaymentService(appfinance.PaymentServiceConfig{
		Scope:    scope,
		Guard:    appfinance.NewIdempotencyGuard(scope, replay, time.Hour, log),
		Balances: balances,
		Logger:   log,
		Clock:    clock.Now,
	})
	payments.SetBusinessMetrics(metrics.Business)
	recon := reconciliation.NewService(scope, aggregator, log)
	recon.SetBusinessMetrics(metrics.Business)
	sales := apptrade.NewSaleService(apptrade.SaleServiceConfig{
		Scope:          scope,
		Ledger:         ledger,
		Versions:       apptrade.NewInvoiceVersionStore(),
		Balances:       balances,
		Payments:       payments,
		InvoiceNumbers: apptrade.NewSequenceInvoiceNumberAllocator("sales", "INV-"),
		EditWindow:     o.editWindow,
		DefaultVATRate: o.vatRate,
		Logger:         log,
		Clock:          clock.Now,
	})

	return &Env{
		DB:             db,
		Scope:          scope,
		Clock:          clock,
		ReplayCache:    replay,
		Sales:          sales,
		Payments:       payments,
		Inventory:      appinventory.NewInventoryService(scope, ledger, log),
		Customers:      apppartner.NewCustomerService(scope, balances, log),
		Reconciliation: recon,
		JWT:            auth.NewJWTService(config.JWTConfig{Secret: TestJWTSecret, Issuer: "poscore-test"}),
		Admin:          shared.NewActor(NewTestUUID("admin"), shared.RoleAdmin),
		Staff:          shared.NewActor(NewTestUUID("staff"), shared.RoleStaff),
		Logger:         log,
		Metrics:        metrics,
	}
}

// Token issues an access token for actor
func (e *Env) Token(t *testing.T, actor shared.Actor) string {
	t.Helper()
	token, _, err := e.JWT.IssueToken(actor, actor.ID.String())
	require.NoError(t, err)
	return token
}

// SeedProduct registers a product with opening stock and sell price
func (e *Env) SeedProduct(t *testing.T, sku, stock, price string) *appinventory.ProductResponse {
	t.Helper()
	p, err := e.Inventory.RegisterProduct(context.Background(), appinventory.RegisterProductRequest{
		SKU:          sku,
		Name:         "Product " + sku,
		UnitType:     "pcs",
		CostPrice:    Dec(price).Div(Dec("2")),
		SellPrice:    Dec(price),
		OpeningStock: Dec(stock),
	}, e.Admin)
	require.NoError(t, err)
	return p
}

// SeedCustomer registers a customer. An empty creditLimit means unlimited.
func (e *Env) SeedCustomer(t *testing.T, code, creditLimit string) *apppartner.CustomerResponse {
	t.Helper()
	limit := decimal.Zero
	if creditLimit != "" {
		limit = Dec(creditLimit)
	}
	c, err := e.Customers.RegisterCustomer(context.Background(), apppartner.CreateCustomerRequest{
		Code:        code,
		Name:        "Customer " + code,
		CreditLimit: limit,
	}, e.Staff)
	require.NoError(t, err)
	return c
}

// SellOne creates a finalized sale of qty units of product at its sell price
func (e *Env) SellOne(t *testing.T, productID uuid.UUID, qty, price string, customerID *uuid.UUID) *apptrade.SaleResponse {
	t.Helper()
	sale, err := e.Sales.CreateSale(context.Background(), apptrade.CreateSaleRequest{
		CustomerID: customerID,
		Items: []apptrade.SaleItemRequest{
			{ProductID: productID, Qty: Dec(qty), UnitPrice: Dec(price)},
		},
	}, e.Staff)
	require.NoError(t, err)
	return sale
}

// StockOf reads the current stock of a product
func (e *Env) StockOf(t *testing.T, productID uuid.UUID) decimal.Decimal {
	t.Helper()
	p, err := e.Inventory.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.StockQty
}
