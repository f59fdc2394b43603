package router

import (
	"time"

	"github.com/erp/poscore/internal/infrastructure/logger"
	"github.com/erp/poscore/internal/interfaces/http/handler"
	"github.com/erp/poscore/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers are the HTTP handlers mounted by NewEngine
type Handlers struct {
	Sales          *handler.SaleHandler
	Payments       *handler.PaymentHandler
	Products       *handler.ProductHandler
	Customers      *handler.CustomerHandler
	Reconciliation *handler.ReconciliationHandler
	Health         *handler.HealthHandler
}

// EngineConfig holds the middleware settings of the engine
type EngineConfig struct {
	Authenticator  middleware.Authenticator
	Logger         *zap.Logger
	RequestTimeout time.Duration
	BodyLimit      int64
	Tracing        middleware.TracingConfig
	TrustedProxies []string
}

// NewEngine builds the gin engine with the middleware chain and every route.
// Order matters: the request id must exist before logging, tracing must
// wrap auth so the span sees the actor.
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	bodyLimit := cfg.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = middleware.DefaultBodyLimit
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(
		middleware.RequestID(log),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.Tracing(cfg.Tracing),
		middleware.BodyLimit(bodyLimit),
		middleware.Timeout(cfg.RequestTimeout),
		middleware.Auth(middleware.DefaultAuthConfig(cfg.Authenticator, log)),
		middleware.SpanEnricher(),
	)
	engine.NoRoute(middleware.NoRoute())

	if h.Health != nil {
		engine.GET("/health", h.Health.Health)
	}

	var resources []*Resource
	if h.Health != nil {
		resources = append(resources, NewResource("/health").GET("", h.Health.Health))
	}
	if h.Sales != nil {
		sales := NewResource("/sales").
			POST("", h.Sales.Create).
			POST("/override", h.Sales.CreateWithOverride).
			GET("", h.Sales.List).
			GET("/:id", h.Sales.Get).
			PUT("/:id", h.Sales.Update).
			DELETE("/:id", h.Sales.Delete).
			POST("/:id/unlock", h.Sales.Unlock).
			GET("/:id/versions", h.Sales.ListVersions).
			GET("/:id/versions/:version", h.Sales.GetVersion).
			POST("/:id/versions/:version/restore", h.Sales.RestoreVersion)
		if h.Products != nil {
			sales.POST("/:id/returns", h.Products.ReturnSale)
		}
		resources = append(resources, sales)
	}
	if h.Payments != nil {
		resources = append(resources, NewResource("/payments").
			POST("", h.Payments.Create).
			POST("/allocate", h.Payments.Allocate).
			GET("", h.Payments.List).
			GET("/:id", h.Payments.Get).
			PUT("/:id", h.Payments.Update).
			PATCH("/:id/status", h.Payments.UpdateStatus).
			DELETE("/:id", h.Payments.Delete))
	}
	if h.Products != nil {
		resources = append(resources, NewResource("/products").
			POST("", h.Products.Create).
			GET("", h.Products.List).
			GET("/:id", h.Products.Get).
			POST("/:id/purchases", h.Products.ReceivePurchase).
			POST("/:id/purchase-returns", h.Products.ReturnPurchase).
			POST("/:id/adjustments", h.Products.Adjust).
			PUT("/:id/price", h.Products.ChangePrice).
			POST("/:id/disable", h.Products.Disable).
			GET("/:id/transactions", h.Products.ListTransactions))
	}
	if h.Customers != nil {
		resources = append(resources, NewResource("/customers").
			POST("", h.Customers.Create).
			GET("", h.Customers.List).
			GET("/:id", h.Customers.Get).
			POST("/:id/recompute", h.Customers.Recompute))
	}
	if h.Reconciliation != nil {
		resources = append(resources, NewResource("/reconciliation").
			GET("/report", h.Reconciliation.Report))
	}
	Mount(engine, APIVersion, resources...)
	return engine, nil
}
