// Command server runs the POS core HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appfinance "github.com/erp/poscore/internal/application/finance"
	appinventory "github.com/erp/poscore/internal/application/inventory"
	apppartner "github.com/erp/poscore/internal/application/partner"
	"github.com/erp/poscore/internal/application/reconciliation"
	apptrade "github.com/erp/poscore/internal/application/trade"
	"github.com/erp/poscore/internal/infrastructure/auth"
	"github.com/erp/poscore/internal/infrastructure/cache"
	"github.com/erp/poscore/internal/infrastructure/config"
	"github.com/erp/poscore/internal/infrastructure/logger"
	"github.com/erp/poscore/internal/infrastructure/persistence"
	"github.com/erp/poscore/internal/infrastructure/scheduler"
	"github.com/erp/poscore/internal/infrastructure/telemetry"
	"github.com/erp/poscore/internal/interfaces/http/handler"
	"github.com/erp/poscore/internal/interfaces/http/middleware"
	"github.com/erp/poscore/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting POS core",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	rootCtx := context.Background()

	tp, err := telemetry.NewTracerProvider(rootCtx, cfg.Telemetry, telemetry.Build{Version: version, Environment: cfg.App.Env}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	mp, err := telemetry.NewMeterProvider(rootCtx, cfg.Telemetry, telemetry.Build{Version: version, Environment: cfg.App.Env}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mp.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()
	businessMetrics, err := telemetry.NewBusinessMetrics(mp.Meter())
	if err != nil {
		log.Fatal("Failed to register business metrics", zap.Error(err))
	}

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Database.IsSQLite() {
		// postgres schemas are owned by cmd/migrate
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}
	dbSystem := "postgresql"
	if cfg.Database.IsSQLite() {
		dbSystem = "sqlite"
	}
	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.App.Env == "development",
		SlowQueryThresh: cfg.Database.SlowThreshold,
		DBSystem:        dbSystem,
	}, log)
	if err := tracing.Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(rootCtx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, continuing without it", zap.Error(err))
			redisClient = nil
		} else {
			defer func() { _ = redisClient.Close() }()
			log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
		}
	}

	cacheOpts := []cache.ReplayCacheFactoryOption{cache.WithLogger(log)}
	if redisClient != nil {
		cacheOpts = append(cacheOpts, cache.WithRedisClient(redisClient))
	}
	replay, closeReplay, err := cache.NewReplayCacheFactory(cfg.Idempotency, cacheOpts...).Create(rootCtx)
	if err != nil {
		log.Fatal("Failed to create payment replay cache", zap.Error(err))
	}
	defer func() { _ = closeReplay() }()

	scope := persistence.NewGormTransactionScope(db.DB)
	aggregator := appfinance.NewBalanceAggregator()
	balances := appfinance.NewBalanceSync(aggregator)
	ledger := appinventory.NewStockLedger()
	ledger.SetBusinessMetrics(businessMetrics)

	payments := appfinance.NewPaymentService(appfinance.PaymentServiceConfig{
		Scope:    scope,
		Guard:    appfinance.NewIdempotencyGuard(scope, replay, cfg.Idempotency.CacheTTL, log),
		Balances: balances,
		Logger:   log,
	})
	payments.SetBusinessMetrics(businessMetrics)
	sales := apptrade.NewSaleService(apptrade.SaleServiceConfig{
		Scope:          scope,
		Ledger:         ledger,
		Versions:       apptrade.NewInvoiceVersionStore(),
		Balances:       balances,
		Payments:       payments,
		InvoiceNumbers: apptrade.NewSequenceInvoiceNumberAllocator("sales", cfg.Trade.InvoicePrefix),
		EditWindow:     cfg.Trade.EditWindow,
		DefaultVATRate: cfg.Trade.DefaultVATRate,
		Logger:         log,
	})
	inventory := appinventory.NewInventoryService(scope, ledger, log)
	customers := apppartner.NewCustomerService(scope, balances, log)
	recon := reconciliation.NewService(scope, aggregator, log)
	recon.SetBusinessMetrics(businessMetrics)
	jwtService := auth.NewJWTService(cfg.JWT)

	var jobs *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		var locker scheduler.JobLocker
		if redisClient != nil {
			locker = scheduler.NewRedisLocker(redisClient)
		}
		schedCfg := scheduler.DefaultConfig()
		if cfg.Scheduler.LockTTL > 0 {
			schedCfg.LockTTL = cfg.Scheduler.LockTTL
		}
		jobs = scheduler.New(schedCfg, locker, log)
		for _, job := range []scheduler.Job{
			scheduler.LockSweepJob(sales, cfg.Scheduler.LockSweepInterval, 0, log),
			scheduler.ReconciliationJob(recon, cfg.Scheduler.ReconciliationInterval, log),
		} {
			if err := jobs.Register(job); err != nil {
				log.Fatal("Failed to register job", zap.String("job", job.Name), zap.Error(err))
			}
		}
		if err := jobs.Start(rootCtx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
	}

	checks := map[string]handler.Pinger{"database": handler.PingerFunc(db.Ping)}
	if redisClient != nil {
		checks["redis"] = handler.PingerFunc(func() error {
			return redisClient.Ping(context.Background()).Err()
		})
	}

	engine, err := router.NewEngine(router.EngineConfig{
		Authenticator:  jwtService,
		Logger:         log,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tp.Enabled(),
		},
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, router.Handlers{
		Sales:          handler.NewSaleHandler(sales),
		Payments:       handler.NewPaymentHandler(payments),
		Products:       handler.NewProductHandler(inventory),
		Customers:      handler.NewCustomerHandler(customers),
		Reconciliation: handler.NewReconciliationHandler(recon),
		Health:         handler.NewHealthHandler(version, checks),
	})
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if jobs != nil {
		if err := jobs.Stop(ctx); err != nil {
			log.Error("Scheduler did not stop cleanly", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}
