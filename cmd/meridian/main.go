package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/dashboard"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/partners"
	"github.com/meridian-erp/meridian-erp/internal/payroll"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/purchasing"
	"github.com/meridian-erp/meridian-erp/internal/sales/deliveries"
	"github.com/meridian-erp/meridian-erp/internal/sales/invoices"
	"github.com/meridian-erp/meridian-erp/internal/sales/orders"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Dashboard caching is optional; the API works without redis.
		logger.Warn("connect redis", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	auditLogger := shared.NewAuditLogger(pool)

	numbers := numbering.NewService(numbering.NewRepository(pool))

	ledgerRepo := ledger.NewPgRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, numbers, auditLogger)
	poster := ledgerService.Poster()

	inventoryRepo := inventory.NewPgRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, inventory.ServiceConfig{
		AllowNegativeStock: cfg.AllowNegativeStock,
	})
	applier := inventoryService.Applier()

	catalogService := catalog.NewService(catalog.NewPgRepository(pool), ledgerRepo, auditLogger)
	partnersService := partners.NewService(partners.NewPgRepository(pool), auditLogger)

	ordersService := orders.NewService(orders.NewPgRepository(pool), partnersService, catalogService, numbers, auditLogger)
	deliveriesService := deliveries.NewService(deliveries.NewPgRepository(pool), catalogService, numbers, applier, auditLogger)
	invoicesService := invoices.NewService(invoices.NewPgRepository(pool), ordersService, partnersService,
		catalogService, ledgerRepo, numbers, poster, invoices.AccountCodes{
			Receivable:     cfg.AccountReceivable,
			TaxPayable:     cfg.AccountTaxPayable,
			DefaultRevenue: cfg.AccountDefaultRevenue,
		}, auditLogger)

	purchasingService := purchasing.NewService(purchasing.NewPgRepository(pool), partnersService,
		catalogService, numbers, applier, auditLogger)

	payrollService := payroll.NewService(payroll.NewPgRepository(pool), partnersService, ledgerRepo,
		numbers, poster, payroll.AccountCodes{
			SalaryExpense: cfg.AccountSalaryExpense,
			SalaryPayable: cfg.AccountSalaryPayable,
		}, auditLogger)

	dashboardService := dashboard.NewService(dashboard.NewPgRepository(pool), redisClient, cfg.DashboardCacheTTL)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger: logger,
		Config: cfg,

		LedgerHandler:     ledger.NewHandler(logger, ledgerService),
		InventoryHandler:  inventory.NewHandler(logger, inventoryService),
		CatalogHandler:    catalog.NewHandler(logger, catalogService),
		PartnersHandler:   partners.NewHandler(logger, partnersService),
		OrdersHandler:     orders.NewHandler(logger, ordersService),
		DeliveriesHandler: deliveries.NewHandler(logger, deliveriesService),
		InvoicesHandler:   invoices.NewHandler(logger, invoicesService),
		PurchasingHandler: purchasing.NewHandler(logger, purchasingService),
		PayrollHandler:    payroll.NewHandler(logger, payrollService),
		DashboardHandler:  dashboard.NewHandler(logger, dashboardService),
		JobsHandler:       jobs.NewHandler(inspector, jobsClient, logger),

		Metrics: metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
