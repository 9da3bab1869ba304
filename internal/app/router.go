package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/dashboard"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/partners"
	"github.com/meridian-erp/meridian-erp/internal/payroll"
	"github.com/meridian-erp/meridian-erp/internal/purchasing"
	"github.com/meridian-erp/meridian-erp/internal/sales/deliveries"
	"github.com/meridian-erp/meridian-erp/internal/sales/invoices"
	"github.com/meridian-erp/meridian-erp/internal/sales/orders"
	"github.com/meridian-erp/meridian-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	LedgerHandler     *ledger.Handler
	InventoryHandler  *inventory.Handler
	CatalogHandler    *catalog.Handler
	PartnersHandler   *partners.Handler
	OrdersHandler     *orders.Handler
	DeliveriesHandler *deliveries.Handler
	InvoicesHandler   *invoices.Handler
	PurchasingHandler *purchasing.Handler
	PayrollHandler    *payroll.Handler
	DashboardHandler  *dashboard.Handler
	JobsHandler       *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	params.LedgerHandler.MountRoutes(r)
	params.InventoryHandler.MountRoutes(r)
	params.CatalogHandler.MountRoutes(r)
	params.PartnersHandler.MountRoutes(r)
	params.OrdersHandler.MountRoutes(r)
	params.DeliveriesHandler.MountRoutes(r)
	params.InvoicesHandler.MountRoutes(r)
	params.PurchasingHandler.MountRoutes(r)
	params.PayrollHandler.MountRoutes(r)
	params.DashboardHandler.MountRoutes(r)
	if params.JobsHandler != nil {
		params.JobsHandler.MountRoutes(r)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
