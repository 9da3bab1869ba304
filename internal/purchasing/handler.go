package purchasing

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes purchasing endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the purchasing handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers purchasing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/purchasing/orders", func(r chi.Router) {
		r.Post("/", h.handleCreateOrder)
		r.Get("/", h.handleListOrders)
		r.Get("/{id}", h.orderAction(h.service.GetOrder))
		r.Post("/{id}/confirm", h.orderAction(h.service.ConfirmOrder))
		r.Post("/{id}/receive", h.orderAction(h.service.ReceiveOrder))
		r.Post("/{id}/cancel", h.orderAction(h.service.CancelOrder))
	})
	r.Route("/purchasing/invoices", func(r chi.Router) {
		r.Post("/", h.handleCreateInvoice)
		r.Get("/", h.handleListInvoices)
		r.Get("/{id}", h.invoiceAction(h.service.GetInvoice))
		r.Post("/{id}/receive", h.invoiceAction(h.service.MarkInvoiceReceived))
		r.Post("/{id}/pay", h.invoiceAction(h.service.MarkInvoicePaid))
		r.Post("/{id}/cancel", h.invoiceAction(h.service.CancelInvoice))
	})
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var in CreateOrderInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	order, err := h.service.CreateOrder(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	filter := POFilter{Status: POStatus(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("vendor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid vendor_id")
			return
		}
		filter.VendorID = id
	}
	out, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var in CreateInvoiceInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	invoice, err := h.service.CreateInvoice(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	filter := VIFilter{Status: VIStatus(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("vendor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid vendor_id")
			return
		}
		filter.VendorID = id
	}
	out, err := h.service.ListInvoices(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) orderAction(fn func(context.Context, int64) (PurchaseOrder, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
			return
		}
		order, err := fn(r.Context(), id)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		httpx.JSON(w, http.StatusOK, order)
	}
}

func (h *Handler) invoiceAction(fn func(context.Context, int64) (VendorInvoice, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
			return
		}
		invoice, err := fn(r.Context(), id)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		httpx.JSON(w, http.StatusOK, invoice)
	}
}
