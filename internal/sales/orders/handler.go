package orders

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes sales order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the sales order handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sales order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/sales/orders", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/confirm", h.handleConfirm)
		r.Post("/{id}/cancel", h.handleCancel)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in CreateOrderInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	order, err := h.service.Create(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Status: Status(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer_id")
			return
		}
		filter.CustomerID = id
	}
	out, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int64) (any, int, error) {
		order, err := h.service.Get(r.Context(), id)
		return order, http.StatusOK, err
	})
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int64) (any, int, error) {
		order, err := h.service.Confirm(r.Context(), id)
		return order, http.StatusOK, err
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int64) (any, int, error) {
		order, err := h.service.Cancel(r.Context(), id)
		return order, http.StatusOK, err
	})
}

func (h *Handler) withID(w http.ResponseWriter, r *http.Request, fn func(id int64) (any, int, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	body, status, err := fn(id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, status, body)
}
