package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes inventory endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Post("/movements", h.handleAdjust)
		r.Get("/movements", h.handleListMovements)
		r.Get("/low-stock", h.handleLowStock)
	})
}

type movementRequest struct {
	ProductID      int64           `json:"product_id"`
	Kind           string          `json:"kind"`
	Quantity       decimal.Decimal `json:"quantity"`
	TargetQuantity decimal.Decimal `json:"target_quantity"`
	Reason         string          `json:"reason"`
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	movement, err := h.service.AdjustStock(r.Context(), MovementInput{
		ProductID:      req.ProductID,
		Kind:           MovementKind(req.Kind),
		Quantity:       req.Quantity,
		TargetQuantity: req.TargetQuantity,
		Reason:         req.Reason,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	filter := MovementFilter{Limit: 200}
	if raw := r.URL.Query().Get("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product_id")
			return
		}
		filter.ProductID = id
	}
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.LowStockReport(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}
