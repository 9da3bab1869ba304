package deliveries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/sales/orders"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository abstracts persistence for the service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Delivery, error)
	List(ctx context.Context, filter ListFilter) ([]Delivery, error)
}

// TxRepository exposes delivery and order operations inside a shipping
// transaction. Order queries are duplicated here because shipping needs
// them in transaction context.
type TxRepository interface {
	InsertDelivery(ctx context.Context, delivery Delivery) (int64, error)
	GetDeliveryForUpdate(ctx context.Context, id int64) (Delivery, error)
	SetDeliveryStatus(ctx context.Context, id int64, status Status, actualDate *time.Time) error
	GetOrderForUpdate(ctx context.Context, orderID int64) (orders.SalesOrder, error)
	AddDeliveredQuantity(ctx context.Context, orderLineID int64, quantity decimal.Decimal) error
	SetOrderStatus(ctx context.Context, orderID int64, status orders.Status) error
	Stock() inventory.TxRepository
}

// ProductPort resolves products referenced by delivery lines.
type ProductPort interface {
	Get(ctx context.Context, id int64) (catalog.Product, error)
}

// NumberSource issues document numbers.
type NumberSource interface {
	Next(ctx context.Context, docType numbering.DocType) (string, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CreateLineInput requests shipping part of one order line.
type CreateLineInput struct {
	OrderLineID int64           `json:"order_line_id"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// CreateInput groups fields for creating a delivery.
type CreateInput struct {
	OrderID     int64             `json:"order_id"`
	PlannedDate string            `json:"planned_date"`
	Notes       string            `json:"notes"`
	Lines       []CreateLineInput `json:"lines"`
}

// Service coordinates delivery operations.
type Service struct {
	repo     Repository
	products ProductPort
	numbers  NumberSource
	applier  *inventory.TxApplier
	audit    AuditPort
	now      func() time.Time
}

// NewService builds Service. The applier carries the negative stock
// policy shared with direct inventory adjustments.
func NewService(repo Repository, products ProductPort, numbers NumberSource, applier *inventory.TxApplier, audit AuditPort) *Service {
	return &Service{
		repo:     repo,
		products: products,
		numbers:  numbers,
		applier:  applier,
		audit:    audit,
		now:      time.Now,
	}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create builds a ready delivery for an order. Only goods lines with
// remaining quantity can ship; services are never delivered.
func (s *Service) Create(ctx context.Context, in CreateInput) (Delivery, error) {
	if in.OrderID == 0 {
		return Delivery{}, shared.Validation("order_id", "required")
	}
	if len(in.Lines) == 0 {
		return Delivery{}, shared.Validation("lines", "a delivery needs at least one line")
	}
	var plannedDate time.Time
	if in.PlannedDate != "" {
		parsed, err := time.Parse("2006-01-02", in.PlannedDate)
		if err != nil {
			return Delivery{}, shared.Validation("planned_date", "expected YYYY-MM-DD")
		}
		plannedDate = parsed
	} else {
		plannedDate = s.now().UTC()
	}

	var deliveryID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, in.OrderID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return &shared.ReferentialIntegrityError{Entity: "sales_order", ID: in.OrderID}
			}
			return err
		}
		if order.Status != orders.StatusConfirmed && order.Status != orders.StatusPartiallyDelivered {
			return &shared.InvalidTransitionError{Entity: "sales_order", ID: order.ID, Status: string(order.Status), Op: "deliver"}
		}

		orderLines := make(map[int64]orders.OrderLine, len(order.Lines))
		for _, line := range order.Lines {
			orderLines[line.ID] = line
		}

		delivery := Delivery{
			OrderID:     in.OrderID,
			Status:      StatusReady,
			PlannedDate: plannedDate,
			Notes:       in.Notes,
		}
		for idx, lineIn := range in.Lines {
			orderLine, ok := orderLines[lineIn.OrderLineID]
			if !ok {
				return shared.Validation("lines", fmt.Sprintf("line %d: order line %d does not belong to order %d", idx, lineIn.OrderLineID, in.OrderID))
			}
			if !lineIn.Quantity.IsPositive() {
				return shared.Validation("lines", fmt.Sprintf("line %d: quantity must be positive", idx))
			}
			if lineIn.Quantity.GreaterThan(orderLine.Remaining()) {
				return shared.Validation("lines", fmt.Sprintf("line %d: quantity %s exceeds remaining %s", idx, lineIn.Quantity, orderLine.Remaining()))
			}
			product, err := s.products.Get(ctx, orderLine.ProductID)
			if err != nil {
				return err
			}
			if product.Kind != catalog.KindGoods {
				return shared.Validation("lines", fmt.Sprintf("line %d: services cannot be delivered", idx))
			}
			delivery.Lines = append(delivery.Lines, DeliveryLine{
				OrderLineID: orderLine.ID,
				ProductID:   orderLine.ProductID,
				Quantity:    lineIn.Quantity,
			})
		}

		number, err := s.numbers.Next(ctx, numbering.DocTypeDelivery)
		if err != nil {
			return err
		}
		delivery.Number = number
		deliveryID, err = tx.InsertDelivery(ctx, delivery)
		return err
	})
	if err != nil {
		return Delivery{}, err
	}
	s.recordAudit(ctx, "delivery.create", deliveryID)
	return s.repo.Get(ctx, deliveryID)
}

// Ship executes a ready delivery: stock moves out, the order's delivered
// quantities advance and its status is recomputed, all in one
// transaction. Remaining quantities are re-checked under the order lock,
// so two deliveries racing over the same order line cannot both ship.
func (s *Service) Ship(ctx context.Context, id int64) (Delivery, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		delivery, err := tx.GetDeliveryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if delivery.Status != StatusReady {
			return &shared.InvalidTransitionError{Entity: "delivery", ID: id, Status: string(delivery.Status), Op: "ship"}
		}
		order, err := tx.GetOrderForUpdate(ctx, delivery.OrderID)
		if err != nil {
			return err
		}
		orderLines := make(map[int64]orders.OrderLine, len(order.Lines))
		for _, line := range order.Lines {
			orderLines[line.ID] = line
		}

		for _, line := range delivery.Lines {
			orderLine, ok := orderLines[line.OrderLineID]
			if !ok {
				return &shared.ReferentialIntegrityError{Entity: "sales_order_line", ID: line.OrderLineID}
			}
			if line.Quantity.GreaterThan(orderLine.Remaining()) {
				return shared.Validation("lines", fmt.Sprintf("order line %d: quantity %s exceeds remaining %s", orderLine.ID, line.Quantity, orderLine.Remaining()))
			}
			_, err := s.applier.Apply(ctx, tx.Stock(), inventory.MovementInput{
				ProductID:     line.ProductID,
				Kind:          inventory.MovementOut,
				Quantity:      line.Quantity,
				Reason:        "delivery " + delivery.Number,
				ReferenceType: "delivery",
				ReferenceID:   delivery.ID,
			})
			if err != nil {
				return err
			}
			if err := tx.AddDeliveredQuantity(ctx, line.OrderLineID, line.Quantity); err != nil {
				return err
			}
			orderLine.DeliveredQuantity = orderLine.DeliveredQuantity.Add(line.Quantity)
			orderLines[line.OrderLineID] = orderLine
		}

		updated := make([]orders.OrderLine, 0, len(order.Lines))
		for _, line := range order.Lines {
			updated = append(updated, orderLines[line.ID])
		}
		if err := tx.SetOrderStatus(ctx, order.ID, orders.DeliveryStatus(updated)); err != nil {
			return err
		}
		actual := s.now().UTC()
		return tx.SetDeliveryStatus(ctx, id, StatusShipped, &actual)
	})
	if err != nil {
		return Delivery{}, err
	}
	s.recordAudit(ctx, "delivery.ship", id)
	return s.repo.Get(ctx, id)
}

// Cancel drops a ready delivery. Shipped deliveries cannot be cancelled;
// corrections go through inventory adjustments.
func (s *Service) Cancel(ctx context.Context, id int64) (Delivery, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		delivery, err := tx.GetDeliveryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if delivery.Status != StatusReady {
			return &shared.InvalidTransitionError{Entity: "delivery", ID: id, Status: string(delivery.Status), Op: "cancel"}
		}
		return tx.SetDeliveryStatus(ctx, id, StatusCancelled, nil)
	})
	if err != nil {
		return Delivery{}, err
	}
	s.recordAudit(ctx, "delivery.cancel", id)
	return s.repo.Get(ctx, id)
}

// Get returns one delivery with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Delivery, error) {
	return s.repo.Get(ctx, id)
}

// List returns deliveries matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Delivery, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "delivery",
		EntityID: fmt.Sprintf("%d", id),
	})
}
