package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/document"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/partners"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository abstracts persistence for the service.
type Repository interface {
	Create(ctx context.Context, order SalesOrder) (int64, error)
	Get(ctx context.Context, id int64) (SalesOrder, error)
	List(ctx context.Context, filter ListFilter) ([]SalesOrder, error)
	// TransitionStatus moves the order from one of the expected statuses
	// to next. It returns the status found when no transition happened.
	TransitionStatus(ctx context.Context, id int64, expected []Status, next Status) (Status, bool, error)
}

// PartnerPort resolves partners referenced by orders.
type PartnerPort interface {
	Get(ctx context.Context, id int64) (partners.Partner, error)
}

// ProductPort resolves products referenced by order lines.
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

// Service coordinates sales order operations.
type Service struct {
	repo     Repository
	partners PartnerPort
	products ProductPort
	numbers  NumberSource
	audit    AuditPort
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, partnerPort PartnerPort, productPort ProductPort, numbers NumberSource, audit AuditPort) *Service {
	return &Service{
		repo:     repo,
		partners: partnerPort,
		products: productPort,
		numbers:  numbers,
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

// Create builds a draft order, snapshotting price, tax rate and
// description from the catalog for every line that omits them.
func (s *Service) Create(ctx context.Context, in CreateOrderInput) (SalesOrder, error) {
	orderDate, err := in.Validate()
	if err != nil {
		return SalesOrder{}, err
	}
	customer, err := s.partners.Get(ctx, in.CustomerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return SalesOrder{}, &shared.ReferentialIntegrityError{Entity: "partner", ID: in.CustomerID}
		}
		return SalesOrder{}, err
	}
	if customer.IsArchived || customer.Customer == nil {
		return SalesOrder{}, shared.Validation("customer_id", "partner is not an active customer")
	}

	lines := make([]OrderLine, 0, len(in.Lines))
	docLines := make([]document.Line, 0, len(in.Lines))
	for _, lineIn := range in.Lines {
		product, err := s.products.Get(ctx, lineIn.ProductID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return SalesOrder{}, &shared.ReferentialIntegrityError{Entity: "product", ID: lineIn.ProductID}
			}
			return SalesOrder{}, err
		}
		if product.IsArchived {
			return SalesOrder{}, &shared.ReferentialIntegrityError{Entity: "product", ID: lineIn.ProductID}
		}
		line := OrderLine{
			ProductID:   product.ID,
			Description: lineIn.Description,
			Quantity:    lineIn.Quantity,
			UnitPrice:   product.UnitPrice,
			TaxRate:     product.TaxRate,
		}
		if line.Description == "" {
			line.Description = product.Name
		}
		if lineIn.UnitPrice != nil {
			line.UnitPrice = *lineIn.UnitPrice
		}
		if lineIn.TaxRate != nil {
			line.TaxRate = *lineIn.TaxRate
		}
		lines = append(lines, line)
		docLines = append(docLines, document.Line{
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			TaxRate:   line.TaxRate,
		})
	}

	number, err := s.numbers.Next(ctx, numbering.DocTypeSalesOrder)
	if err != nil {
		return SalesOrder{}, err
	}
	if orderDate.IsZero() {
		orderDate = s.now().UTC()
	}
	totals := document.ComputeTotals(docLines)
	order := SalesOrder{
		Number:     number,
		CustomerID: in.CustomerID,
		Status:     StatusDraft,
		OrderDate:  orderDate,
		Notes:      in.Notes,
		Net:        totals.Net,
		Tax:        totals.Tax,
		Gross:      totals.Gross,
		Lines:      lines,
	}
	id, err := s.repo.Create(ctx, order)
	if err != nil {
		return SalesOrder{}, err
	}
	s.recordAudit(ctx, "sales_order.create", id)
	return s.repo.Get(ctx, id)
}

// Confirm moves a draft order to confirmed. An order without lines
// cannot be confirmed.
func (s *Service) Confirm(ctx context.Context, id int64) (SalesOrder, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return SalesOrder{}, err
	}
	if len(order.Lines) == 0 {
		return SalesOrder{}, shared.Validation("lines", "an order needs at least one line to be confirmed")
	}
	if err := s.transition(ctx, id, []Status{StatusDraft}, StatusConfirmed, "confirm"); err != nil {
		return SalesOrder{}, err
	}
	s.recordAudit(ctx, "sales_order.confirm", id)
	return s.repo.Get(ctx, id)
}

// Cancel terminates an order that has not started delivering.
func (s *Service) Cancel(ctx context.Context, id int64) (SalesOrder, error) {
	if err := s.transition(ctx, id, []Status{StatusDraft, StatusConfirmed}, StatusCancelled, "cancel"); err != nil {
		return SalesOrder{}, err
	}
	s.recordAudit(ctx, "sales_order.cancel", id)
	return s.repo.Get(ctx, id)
}

// Get returns one order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (SalesOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]SalesOrder, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) transition(ctx context.Context, id int64, expected []Status, next Status, op string) error {
	found, ok, err := s.repo.TransitionStatus(ctx, id, expected, next)
	if err != nil {
		return err
	}
	if !ok {
		return &shared.InvalidTransitionError{Entity: "sales_order", ID: id, Status: string(found), Op: op}
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "sales_order",
		EntityID: fmt.Sprintf("%d", id),
	})
}
