package purchasing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/document"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/partners"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository abstracts persistence for the service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error)
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListOrders(ctx context.Context, filter POFilter) ([]PurchaseOrder, error)
	TransitionOrder(ctx context.Context, id int64, expected []POStatus, next POStatus) (POStatus, bool, error)
	CreateInvoice(ctx context.Context, invoice VendorInvoice) (int64, error)
	GetInvoice(ctx context.Context, id int64) (VendorInvoice, error)
	ListInvoices(ctx context.Context, filter VIFilter) ([]VendorInvoice, error)
	TransitionInvoice(ctx context.Context, id int64, expected []VIStatus, next VIStatus) (VIStatus, bool, error)
}

// TxRepository exposes purchase order operations inside a receiving
// transaction.
type TxRepository interface {
	GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	SetOrderStatus(ctx context.Context, id int64, status POStatus) error
	Stock() inventory.TxRepository
}

// PartnerPort resolves vendors.
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

// OrderLineInput is one requested purchase position.
type OrderLineInput struct {
	ProductID   int64           `json:"product_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// CreateOrderInput groups fields for creating a purchase order.
type CreateOrderInput struct {
	VendorID  int64            `json:"vendor_id"`
	OrderDate string           `json:"order_date"`
	Notes     string           `json:"notes"`
	Lines     []OrderLineInput `json:"lines"`
}

// CreateInvoiceInput groups fields for registering a vendor invoice.
// When OrderID is set the lines are copied from the purchase order and
// the Lines field is ignored.
type CreateInvoiceInput struct {
	VendorID  int64            `json:"vendor_id"`
	OrderID   *int64           `json:"order_id"`
	Reference string           `json:"reference"`
	Notes     string           `json:"notes"`
	Lines     []OrderLineInput `json:"lines"`
}

// Service coordinates purchasing operations.
type Service struct {
	repo     Repository
	partners PartnerPort
	products ProductPort
	numbers  NumberSource
	applier  *inventory.TxApplier
	audit    AuditPort
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, partnerPort PartnerPort, productPort ProductPort, numbers NumberSource, applier *inventory.TxApplier, audit AuditPort) *Service {
	return &Service{
		repo:     repo,
		partners: partnerPort,
		products: productPort,
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

// CreateOrder builds a draft purchase order.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (PurchaseOrder, error) {
	if in.VendorID == 0 {
		return PurchaseOrder{}, shared.Validation("vendor_id", "required")
	}
	vendor, err := s.partners.Get(ctx, in.VendorID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return PurchaseOrder{}, &shared.ReferentialIntegrityError{Entity: "partner", ID: in.VendorID}
		}
		return PurchaseOrder{}, err
	}
	if vendor.IsArchived || vendor.Vendor == nil {
		return PurchaseOrder{}, shared.Validation("vendor_id", "partner is not an active vendor")
	}
	var orderDate time.Time
	if in.OrderDate != "" {
		orderDate, err = time.Parse("2006-01-02", in.OrderDate)
		if err != nil {
			return PurchaseOrder{}, shared.Validation("order_date", "expected YYYY-MM-DD")
		}
	} else {
		orderDate = s.now().UTC()
	}

	order := PurchaseOrder{
		VendorID:  in.VendorID,
		Status:    POStatusDraft,
		OrderDate: orderDate,
		Notes:     in.Notes,
	}
	docLines := make([]document.Line, 0, len(in.Lines))
	for idx, lineIn := range in.Lines {
		if lineIn.ProductID == 0 {
			return PurchaseOrder{}, shared.Validation("lines", fmt.Sprintf("line %d: missing product", idx))
		}
		if !lineIn.Quantity.IsPositive() {
			return PurchaseOrder{}, shared.Validation("lines", fmt.Sprintf("line %d: quantity must be positive", idx))
		}
		if lineIn.UnitCost.IsNegative() {
			return PurchaseOrder{}, shared.Validation("lines", fmt.Sprintf("line %d: unit cost must not be negative", idx))
		}
		product, err := s.products.Get(ctx, lineIn.ProductID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return PurchaseOrder{}, &shared.ReferentialIntegrityError{Entity: "product", ID: lineIn.ProductID}
			}
			return PurchaseOrder{}, err
		}
		if product.IsArchived {
			return PurchaseOrder{}, &shared.ReferentialIntegrityError{Entity: "product", ID: lineIn.ProductID}
		}
		line := PurchaseOrderLine{
			ProductID:   product.ID,
			Description: lineIn.Description,
			Quantity:    lineIn.Quantity,
			UnitCost:    lineIn.UnitCost,
			TaxRate:     lineIn.TaxRate,
		}
		if line.Description == "" {
			line.Description = product.Name
		}
		order.Lines = append(order.Lines, line)
		docLines = append(docLines, document.Line{Quantity: line.Quantity, UnitPrice: line.UnitCost, TaxRate: line.TaxRate})
	}
	totals := document.ComputeTotals(docLines)
	order.Net = totals.Net
	order.Tax = totals.Tax
	order.Gross = totals.Gross

	order.Number, err = s.numbers.Next(ctx, numbering.DocTypePurchaseOrder)
	if err != nil {
		return PurchaseOrder{}, err
	}
	id, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "purchase_order.create", "purchase_order", id)
	return s.repo.GetOrder(ctx, id)
}

// ConfirmOrder moves a draft purchase order to confirmed.
func (s *Service) ConfirmOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if len(order.Lines) == 0 {
		return PurchaseOrder{}, shared.Validation("lines", "a purchase order needs at least one line to be confirmed")
	}
	if err := s.transitionOrder(ctx, id, []POStatus{POStatusDraft}, POStatusConfirmed, "confirm"); err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "purchase_order.confirm", "purchase_order", id)
	return s.repo.GetOrder(ctx, id)
}

// ReceiveOrder books goods receipt for a confirmed order: every tracked
// goods line moves stock in, and the order closes, in one transaction.
func (s *Service) ReceiveOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status != POStatusConfirmed {
			return &shared.InvalidTransitionError{Entity: "purchase_order", ID: id, Status: string(order.Status), Op: "receive"}
		}
		for _, line := range order.Lines {
			product, err := s.products.Get(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if !product.TrackInventory {
				continue
			}
			_, err = s.applier.Apply(ctx, tx.Stock(), inventory.MovementInput{
				ProductID:     line.ProductID,
				Kind:          inventory.MovementIn,
				Quantity:      line.Quantity,
				Reason:        "receipt " + order.Number,
				ReferenceType: "purchase_order",
				ReferenceID:   order.ID,
			})
			if err != nil {
				return err
			}
		}
		return tx.SetOrderStatus(ctx, id, POStatusReceived)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "purchase_order.receive", "purchase_order", id)
	return s.repo.GetOrder(ctx, id)
}

// CancelOrder terminates a purchase order that has not been received.
func (s *Service) CancelOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	if err := s.transitionOrder(ctx, id, []POStatus{POStatusDraft, POStatusConfirmed}, POStatusCancelled, "cancel"); err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "purchase_order.cancel", "purchase_order", id)
	return s.repo.GetOrder(ctx, id)
}

// GetOrder returns one purchase order with its lines.
func (s *Service) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders returns purchase orders matching the filter.
func (s *Service) ListOrders(ctx context.Context, filter POFilter) ([]PurchaseOrder, error) {
	return s.repo.ListOrders(ctx, filter)
}

// CreateInvoice registers a vendor invoice, copying line snapshots from
// the purchase order when one is referenced.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (VendorInvoice, error) {
	invoice := VendorInvoice{
		Status:    VIStatusDraft,
		Reference: in.Reference,
		Notes:     in.Notes,
	}
	var docLines []document.Line
	if in.OrderID != nil {
		order, err := s.repo.GetOrder(ctx, *in.OrderID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return VendorInvoice{}, &shared.ReferentialIntegrityError{Entity: "purchase_order", ID: *in.OrderID}
			}
			return VendorInvoice{}, err
		}
		if order.Status != POStatusConfirmed && order.Status != POStatusReceived {
			return VendorInvoice{}, &shared.InvalidTransitionError{Entity: "purchase_order", ID: order.ID, Status: string(order.Status), Op: "bill"}
		}
		invoice.VendorID = order.VendorID
		invoice.OrderID = &order.ID
		for _, line := range order.Lines {
			productID := line.ProductID
			invoice.Lines = append(invoice.Lines, VendorInvoiceLine{
				ProductID:   &productID,
				Description: line.Description,
				Quantity:    line.Quantity,
				UnitCost:    line.UnitCost,
				TaxRate:     line.TaxRate,
			})
			docLines = append(docLines, document.Line{Quantity: line.Quantity, UnitPrice: line.UnitCost, TaxRate: line.TaxRate})
		}
	} else {
		if in.VendorID == 0 {
			return VendorInvoice{}, shared.Validation("vendor_id", "required")
		}
		vendor, err := s.partners.Get(ctx, in.VendorID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return VendorInvoice{}, &shared.ReferentialIntegrityError{Entity: "partner", ID: in.VendorID}
			}
			return VendorInvoice{}, err
		}
		if vendor.IsArchived || vendor.Vendor == nil {
			return VendorInvoice{}, shared.Validation("vendor_id", "partner is not an active vendor")
		}
		if len(in.Lines) == 0 {
			return VendorInvoice{}, shared.Validation("lines", "a vendor invoice needs at least one line")
		}
		invoice.VendorID = in.VendorID
		for idx, lineIn := range in.Lines {
			if !lineIn.Quantity.IsPositive() {
				return VendorInvoice{}, shared.Validation("lines", fmt.Sprintf("line %d: quantity must be positive", idx))
			}
			var productID *int64
			if lineIn.ProductID != 0 {
				id := lineIn.ProductID
				productID = &id
			}
			invoice.Lines = append(invoice.Lines, VendorInvoiceLine{
				ProductID:   productID,
				Description: lineIn.Description,
				Quantity:    lineIn.Quantity,
				UnitCost:    lineIn.UnitCost,
				TaxRate:     lineIn.TaxRate,
			})
			docLines = append(docLines, document.Line{Quantity: lineIn.Quantity, UnitPrice: lineIn.UnitCost, TaxRate: lineIn.TaxRate})
		}
	}
	totals := document.ComputeTotals(docLines)
	invoice.Net = totals.Net
	invoice.Tax = totals.Tax
	invoice.Gross = totals.Gross

	number, err := s.numbers.Next(ctx, numbering.DocTypeVendorInvoice)
	if err != nil {
		return VendorInvoice{}, err
	}
	invoice.Number = number

	id, err := s.repo.CreateInvoice(ctx, invoice)
	if err != nil {
		return VendorInvoice{}, err
	}
	s.recordAudit(ctx, "vendor_invoice.create", "vendor_invoice", id)
	return s.repo.GetInvoice(ctx, id)
}

// MarkInvoiceReceived acknowledges a registered vendor invoice.
func (s *Service) MarkInvoiceReceived(ctx context.Context, id int64) (VendorInvoice, error) {
	if err := s.transitionInvoice(ctx, id, []VIStatus{VIStatusDraft}, VIStatusReceived, "receive"); err != nil {
		return VendorInvoice{}, err
	}
	s.recordAudit(ctx, "vendor_invoice.receive", "vendor_invoice", id)
	return s.repo.GetInvoice(ctx, id)
}

// MarkInvoicePaid settles a received vendor invoice.
func (s *Service) MarkInvoicePaid(ctx context.Context, id int64) (VendorInvoice, error) {
	if err := s.transitionInvoice(ctx, id, []VIStatus{VIStatusReceived}, VIStatusPaid, "pay"); err != nil {
		return VendorInvoice{}, err
	}
	s.recordAudit(ctx, "vendor_invoice.pay", "vendor_invoice", id)
	return s.repo.GetInvoice(ctx, id)
}

// CancelInvoice drops a draft vendor invoice.
func (s *Service) CancelInvoice(ctx context.Context, id int64) (VendorInvoice, error) {
	if err := s.transitionInvoice(ctx, id, []VIStatus{VIStatusDraft}, VIStatusCancelled, "cancel"); err != nil {
		return VendorInvoice{}, err
	}
	s.recordAudit(ctx, "vendor_invoice.cancel", "vendor_invoice", id)
	return s.repo.GetInvoice(ctx, id)
}

// GetInvoice returns one vendor invoice with its lines.
func (s *Service) GetInvoice(ctx context.Context, id int64) (VendorInvoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices returns vendor invoices matching the filter.
func (s *Service) ListInvoices(ctx context.Context, filter VIFilter) ([]VendorInvoice, error) {
	return s.repo.ListInvoices(ctx, filter)
}

func (s *Service) transitionOrder(ctx context.Context, id int64, expected []POStatus, next POStatus, op string) error {
	found, ok, err := s.repo.TransitionOrder(ctx, id, expected, next)
	if err != nil {
		return err
	}
	if !ok {
		return &shared.InvalidTransitionError{Entity: "purchase_order", ID: id, Status: string(found), Op: op}
	}
	return nil
}

func (s *Service) transitionInvoice(ctx context.Context, id int64, expected []VIStatus, next VIStatus, op string) error {
	found, ok, err := s.repo.TransitionInvoice(ctx, id, expected, next)
	if err != nil {
		return err
	}
	if !ok {
		return &shared.InvalidTransitionError{Entity: "vendor_invoice", ID: id, Status: string(found), Op: op}
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action, entity string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", id),
	})
}
