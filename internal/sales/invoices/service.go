package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/document"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/partners"
	"github.com/meridian-erp/meridian-erp/internal/sales/orders"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository abstracts persistence for the service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Create(ctx context.Context, invoice Invoice) (int64, error)
	Get(ctx context.Context, id int64) (Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]Invoice, error)
}

// TxRepository exposes invoice and order operations inside an issuing or
// payment transaction.
type TxRepository interface {
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	SetInvoiceStatus(ctx context.Context, id int64, status Status, issueDate, dueDate *time.Time) error
	// MarkOrderInvoiced moves a delivered order to invoiced. It reports
	// false when the order was not in the delivered status.
	MarkOrderInvoiced(ctx context.Context, orderID int64) (bool, error)
	Ledger() ledger.TxRepository
}

// OrderPort resolves sales orders invoices are built from.
type OrderPort interface {
	Get(ctx context.Context, id int64) (orders.SalesOrder, error)
}

// PartnerPort resolves customers for payment terms.
type PartnerPort interface {
	Get(ctx context.Context, id int64) (partners.Partner, error)
}

// ProductPort resolves products for revenue account defaults.
type ProductPort interface {
	Get(ctx context.Context, id int64) (catalog.Product, error)
}

// AccountPort resolves configured posting accounts by code.
type AccountPort interface {
	GetAccountByCode(ctx context.Context, code string) (ledger.Account, error)
}

// NumberSource issues document numbers.
type NumberSource interface {
	Next(ctx context.Context, docType numbering.DocType) (string, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// AccountCodes names the accounts invoice postings touch.
type AccountCodes struct {
	Receivable     string
	TaxPayable     string
	DefaultRevenue string
}

// LineInput is one manually entered invoice line. Description, unit
// price and tax rate default from the product when omitted.
type LineInput struct {
	ProductID   int64            `json:"product_id"`
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	TaxRate     *decimal.Decimal `json:"tax_rate"`
}

// CreateInput groups fields for creating an invoice. When OrderID is
// set the lines are copied from the sales order and the remaining
// fields are ignored.
type CreateInput struct {
	OrderID    *int64      `json:"order_id"`
	CustomerID int64       `json:"customer_id"`
	Notes      string      `json:"notes"`
	Lines      []LineInput `json:"lines"`
}

// Service coordinates invoice operations.
type Service struct {
	repo     Repository
	orders   OrderPort
	partners PartnerPort
	products ProductPort
	accounts AccountPort
	numbers  NumberSource
	poster   *ledger.Poster
	codes    AccountCodes
	audit    AuditPort
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, orderPort OrderPort, partnerPort PartnerPort, productPort ProductPort,
	accountPort AccountPort, numbers NumberSource, poster *ledger.Poster, codes AccountCodes, audit AuditPort) *Service {
	return &Service{
		repo:     repo,
		orders:   orderPort,
		partners: partnerPort,
		products: productPort,
		accounts: accountPort,
		numbers:  numbers,
		poster:   poster,
		codes:    codes,
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

// Create builds a draft invoice, from an order's line snapshots when
// one is referenced, otherwise from manually entered lines.
func (s *Service) Create(ctx context.Context, in CreateInput) (Invoice, error) {
	if in.OrderID != nil {
		return s.CreateFromOrder(ctx, *in.OrderID)
	}
	if in.CustomerID == 0 {
		return Invoice{}, shared.Validation("customer_id", "required")
	}
	customer, err := s.partners.Get(ctx, in.CustomerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Invoice{}, &shared.ReferentialIntegrityError{Entity: "partner", ID: in.CustomerID}
		}
		return Invoice{}, err
	}
	if customer.IsArchived || customer.Customer == nil {
		return Invoice{}, shared.Validation("customer_id", "partner is not an active customer")
	}
	if len(in.Lines) == 0 {
		return Invoice{}, shared.Validation("lines", "an invoice needs at least one line")
	}

	invoice := Invoice{
		CustomerID: in.CustomerID,
		Status:     StatusDraft,
		Notes:      in.Notes,
	}
	docLines := make([]document.Line, 0, len(in.Lines))
	for idx, lineIn := range in.Lines {
		if !lineIn.Quantity.IsPositive() {
			return Invoice{}, shared.Validation("lines", fmt.Sprintf("line %d: quantity must be positive", idx))
		}
		line := InvoiceLine{
			Description: lineIn.Description,
			Quantity:    lineIn.Quantity,
		}
		if lineIn.UnitPrice != nil {
			line.UnitPrice = *lineIn.UnitPrice
		}
		if lineIn.TaxRate != nil {
			line.TaxRate = *lineIn.TaxRate
		}
		if lineIn.ProductID != 0 {
			product, err := s.products.Get(ctx, lineIn.ProductID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return Invoice{}, &shared.ReferentialIntegrityError{Entity: "product", ID: lineIn.ProductID}
				}
				return Invoice{}, err
			}
			productID := product.ID
			line.ProductID = &productID
			line.RevenueAccountID = product.RevenueAccountID
			if line.Description == "" {
				line.Description = product.Name
			}
			if lineIn.UnitPrice == nil {
				line.UnitPrice = product.UnitPrice
			}
			if lineIn.TaxRate == nil {
				line.TaxRate = product.TaxRate
			}
		}
		invoice.Lines = append(invoice.Lines, line)
		docLines = append(docLines, document.Line{Quantity: line.Quantity, UnitPrice: line.UnitPrice, TaxRate: line.TaxRate})
	}
	totals := document.ComputeTotals(docLines)
	invoice.Net = totals.Net
	invoice.Tax = totals.Tax
	invoice.Gross = totals.Gross

	number, err := s.numbers.Next(ctx, numbering.DocTypeInvoice)
	if err != nil {
		return Invoice{}, err
	}
	invoice.Number = number

	id, err := s.repo.Create(ctx, invoice)
	if err != nil {
		return Invoice{}, err
	}
	s.recordAudit(ctx, "invoice.create", id)
	return s.repo.Get(ctx, id)
}

// CreateFromOrder builds a draft invoice copying the delivered order's
// line snapshots. The order itself only moves to invoiced when the
// invoice issues.
func (s *Service) CreateFromOrder(ctx context.Context, orderID int64) (Invoice, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Invoice{}, &shared.ReferentialIntegrityError{Entity: "sales_order", ID: orderID}
		}
		return Invoice{}, err
	}
	if order.Status != orders.StatusDelivered {
		return Invoice{}, &shared.InvalidTransitionError{Entity: "sales_order", ID: orderID, Status: string(order.Status), Op: "invoice"}
	}

	invoice := Invoice{
		OrderID:    &order.ID,
		CustomerID: order.CustomerID,
		Status:     StatusDraft,
		Notes:      order.Notes,
	}
	docLines := make([]document.Line, 0, len(order.Lines))
	for _, line := range order.Lines {
		productID := line.ProductID
		invLine := InvoiceLine{
			ProductID:   &productID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TaxRate:     line.TaxRate,
		}
		product, err := s.products.Get(ctx, line.ProductID)
		if err == nil && product.RevenueAccountID != nil {
			invLine.RevenueAccountID = product.RevenueAccountID
		}
		invoice.Lines = append(invoice.Lines, invLine)
		docLines = append(docLines, document.Line{Quantity: line.Quantity, UnitPrice: line.UnitPrice, TaxRate: line.TaxRate})
	}
	totals := document.ComputeTotals(docLines)
	invoice.Net = totals.Net
	invoice.Tax = totals.Tax
	invoice.Gross = totals.Gross

	number, err := s.numbers.Next(ctx, numbering.DocTypeInvoice)
	if err != nil {
		return Invoice{}, err
	}
	invoice.Number = number

	id, err := s.repo.Create(ctx, invoice)
	if err != nil {
		return Invoice{}, err
	}
	s.recordAudit(ctx, "invoice.create", id)
	return s.repo.Get(ctx, id)
}

// Issue finalizes a draft invoice: the revenue entry posts, the order
// moves to invoiced and the due date is fixed from the customer's terms,
// all in one transaction. The ledger's source link makes a second issue
// attempt fail even if two requests race.
func (s *Service) Issue(ctx context.Context, id int64) (Invoice, error) {
	receivable, err := s.accounts.GetAccountByCode(ctx, s.codes.Receivable)
	if err != nil {
		return Invoice{}, fmt.Errorf("resolve receivable account %q: %w", s.codes.Receivable, err)
	}
	taxPayable, err := s.accounts.GetAccountByCode(ctx, s.codes.TaxPayable)
	if err != nil {
		return Invoice{}, fmt.Errorf("resolve tax account %q: %w", s.codes.TaxPayable, err)
	}
	defaultRevenue, err := s.accounts.GetAccountByCode(ctx, s.codes.DefaultRevenue)
	if err != nil {
		return Invoice{}, fmt.Errorf("resolve revenue account %q: %w", s.codes.DefaultRevenue, err)
	}

	termsDays := 0
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invoice, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if invoice.Status != StatusDraft {
			return &shared.InvalidTransitionError{Entity: "invoice", ID: id, Status: string(invoice.Status), Op: "issue"}
		}
		if len(invoice.Lines) == 0 {
			return shared.Validation("lines", "an invoice needs at least one line to be issued")
		}

		customer, err := s.partners.Get(ctx, invoice.CustomerID)
		if err == nil && customer.Customer != nil {
			termsDays = customer.Customer.PaymentTermsDays
		}

		in := ledger.PostingInput{
			Description:   "Invoice " + invoice.Number,
			ReferenceType: "invoice",
			ReferenceID:   invoice.ID,
			Lines: []ledger.PostingLine{
				{AccountID: receivable.ID, Debit: invoice.Gross},
			},
		}
		// Credit revenue per account, aggregating lines that share one.
		revenueByAccount := make(map[int64]decimal.Decimal)
		var accountOrder []int64
		for _, line := range invoice.Lines {
			accountID := defaultRevenue.ID
			if line.RevenueAccountID != nil {
				accountID = *line.RevenueAccountID
			}
			if _, seen := revenueByAccount[accountID]; !seen {
				accountOrder = append(accountOrder, accountID)
			}
			lineNet := line.Quantity.Mul(line.UnitPrice).Round(2)
			revenueByAccount[accountID] = revenueByAccount[accountID].Add(lineNet)
		}
		creditedNet := decimal.Zero
		for _, accountID := range accountOrder {
			creditedNet = creditedNet.Add(revenueByAccount[accountID])
		}
		// Rounding drift between per-line nets and the invoice net lands
		// on the last revenue line so the entry still balances.
		if diff := invoice.Net.Sub(creditedNet); !diff.IsZero() && len(accountOrder) > 0 {
			last := accountOrder[len(accountOrder)-1]
			revenueByAccount[last] = revenueByAccount[last].Add(diff)
		}
		for _, accountID := range accountOrder {
			in.Lines = append(in.Lines, ledger.PostingLine{AccountID: accountID, Credit: revenueByAccount[accountID]})
		}
		if invoice.Tax.IsPositive() {
			in.Lines = append(in.Lines, ledger.PostingLine{AccountID: taxPayable.ID, Credit: invoice.Tax})
		}
		if _, err := s.poster.Post(ctx, tx.Ledger(), in); err != nil {
			return err
		}

		if invoice.OrderID != nil {
			moved, err := tx.MarkOrderInvoiced(ctx, *invoice.OrderID)
			if err != nil {
				return err
			}
			if !moved {
				return &shared.InvalidTransitionError{Entity: "sales_order", ID: *invoice.OrderID, Status: "", Op: "invoice"}
			}
		}

		issueDate := s.now().UTC()
		dueDate := issueDate.AddDate(0, 0, termsDays)
		return tx.SetInvoiceStatus(ctx, id, StatusIssued, &issueDate, &dueDate)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.recordAudit(ctx, "invoice.issue", id)
	return s.repo.Get(ctx, id)
}

// MarkPaid settles an issued invoice. Payment is a status change only;
// cash receipt posting is a separate concern handled outside this
// module.
func (s *Service) MarkPaid(ctx context.Context, id int64) (Invoice, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invoice, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if invoice.Status != StatusIssued {
			return &shared.InvalidTransitionError{Entity: "invoice", ID: id, Status: string(invoice.Status), Op: "pay"}
		}
		return tx.SetInvoiceStatus(ctx, id, StatusPaid, invoice.IssueDate, invoice.DueDate)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.recordAudit(ctx, "invoice.pay", id)
	return s.repo.Get(ctx, id)
}

// Cancel drops a draft invoice. Issued invoices are immutable; they are
// corrected with reversing entries, not cancelled.
func (s *Service) Cancel(ctx context.Context, id int64) (Invoice, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invoice, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if invoice.Status != StatusDraft {
			return &shared.InvalidTransitionError{Entity: "invoice", ID: id, Status: string(invoice.Status), Op: "cancel"}
		}
		return tx.SetInvoiceStatus(ctx, id, StatusCancelled, nil, nil)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.recordAudit(ctx, "invoice.cancel", id)
	return s.repo.Get(ctx, id)
}

// Get returns one invoice with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.Get(ctx, id)
}

// List returns invoices matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "invoice",
		EntityID: fmt.Sprintf("%d", id),
	})
}
