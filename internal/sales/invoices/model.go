// Package invoices manages customer invoices. Issuing an invoice posts
// the revenue journal entry in the same transaction as the status change.
package invoices

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the invoice lifecycle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusIssued    Status = "issued"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Invoice bills a customer. Lines are snapshots copied from the order at
// creation; the order can change no further once invoiced.
type Invoice struct {
	ID         int64
	Number     string
	OrderID    *int64
	CustomerID int64
	Status     Status
	IssueDate  *time.Time
	DueDate    *time.Time
	Notes      string
	Net        decimal.Decimal
	Tax        decimal.Decimal
	Gross      decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Lines      []InvoiceLine
}

// InvoiceLine is one billed position. RevenueAccountID records which
// revenue account the line credits when the invoice issues; nil falls
// back to the configured default.
type InvoiceLine struct {
	ID               int64
	InvoiceID        int64
	ProductID        *int64
	Description      string
	Quantity         decimal.Decimal
	UnitPrice        decimal.Decimal
	TaxRate          decimal.Decimal
	RevenueAccountID *int64
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	Status     Status
	CustomerID int64
}
