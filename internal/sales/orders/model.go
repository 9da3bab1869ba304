// Package orders manages sales orders through their delivery and
// invoicing lifecycle.
package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the sales order lifecycle. Transitions are forward
// only; cancelled is terminal.
type Status string

const (
	StatusDraft              Status = "draft"
	StatusConfirmed          Status = "confirmed"
	StatusPartiallyDelivered Status = "partially_delivered"
	StatusDelivered          Status = "delivered"
	StatusInvoiced           Status = "invoiced"
	StatusCancelled          Status = "cancelled"
)

// SalesOrder is the commercial commitment to a customer. Prices and tax
// rates are snapshotted onto the lines at creation; later catalog edits
// never change an existing order.
type SalesOrder struct {
	ID         int64
	Number     string
	CustomerID int64
	Status     Status
	OrderDate  time.Time
	Notes      string
	Net        decimal.Decimal
	Tax        decimal.Decimal
	Gross      decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Lines      []OrderLine
}

// OrderLine is one ordered position. DeliveredQuantity accumulates as
// deliveries ship.
type OrderLine struct {
	ID                int64
	OrderID           int64
	ProductID         int64
	Description       string
	Quantity          decimal.Decimal
	UnitPrice         decimal.Decimal
	TaxRate           decimal.Decimal
	DeliveredQuantity decimal.Decimal
}

// Remaining returns the undelivered quantity on the line.
func (l OrderLine) Remaining() decimal.Decimal {
	return l.Quantity.Sub(l.DeliveredQuantity)
}

// FullyDelivered reports whether nothing remains to deliver.
func (l OrderLine) FullyDelivered() bool {
	return !l.Remaining().IsPositive()
}

// DeliveryStatus derives the order status from its lines' delivered
// quantities. It never moves an order backwards.
func DeliveryStatus(lines []OrderLine) Status {
	all := true
	any := false
	for _, line := range lines {
		if line.DeliveredQuantity.IsPositive() {
			any = true
		}
		if !line.FullyDelivered() {
			all = false
		}
	}
	switch {
	case all && len(lines) > 0:
		return StatusDelivered
	case any:
		return StatusPartiallyDelivered
	default:
		return StatusConfirmed
	}
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status     Status
	CustomerID int64
}
