// Package purchasing manages purchase orders and vendor invoices.
// Receiving a purchase order moves stock in within the receiving
// transaction.
package purchasing

import (
	"time"

	"github.com/shopspring/decimal"
)

// POStatus enumerates the purchase order lifecycle.
type POStatus string

const (
	POStatusDraft     POStatus = "draft"
	POStatusConfirmed POStatus = "confirmed"
	POStatusReceived  POStatus = "received"
	POStatusCancelled POStatus = "cancelled"
)

// PurchaseOrder is the commitment to buy from a vendor. Costs are
// snapshotted onto the lines at creation.
type PurchaseOrder struct {
	ID        int64
	Number    string
	VendorID  int64
	Status    POStatus
	OrderDate time.Time
	Notes     string
	Net       decimal.Decimal
	Tax       decimal.Decimal
	Gross     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
	Lines     []PurchaseOrderLine
}

// PurchaseOrderLine is one ordered position.
type PurchaseOrderLine struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	Description string
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	TaxRate     decimal.Decimal
}

// VIStatus enumerates the vendor invoice lifecycle. Vendor invoices are
// registered documents; they change status without posting.
type VIStatus string

const (
	VIStatusDraft     VIStatus = "draft"
	VIStatusReceived  VIStatus = "received"
	VIStatusPaid      VIStatus = "paid"
	VIStatusCancelled VIStatus = "cancelled"
)

// VendorInvoice records a bill from a vendor, optionally tied to a
// purchase order whose line snapshots it copies.
type VendorInvoice struct {
	ID        int64
	Number    string
	VendorID  int64
	OrderID   *int64
	Status    VIStatus
	Reference string
	Notes     string
	Net       decimal.Decimal
	Tax       decimal.Decimal
	Gross     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
	Lines     []VendorInvoiceLine
}

// VendorInvoiceLine is one billed position.
type VendorInvoiceLine struct {
	ID          int64
	InvoiceID   int64
	ProductID   *int64
	Description string
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	TaxRate     decimal.Decimal
}

// POFilter narrows purchase order listings.
type POFilter struct {
	Status   POStatus
	VendorID int64
}

// VIFilter narrows vendor invoice listings.
type VIFilter struct {
	Status   VIStatus
	VendorID int64
}
