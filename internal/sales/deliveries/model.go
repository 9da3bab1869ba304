// Package deliveries manages outbound deliveries against sales orders.
// Shipping a delivery moves stock and advances the order in one
// transaction.
package deliveries

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the delivery lifecycle.
type Status string

const (
	StatusReady     Status = "ready"
	StatusShipped   Status = "shipped"
	StatusCancelled Status = "cancelled"
)

// Delivery groups goods leaving the warehouse for one sales order.
type Delivery struct {
	ID          int64
	Number      string
	OrderID     int64
	Status      Status
	PlannedDate time.Time
	ActualDate  *time.Time
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Lines       []DeliveryLine
}

// DeliveryLine ships part of one order line.
type DeliveryLine struct {
	ID          int64
	DeliveryID  int64
	OrderLineID int64
	ProductID   int64
	Quantity    decimal.Decimal
}

// ListFilter narrows delivery listings.
type ListFilter struct {
	OrderID int64
	Status  Status
}
