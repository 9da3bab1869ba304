// Package inventory maintains per-product stock levels through an
// append-only movement log.
package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind enumerates supported stock movements.
type MovementKind string

const (
	// MovementIn represents an inbound movement.
	MovementIn MovementKind = "in"
	// MovementOut represents an outbound movement.
	MovementOut MovementKind = "out"
	// MovementAdjustment sets the level to an absolute target.
	MovementAdjustment MovementKind = "adjustment"
)

// Valid reports whether the kind is known.
func (k MovementKind) Valid() bool {
	switch k {
	case MovementIn, MovementOut, MovementAdjustment:
		return true
	}
	return false
}

// StockMovement is one row of the movement log. Quantity is the absolute
// amount moved; ResultingQuantity is the stock level after the movement.
type StockMovement struct {
	ID                int64
	ProductID         int64
	Kind              MovementKind
	Quantity          decimal.Decimal
	ResultingQuantity decimal.Decimal
	Reason            string
	ReferenceType     string
	ReferenceID       int64
	CreatedAt         time.Time
}

// MovementInput describes a requested stock change. For in/out movements
// Quantity is the delta; for adjustments TargetQuantity is the absolute
// level to set and Quantity is ignored.
type MovementInput struct {
	ProductID      int64
	Kind           MovementKind
	Quantity       decimal.Decimal
	TargetQuantity decimal.Decimal
	Reason         string
	ReferenceType  string
	ReferenceID    int64
}

// StockInfo is the locked stock row read at the start of a movement.
type StockInfo struct {
	ProductID int64
	Name      string
	Tracked   bool
	Quantity  decimal.Decimal
}

// LowStockRow reports a tracked product at or below its reorder point.
type LowStockRow struct {
	ProductID    int64
	SKU          string
	Name         string
	Quantity     decimal.Decimal
	ReorderPoint decimal.Decimal
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	ProductID int64
	Limit     int
}
