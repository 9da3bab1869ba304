// Package catalog manages the product master.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductKind separates physical goods from services.
type ProductKind string

const (
	KindGoods   ProductKind = "goods"
	KindService ProductKind = "service"
)

// Valid reports whether the kind is known.
func (k ProductKind) Valid() bool {
	return k == KindGoods || k == KindService
}

// Product is one sellable or purchasable item. Services never track
// inventory; StockQuantity and ReorderPoint only apply to tracked goods.
type Product struct {
	ID               int64
	SKU              string
	Name             string
	Kind             ProductKind
	UnitPrice        decimal.Decimal
	TaxRate          decimal.Decimal
	TrackInventory   bool
	StockQuantity    decimal.Decimal
	ReorderPoint     decimal.Decimal
	RevenueAccountID *int64
	IsArchived       bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ListFilter narrows product listings.
type ListFilter struct {
	Kind            ProductKind
	IncludeArchived bool
	Search          string
}
