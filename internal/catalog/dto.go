package catalog

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var validate = validator.New()

// ProductInput groups fields for creating or updating a product.
type ProductInput struct {
	SKU              string          `json:"sku" validate:"required,max=64"`
	Name             string          `json:"name" validate:"required,max=255"`
	Kind             ProductKind     `json:"kind"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	TrackInventory   bool            `json:"track_inventory"`
	ReorderPoint     decimal.Decimal `json:"reorder_point"`
	RevenueAccountID *int64          `json:"revenue_account_id"`
}

// Validate checks field shapes and cross-field rules. Services cannot
// track inventory; the flag is forced off rather than rejected.
func (in *ProductInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	if !in.Kind.Valid() {
		return shared.Validation("kind", "must be one of goods/service")
	}
	if in.Kind == KindService {
		in.TrackInventory = false
	}
	if in.UnitPrice.IsNegative() {
		return shared.Validation("unit_price", "must not be negative")
	}
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return shared.Validation("tax_rate", "must be between 0 and 100")
	}
	if in.ReorderPoint.IsNegative() {
		return shared.Validation("reorder_point", "must not be negative")
	}
	return nil
}
