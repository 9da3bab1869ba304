package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// OrderLineInput is one requested position. UnitPrice, TaxRate and
// Description default to the product's values when omitted.
type OrderLineInput struct {
	ProductID   int64            `json:"product_id"`
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	TaxRate     *decimal.Decimal `json:"tax_rate"`
}

// CreateOrderInput groups fields for creating a sales order.
type CreateOrderInput struct {
	CustomerID int64            `json:"customer_id"`
	OrderDate  string           `json:"order_date"`
	Notes      string           `json:"notes"`
	Lines      []OrderLineInput `json:"lines"`
}

// Validate checks structural rules. Product existence and price snapshots
// are resolved by the service.
func (in CreateOrderInput) Validate() (time.Time, error) {
	if in.CustomerID == 0 {
		return time.Time{}, shared.Validation("customer_id", "required")
	}
	var orderDate time.Time
	if in.OrderDate != "" {
		parsed, err := time.Parse("2006-01-02", in.OrderDate)
		if err != nil {
			return time.Time{}, shared.Validation("order_date", "expected YYYY-MM-DD")
		}
		orderDate = parsed
	}
	for i, line := range in.Lines {
		if line.ProductID == 0 {
			return time.Time{}, shared.Validation("lines", lineErr(i, "missing product"))
		}
		if !line.Quantity.IsPositive() {
			return time.Time{}, shared.Validation("lines", lineErr(i, "quantity must be positive"))
		}
		if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
			return time.Time{}, shared.Validation("lines", lineErr(i, "unit price must not be negative"))
		}
	}
	return orderDate, nil
}

func lineErr(idx int, msg string) string {
	return fmt.Sprintf("line %d: %s", idx, msg)
}
