package inventory

import (
	"context"
	"errors"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxApplier applies stock movements through a transaction-scoped
// repository. Delivery shipping and purchase receipt use it to mutate
// stock inside their own transactions, so the status change and the
// movement commit or roll back together.
type TxApplier struct {
	allowNegative bool
}

// NewTxApplier builds a TxApplier. When allowNegative is false an outbound
// movement that would drive stock below zero is rejected.
func NewTxApplier(allowNegative bool) *TxApplier {
	return &TxApplier{allowNegative: allowNegative}
}

// Apply locks the stock row, validates the movement against the current
// level and writes the movement plus the new level. The caller supplies
// the transaction scope.
func (a *TxApplier) Apply(ctx context.Context, tx TxRepository, in MovementInput) (StockMovement, error) {
	if in.ProductID == 0 {
		return StockMovement{}, shared.Validation("product_id", "required")
	}
	if !in.Kind.Valid() {
		return StockMovement{}, shared.Validation("kind", "must be one of in/out/adjustment")
	}
	stock, err := tx.GetStockForUpdate(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return StockMovement{}, &shared.ReferentialIntegrityError{Entity: "product", ID: in.ProductID}
		}
		return StockMovement{}, err
	}
	if !stock.Tracked {
		return StockMovement{}, shared.Validation("product_id", "product does not track inventory")
	}

	movement := StockMovement{
		ProductID:     in.ProductID,
		Kind:          in.Kind,
		Reason:        in.Reason,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
	}
	switch in.Kind {
	case MovementIn:
		if !in.Quantity.IsPositive() {
			return StockMovement{}, shared.Validation("quantity", "must be positive")
		}
		movement.Quantity = in.Quantity
		movement.ResultingQuantity = stock.Quantity.Add(in.Quantity)
	case MovementOut:
		if !in.Quantity.IsPositive() {
			return StockMovement{}, shared.Validation("quantity", "must be positive")
		}
		remaining := stock.Quantity.Sub(in.Quantity)
		if remaining.IsNegative() && !a.allowNegative {
			return StockMovement{}, &shared.InsufficientStockError{
				ProductID: in.ProductID,
				Requested: in.Quantity,
				Available: stock.Quantity,
			}
		}
		movement.Quantity = in.Quantity
		movement.ResultingQuantity = remaining
	case MovementAdjustment:
		// Adjustments set an absolute level; the movement records the
		// distance from the current one.
		if in.TargetQuantity.IsNegative() {
			return StockMovement{}, shared.Validation("target_quantity", "must not be negative")
		}
		diff := in.TargetQuantity.Sub(stock.Quantity)
		if diff.IsZero() {
			return StockMovement{}, shared.Validation("target_quantity", "stock is already at the requested level")
		}
		movement.Quantity = diff.Abs()
		movement.ResultingQuantity = in.TargetQuantity
	}

	if err := tx.UpdateStock(ctx, in.ProductID, movement.ResultingQuantity); err != nil {
		return StockMovement{}, err
	}
	id, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return StockMovement{}, err
	}
	movement.ID = id
	return movement, nil
}
