package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxRepository exposes stock operations inside a transaction.
type TxRepository interface {
	GetStockForUpdate(ctx context.Context, productID int64) (StockInfo, error)
	UpdateStock(ctx context.Context, productID int64, quantity decimal.Decimal) error
	InsertMovement(ctx context.Context, movement StockMovement) (int64, error)
}

// PgRepository is the PostgreSQL-backed movement store.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository constructs a PgRepository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// WithTx runs fn inside a RepeatableRead transaction.
func (r *PgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *PgRepository) ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error) {
	query := `SELECT id, product_id, kind, quantity::text, resulting_quantity::text, reason, reference_type, reference_id, created_at
FROM stock_movements`
	args := []any{}
	if filter.ProductID != 0 {
		query += ` WHERE product_id = $1`
		args = append(args, filter.ProductID)
	}
	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Kind, &m.Quantity, &m.ResultingQuantity, &m.Reason, &m.ReferenceType, &m.ReferenceID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PgRepository) LowStockRows(ctx context.Context) ([]LowStockRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sku, name, stock_quantity::text, reorder_point::text
FROM products
WHERE track_inventory AND NOT is_archived AND stock_quantity <= reorder_point
ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LowStockRow
	for rows.Next() {
		var row LowStockRow
		if err := rows.Scan(&row.ProductID, &row.SKU, &row.Name, &row.Quantity, &row.ReorderPoint); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// txRepository serves stock reads and writes within an open transaction.
type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction so other modules can move
// stock atomically with their own writes.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) GetStockForUpdate(ctx context.Context, productID int64) (StockInfo, error) {
	var info StockInfo
	err := r.tx.QueryRow(ctx, `SELECT id, name, track_inventory, stock_quantity::text
FROM products
WHERE id = $1 AND NOT is_archived
FOR UPDATE`, productID).Scan(&info.ProductID, &info.Name, &info.Tracked, &info.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockInfo{}, shared.ErrNotFound
	}
	if err != nil {
		return StockInfo{}, err
	}
	return info, nil
}

func (r *txRepository) UpdateStock(ctx context.Context, productID int64, quantity decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET stock_quantity = $2::numeric, updated_at = now() WHERE id = $1`,
		productID, quantity.String())
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, movement StockMovement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, kind, quantity, resulting_quantity, reason, reference_type, reference_id)
VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7)
RETURNING id`,
		movement.ProductID, movement.Kind, movement.Quantity.String(), movement.ResultingQuantity.String(),
		movement.Reason, movement.ReferenceType, movement.ReferenceID).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}
