package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// PgRepository is the PostgreSQL-backed sales order store.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository constructs a PgRepository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Create(ctx context.Context, order SalesOrder) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `INSERT INTO sales_orders (number, customer_id, status, order_date, notes, net, tax, gross)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric)
RETURNING id`,
		order.Number, order.CustomerID, order.Status, order.OrderDate, order.Notes,
		order.Net.String(), order.Tax.String(), order.Gross.String()).Scan(&id)
	if err != nil {
		return 0, err
	}
	for _, line := range order.Lines {
		_, err = tx.Exec(ctx, `INSERT INTO sales_order_lines (order_id, product_id, description, quantity, unit_price, tax_rate, delivered_quantity)
VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, 0)`,
			id, line.ProductID, line.Description, line.Quantity.String(), line.UnitPrice.String(), line.TaxRate.String())
		if err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PgRepository) Get(ctx context.Context, id int64) (SalesOrder, error) {
	var o SalesOrder
	err := r.pool.QueryRow(ctx, `SELECT id, number, customer_id, status, order_date, notes, net::text, tax::text, gross::text, created_at, updated_at
FROM sales_orders WHERE id = $1`, id).
		Scan(&o.ID, &o.Number, &o.CustomerID, &o.Status, &o.OrderDate, &o.Notes, &o.Net, &o.Tax, &o.Gross, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SalesOrder{}, shared.ErrNotFound
	}
	if err != nil {
		return SalesOrder{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, description, quantity::text, unit_price::text, tax_rate::text, delivered_quantity::text
FROM sales_order_lines WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return SalesOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Description, &l.Quantity, &l.UnitPrice, &l.TaxRate, &l.DeliveredQuantity); err != nil {
			return SalesOrder{}, err
		}
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}

func (r *PgRepository) List(ctx context.Context, filter ListFilter) ([]SalesOrder, error) {
	query := `SELECT id, number, customer_id, status, order_date, notes, net::text, tax::text, gross::text, created_at, updated_at
FROM sales_orders WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.CustomerID != 0 {
		args = append(args, filter.CustomerID)
		query += fmt.Sprintf(` AND customer_id = $%d`, len(args))
	}
	query += ` ORDER BY id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SalesOrder
	for rows.Next() {
		var o SalesOrder
		if err := rows.Scan(&o.ID, &o.Number, &o.CustomerID, &o.Status, &o.OrderDate, &o.Notes, &o.Net, &o.Tax, &o.Gross, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// TransitionStatus performs a guarded status update. The guard runs in
// SQL so two concurrent transitions cannot both succeed.
func (r *PgRepository) TransitionStatus(ctx context.Context, id int64, expected []Status, next Status) (Status, bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE sales_orders SET status = $2, updated_at = now()
WHERE id = $1 AND status = ANY($3)`, id, next, statusStrings(expected))
	if err != nil {
		return "", false, err
	}
	if tag.RowsAffected() == 1 {
		return next, true, nil
	}
	var found Status
	err = r.pool.QueryRow(ctx, `SELECT status FROM sales_orders WHERE id = $1`, id).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, shared.ErrNotFound
	}
	if err != nil {
		return "", false, err
	}
	return found, false, nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
