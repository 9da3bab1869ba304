package deliveries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/sales/orders"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// PgRepository is the PostgreSQL-backed delivery store.
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

func (r *PgRepository) Get(ctx context.Context, id int64) (Delivery, error) {
	var d Delivery
	err := r.pool.QueryRow(ctx, `SELECT id, number, order_id, status, planned_date, actual_date, notes, created_at, updated_at
FROM deliveries WHERE id = $1`, id).
		Scan(&d.ID, &d.Number, &d.OrderID, &d.Status, &d.PlannedDate, &d.ActualDate, &d.Notes, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Delivery{}, shared.ErrNotFound
	}
	if err != nil {
		return Delivery{}, err
	}
	d.Lines, err = queryLines(ctx, r.pool, id)
	return d, err
}

func (r *PgRepository) List(ctx context.Context, filter ListFilter) ([]Delivery, error) {
	query := `SELECT id, number, order_id, status, planned_date, actual_date, notes, created_at, updated_at
FROM deliveries WHERE 1=1`
	var args []any
	if filter.OrderID != 0 {
		args = append(args, filter.OrderID)
		query += fmt.Sprintf(` AND order_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.Number, &d.OrderID, &d.Status, &d.PlannedDate, &d.ActualDate, &d.Notes, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q queryer, deliveryID int64) ([]DeliveryLine, error) {
	rows, err := q.Query(ctx, `SELECT id, delivery_id, order_line_id, product_id, quantity::text
FROM delivery_lines WHERE delivery_id = $1 ORDER BY id`, deliveryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeliveryLine
	for rows.Next() {
		var l DeliveryLine
		if err := rows.Scan(&l.ID, &l.DeliveryID, &l.OrderLineID, &l.ProductID, &l.Quantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// txRepository serves shipping transactions. It reaches into the sales
// order tables directly because delivered quantities and the order lock
// must live in the same transaction as the stock movement.
type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Stock() inventory.TxRepository {
	return inventory.NewTxRepository(r.tx)
}

func (r *txRepository) InsertDelivery(ctx context.Context, delivery Delivery) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO deliveries (number, order_id, status, planned_date, notes)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`,
		delivery.Number, delivery.OrderID, delivery.Status, delivery.PlannedDate, delivery.Notes).Scan(&id)
	if err != nil {
		return 0, err
	}
	for _, line := range delivery.Lines {
		_, err = r.tx.Exec(ctx, `INSERT INTO delivery_lines (delivery_id, order_line_id, product_id, quantity)
VALUES ($1, $2, $3, $4::numeric)`, id, line.OrderLineID, line.ProductID, line.Quantity.String())
		if err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (r *txRepository) GetDeliveryForUpdate(ctx context.Context, id int64) (Delivery, error) {
	var d Delivery
	err := r.tx.QueryRow(ctx, `SELECT id, number, order_id, status, planned_date, actual_date, notes, created_at, updated_at
FROM deliveries WHERE id = $1 FOR UPDATE`, id).
		Scan(&d.ID, &d.Number, &d.OrderID, &d.Status, &d.PlannedDate, &d.ActualDate, &d.Notes, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Delivery{}, shared.ErrNotFound
	}
	if err != nil {
		return Delivery{}, err
	}
	d.Lines, err = queryLines(ctx, r.tx, id)
	return d, err
}

func (r *txRepository) SetDeliveryStatus(ctx context.Context, id int64, status Status, actualDate *time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE deliveries SET status = $2, actual_date = $3, updated_at = now() WHERE id = $1`,
		id, status, actualDate)
	return err
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, orderID int64) (orders.SalesOrder, error) {
	var o orders.SalesOrder
	err := r.tx.QueryRow(ctx, `SELECT id, number, customer_id, status, order_date, notes, net::text, tax::text, gross::text, created_at, updated_at
FROM sales_orders WHERE id = $1 FOR UPDATE`, orderID).
		Scan(&o.ID, &o.Number, &o.CustomerID, &o.Status, &o.OrderDate, &o.Notes, &o.Net, &o.Tax, &o.Gross, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.SalesOrder{}, shared.ErrNotFound
	}
	if err != nil {
		return orders.SalesOrder{}, err
	}

	rows, err := r.tx.Query(ctx, `SELECT id, order_id, product_id, description, quantity::text, unit_price::text, tax_rate::text, delivered_quantity::text
FROM sales_order_lines WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return orders.SalesOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l orders.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Description, &l.Quantity, &l.UnitPrice, &l.TaxRate, &l.DeliveredQuantity); err != nil {
			return orders.SalesOrder{}, err
		}
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}

func (r *txRepository) AddDeliveredQuantity(ctx context.Context, orderLineID int64, quantity decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE sales_order_lines SET delivered_quantity = delivered_quantity + $2::numeric WHERE id = $1`,
		orderLineID, quantity.String())
	return err
}

func (r *txRepository) SetOrderStatus(ctx context.Context, orderID int64, status orders.Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE sales_orders SET status = $2, updated_at = now() WHERE id = $1`, orderID, status)
	return err
}
