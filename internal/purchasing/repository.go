package purchasing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// PgRepository is the PostgreSQL-backed purchasing store.
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

func (r *PgRepository) CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `INSERT INTO purchase_orders (number, vendor_id, status, order_date, notes, net, tax, gross)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric)
RETURNING id`,
		order.Number, order.VendorID, order.Status, order.OrderDate, order.Notes,
		order.Net.String(), order.Tax.String(), order.Gross.String()).Scan(&id)
	if err != nil {
		return 0, err
	}
	for _, line := range order.Lines {
		_, err = tx.Exec(ctx, `INSERT INTO purchase_order_lines (order_id, product_id, description, quantity, unit_cost, tax_rate)
VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric)`,
			id, line.ProductID, line.Description, line.Quantity.String(), line.UnitCost.String(), line.TaxRate.String())
		if err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

const poColumns = `id, number, vendor_id, status, order_date, notes, net::text, tax::text, gross::text, created_at, updated_at`

func (r *PgRepository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	var o PurchaseOrder
	err := r.pool.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id = $1`, id).
		Scan(&o.ID, &o.Number, &o.VendorID, &o.Status, &o.OrderDate, &o.Notes, &o.Net, &o.Tax, &o.Gross, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, shared.ErrNotFound
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	o.Lines, err = queryOrderLines(ctx, r.pool, id)
	return o, err
}

func (r *PgRepository) ListOrders(ctx context.Context, filter POFilter) ([]PurchaseOrder, error) {
	query := `SELECT ` + poColumns + ` FROM purchase_orders WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.VendorID != 0 {
		args = append(args, filter.VendorID)
		query += fmt.Sprintf(` AND vendor_id = $%d`, len(args))
	}
	query += ` ORDER BY id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PurchaseOrder
	for rows.Next() {
		var o PurchaseOrder
		if err := rows.Scan(&o.ID, &o.Number, &o.VendorID, &o.Status, &o.OrderDate, &o.Notes, &o.Net, &o.Tax, &o.Gross, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PgRepository) TransitionOrder(ctx context.Context, id int64, expected []POStatus, next POStatus) (POStatus, bool, error) {
	expectedStrings := make([]string, len(expected))
	for i, s := range expected {
		expectedStrings[i] = string(s)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE purchase_orders SET status = $2, updated_at = now()
WHERE id = $1 AND status = ANY($3)`, id, next, expectedStrings)
	if err != nil {
		return "", false, err
	}
	if tag.RowsAffected() == 1 {
		return next, true, nil
	}
	var found POStatus
	err = r.pool.QueryRow(ctx, `SELECT status FROM purchase_orders WHERE id = $1`, id).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, shared.ErrNotFound
	}
	if err != nil {
		return "", false, err
	}
	return found, false, nil
}

func (r *PgRepository) CreateInvoice(ctx context.Context, invoice VendorInvoice) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `INSERT INTO vendor_invoices (number, vendor_id, order_id, status, reference, notes, net, tax, gross)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric)
RETURNING id`,
		invoice.Number, invoice.VendorID, invoice.OrderID, invoice.Status, invoice.Reference, invoice.Notes,
		invoice.Net.String(), invoice.Tax.String(), invoice.Gross.String()).Scan(&id)
	if err != nil {
		return 0, err
	}
	for _, line := range invoice.Lines {
		_, err = tx.Exec(ctx, `INSERT INTO vendor_invoice_lines (invoice_id, product_id, description, quantity, unit_cost, tax_rate)
VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric)`,
			id, line.ProductID, line.Description, line.Quantity.String(), line.UnitCost.String(), line.TaxRate.String())
		if err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

const viColumns = `id, number, vendor_id, order_id, status, reference, notes, net::text, tax::text, gross::text, created_at, updated_at`

func (r *PgRepository) GetInvoice(ctx context.Context, id int64) (VendorInvoice, error) {
	var inv VendorInvoice
	err := r.pool.QueryRow(ctx, `SELECT `+viColumns+` FROM vendor_invoices WHERE id = $1`, id).
		Scan(&inv.ID, &inv.Number, &inv.VendorID, &inv.OrderID, &inv.Status, &inv.Reference, &inv.Notes,
			&inv.Net, &inv.Tax, &inv.Gross, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return VendorInvoice{}, shared.ErrNotFound
	}
	if err != nil {
		return VendorInvoice{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, product_id, description, quantity::text, unit_cost::text, tax_rate::text
FROM vendor_invoice_lines WHERE invoice_id = $1 ORDER BY id`, id)
	if err != nil {
		return VendorInvoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l VendorInvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.ProductID, &l.Description, &l.Quantity, &l.UnitCost, &l.TaxRate); err != nil {
			return VendorInvoice{}, err
		}
		inv.Lines = append(inv.Lines, l)
	}
	return inv, rows.Err()
}

func (r *PgRepository) ListInvoices(ctx context.Context, filter VIFilter) ([]VendorInvoice, error) {
	query := `SELECT ` + viColumns + ` FROM vendor_invoices WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.VendorID != 0 {
		args = append(args, filter.VendorID)
		query += fmt.Sprintf(` AND vendor_id = $%d`, len(args))
	}
	query += ` ORDER BY id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VendorInvoice
	for rows.Next() {
		var inv VendorInvoice
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.VendorID, &inv.OrderID, &inv.Status, &inv.Reference, &inv.Notes,
			&inv.Net, &inv.Tax, &inv.Gross, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *PgRepository) TransitionInvoice(ctx context.Context, id int64, expected []VIStatus, next VIStatus) (VIStatus, bool, error) {
	expectedStrings := make([]string, len(expected))
	for i, s := range expected {
		expectedStrings[i] = string(s)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE vendor_invoices SET status = $2, updated_at = now()
WHERE id = $1 AND status = ANY($3)`, id, next, expectedStrings)
	if err != nil {
		return "", false, err
	}
	if tag.RowsAffected() == 1 {
		return next, true, nil
	}
	var found VIStatus
	err = r.pool.QueryRow(ctx, `SELECT status FROM vendor_invoices WHERE id = $1`, id).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, shared.ErrNotFound
	}
	if err != nil {
		return "", false, err
	}
	return found, false, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryOrderLines(ctx context.Context, q queryer, orderID int64) ([]PurchaseOrderLine, error) {
	rows, err := q.Query(ctx, `SELECT id, order_id, product_id, description, quantity::text, unit_cost::text, tax_rate::text
FROM purchase_order_lines WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PurchaseOrderLine
	for rows.Next() {
		var l PurchaseOrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Description, &l.Quantity, &l.UnitCost, &l.TaxRate); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// txRepository serves receiving transactions.
type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Stock() inventory.TxRepository {
	return inventory.NewTxRepository(r.tx)
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	var o PurchaseOrder
	err := r.tx.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, id).
		Scan(&o.ID, &o.Number, &o.VendorID, &o.Status, &o.OrderDate, &o.Notes, &o.Net, &o.Tax, &o.Gross, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, shared.ErrNotFound
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	o.Lines, err = queryOrderLines(ctx, r.tx, id)
	return o, err
}

func (r *txRepository) SetOrderStatus(ctx context.Context, id int64, status POStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}
