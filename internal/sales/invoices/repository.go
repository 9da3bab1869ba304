package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// PgRepository is the PostgreSQL-backed invoice store.
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

func (r *PgRepository) Create(ctx context.Context, invoice Invoice) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `INSERT INTO invoices (number, order_id, customer_id, status, notes, net, tax, gross)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric)
RETURNING id`,
		invoice.Number, invoice.OrderID, invoice.CustomerID, invoice.Status, invoice.Notes,
		invoice.Net.String(), invoice.Tax.String(), invoice.Gross.String()).Scan(&id)
	if err != nil {
		return 0, err
	}
	for _, line := range invoice.Lines {
		_, err = tx.Exec(ctx, `INSERT INTO invoice_lines (invoice_id, product_id, description, quantity, unit_price, tax_rate, revenue_account_id)
VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7)`,
			id, line.ProductID, line.Description, line.Quantity.String(), line.UnitPrice.String(), line.TaxRate.String(), line.RevenueAccountID)
		if err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

const invoiceColumns = `id, number, order_id, customer_id, status, issue_date, due_date, notes, net::text, tax::text, gross::text, created_at, updated_at`

func (r *PgRepository) Get(ctx context.Context, id int64) (Invoice, error) {
	var inv Invoice
	err := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id).
		Scan(&inv.ID, &inv.Number, &inv.OrderID, &inv.CustomerID, &inv.Status, &inv.IssueDate, &inv.DueDate,
			&inv.Notes, &inv.Net, &inv.Tax, &inv.Gross, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.ErrNotFound
	}
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines, err = queryLines(ctx, r.pool, id)
	return inv, err
}

func (r *PgRepository) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
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

	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.OrderID, &inv.CustomerID, &inv.Status, &inv.IssueDate, &inv.DueDate,
			&inv.Notes, &inv.Net, &inv.Tax, &inv.Gross, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q queryer, invoiceID int64) ([]InvoiceLine, error) {
	rows, err := q.Query(ctx, `SELECT id, invoice_id, product_id, description, quantity::text, unit_price::text, tax_rate::text, revenue_account_id
FROM invoice_lines WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InvoiceLine
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.ProductID, &l.Description, &l.Quantity, &l.UnitPrice, &l.TaxRate, &l.RevenueAccountID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// txRepository serves issue and payment transactions.
type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Ledger() ledger.TxRepository {
	return ledger.NewTxRepository(r.tx)
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	var inv Invoice
	err := r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id).
		Scan(&inv.ID, &inv.Number, &inv.OrderID, &inv.CustomerID, &inv.Status, &inv.IssueDate, &inv.DueDate,
			&inv.Notes, &inv.Net, &inv.Tax, &inv.Gross, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.ErrNotFound
	}
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines, err = queryLines(ctx, r.tx, id)
	return inv, err
}

func (r *txRepository) SetInvoiceStatus(ctx context.Context, id int64, status Status, issueDate, dueDate *time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoices SET status = $2, issue_date = $3, due_date = $4, updated_at = now() WHERE id = $1`,
		id, status, issueDate, dueDate)
	return err
}

func (r *txRepository) MarkOrderInvoiced(ctx context.Context, orderID int64) (bool, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE sales_orders SET status = 'invoiced', updated_at = now()
WHERE id = $1 AND status = 'delivered'`, orderID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
