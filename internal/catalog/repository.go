package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// PgRepository is the PostgreSQL-backed product store.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository constructs a PgRepository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const productColumns = `id, sku, name, kind, unit_price::text, tax_rate::text, track_inventory,
stock_quantity::text, reorder_point::text, revenue_account_id, is_archived, created_at, updated_at`

func (r *PgRepository) Create(ctx context.Context, product Product) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO products
(sku, name, kind, unit_price, tax_rate, track_inventory, stock_quantity, reorder_point, revenue_account_id)
VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, 0, $7::numeric, $8)
RETURNING id`,
		product.SKU, product.Name, product.Kind, product.UnitPrice.String(), product.TaxRate.String(),
		product.TrackInventory, product.ReorderPoint.String(), product.RevenueAccountID).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, shared.Validation("sku", "sku already exists")
		}
		return 0, err
	}
	return id, nil
}

func (r *PgRepository) Update(ctx context.Context, product Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET
sku = $2, name = $3, kind = $4, unit_price = $5::numeric, tax_rate = $6::numeric,
track_inventory = $7, reorder_point = $8::numeric, revenue_account_id = $9, updated_at = now()
WHERE id = $1`,
		product.ID, product.SKU, product.Name, product.Kind, product.UnitPrice.String(),
		product.TaxRate.String(), product.TrackInventory, product.ReorderPoint.String(), product.RevenueAccountID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.Validation("sku", "sku already exists")
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (r *PgRepository) GetBySKU(ctx context.Context, sku string) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE sku = $1`, sku))
}

func (r *PgRepository) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	var args []any
	if !filter.IncludeArchived {
		query += ` AND NOT is_archived`
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		query += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(` AND (sku ILIKE $%d OR name ILIKE $%d)`, len(args), len(args))
	}
	query += ` ORDER BY sku`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Kind, &p.UnitPrice, &p.TaxRate, &p.TrackInventory,
			&p.StockQuantity, &p.ReorderPoint, &p.RevenueAccountID, &p.IsArchived, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PgRepository) SetArchived(ctx context.Context, id int64, archived bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET is_archived = $2, updated_at = now() WHERE id = $1`, id, archived)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Kind, &p.UnitPrice, &p.TaxRate, &p.TrackInventory,
		&p.StockQuantity, &p.ReorderPoint, &p.RevenueAccountID, &p.IsArchived, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}
	return p, nil
}
