package dashboard

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository reads the counts straight from the document tables.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository constructs a PgRepository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) count(ctx context.Context, query string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, query).Scan(&n)
	return n, err
}

func (r *PgRepository) CountOpenSalesOrders(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT count(*) FROM sales_orders
WHERE status IN ('draft', 'confirmed', 'partially_delivered', 'delivered')`)
}

func (r *PgRepository) CountOpenPurchaseOrders(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT count(*) FROM purchase_orders WHERE status IN ('draft', 'confirmed')`)
}

func (r *PgRepository) CountDraftInvoices(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT count(*) FROM invoices WHERE status = 'draft'`)
}

func (r *PgRepository) CountActivePartners(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT count(*) FROM partners WHERE NOT is_archived`)
}

func (r *PgRepository) CountActiveProducts(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT count(*) FROM products WHERE NOT is_archived`)
}

func (r *PgRepository) CountLowStockProducts(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT count(*) FROM products
WHERE track_inventory AND NOT is_archived AND stock_quantity <= reorder_point`)
}
