package numbering

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists counters in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NextValue increments and returns the counter for (docType, year). The
// upsert acquires the counter row lock, so concurrent callers serialize on
// the row and each sees a distinct value. Counters are deliberately
// incremented outside document transactions to keep contention off the
// document tables; an aborted caller leaves a gap, never a duplicate.
func (r *Repository) NextValue(ctx context.Context, docType string, year int) (int64, error) {
	var value int64
	err := r.pool.QueryRow(ctx, `INSERT INTO document_counters (doc_type, year, value)
VALUES ($1, $2, 1)
ON CONFLICT (doc_type, year) DO UPDATE SET value = document_counters.value + 1
RETURNING value`, docType, year).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}
