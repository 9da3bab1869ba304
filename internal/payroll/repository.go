package payroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// PgRepository is the PostgreSQL-backed payroll store.
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

// Create inserts the run and its lines. The partial unique index on
// (period_year, period_month) over non-cancelled runs backs the
// in-transaction existence check.
func (r *PgRepository) Create(ctx context.Context, run Run) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payroll_runs
WHERE period_year = $1 AND period_month = $2 AND status <> 'cancelled')`, run.Year, run.Month).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, shared.Validation("period", "a payroll run for this period already exists")
	}

	var id int64
	err = tx.QueryRow(ctx, `INSERT INTO payroll_runs (number, period_year, period_month, run_date, status, notes, total_gross)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric)
RETURNING id`,
		run.Number, run.Year, run.Month, run.RunDate, run.Status, run.Notes, run.TotalGross.String()).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, shared.Validation("period", "a payroll run for this period already exists")
		}
		return 0, err
	}
	for _, line := range run.Lines {
		_, err = tx.Exec(ctx, `INSERT INTO payroll_lines (run_id, employee_id, employee_name, gross_salary)
VALUES ($1, $2, $3, $4::numeric)`,
			id, line.EmployeeID, line.EmployeeName, line.GrossSalary.String())
		if err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

const runColumns = `id, number, period_year, period_month, run_date, status, notes, total_gross::text, created_at, updated_at`

func (r *PgRepository) Get(ctx context.Context, id int64) (Run, error) {
	var run Run
	err := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM payroll_runs WHERE id = $1`, id).
		Scan(&run.ID, &run.Number, &run.Year, &run.Month, &run.RunDate, &run.Status, &run.Notes,
			&run.TotalGross, &run.CreatedAt, &run.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, shared.ErrNotFound
	}
	if err != nil {
		return Run{}, err
	}
	run.Lines, err = queryRunLines(ctx, r.pool, id)
	return run, err
}

func (r *PgRepository) List(ctx context.Context, filter ListFilter) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM payroll_runs WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.Year != 0 {
		args = append(args, filter.Year)
		query += fmt.Sprintf(` AND period_year = $%d`, len(args))
	}
	query += ` ORDER BY period_year DESC, period_month DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Number, &run.Year, &run.Month, &run.RunDate, &run.Status, &run.Notes,
			&run.TotalGross, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *PgRepository) Transition(ctx context.Context, id int64, expected []Status, next Status) (Status, bool, error) {
	expectedStrings := make([]string, len(expected))
	for i, s := range expected {
		expectedStrings[i] = string(s)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE payroll_runs SET status = $2, updated_at = now()
WHERE id = $1 AND status = ANY($3)`, id, next, expectedStrings)
	if err != nil {
		return "", false, err
	}
	if tag.RowsAffected() == 1 {
		return next, true, nil
	}
	var found Status
	err = r.pool.QueryRow(ctx, `SELECT status FROM payroll_runs WHERE id = $1`, id).Scan(&found)
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

func queryRunLines(ctx context.Context, q queryer, runID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, run_id, employee_id, employee_name, gross_salary::text
FROM payroll_lines WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.RunID, &l.EmployeeID, &l.EmployeeName, &l.GrossSalary); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// txRepository serves payment transactions.
type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Ledger() ledger.TxRepository {
	return ledger.NewTxRepository(r.tx)
}

func (r *txRepository) GetRunForUpdate(ctx context.Context, id int64) (Run, error) {
	var run Run
	err := r.tx.QueryRow(ctx, `SELECT `+runColumns+` FROM payroll_runs WHERE id = $1 FOR UPDATE`, id).
		Scan(&run.ID, &run.Number, &run.Year, &run.Month, &run.RunDate, &run.Status, &run.Notes,
			&run.TotalGross, &run.CreatedAt, &run.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, shared.ErrNotFound
	}
	if err != nil {
		return Run{}, err
	}
	run.Lines, err = queryRunLines(ctx, r.tx, id)
	return run, err
}

func (r *txRepository) SetRunStatus(ctx context.Context, id int64, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE payroll_runs SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}
