package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// PgRepository is the PostgreSQL-backed ledger store.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository constructs a PgRepository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// WithTx runs fn inside a RepeatableRead transaction. The tx-scoped
// repository it passes is only valid for the duration of fn.
func (r *PgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *PgRepository) ListEntries(ctx context.Context) ([]JournalEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, entry_number, entry_date, description, reference_type, reference_id, created_at
FROM journal_entries
ORDER BY entry_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.Number, &e.EntryDate, &e.Description, &e.ReferenceType, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *PgRepository) TrialBalanceRows(ctx context.Context) ([]TrialBalanceRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.code, a.name, a.type,
       COALESCE(SUM(l.debit), 0)::text,
       COALESCE(SUM(l.credit), 0)::text
FROM accounts a
JOIN journal_entry_lines l ON l.account_id = a.id
GROUP BY a.id, a.code, a.name, a.type
ORDER BY a.code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrialBalanceRow
	for rows.Next() {
		var row TrialBalanceRow
		if err := rows.Scan(&row.AccountID, &row.Code, &row.Name, &row.Type, &row.Debit, &row.Credit); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *PgRepository) CreateAccount(ctx context.Context, account Account) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO accounts (code, name, type, parent_id, is_active)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`, account.Code, account.Name, account.Type, account.ParentID, account.IsActive).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, shared.Validation("code", "account code already exists")
		}
		return 0, err
	}
	return id, nil
}

func (r *PgRepository) GetAccount(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, accountSelect+` WHERE id = $1`, id))
}

func (r *PgRepository) GetAccountByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, accountSelect+` WHERE code = $1`, code))
}

func (r *PgRepository) ListAccounts(ctx context.Context, onlyActive bool) ([]Account, error) {
	query := accountSelect
	if onlyActive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY code`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *PgRepository) SetAccountActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const accountSelect = `SELECT id, code, name, type, parent_id, is_active, created_at, updated_at
FROM accounts`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

// txRepository gives Poster and the service access to ledger tables within
// an open transaction.
type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction so other modules can post
// journal entries atomically with their own writes.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) GetAccount(ctx context.Context, id int64) (Account, error) {
	var a Account
	err := r.tx.QueryRow(ctx, accountSelect+` WHERE id = $1`, id).
		Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, entry JournalEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (entry_number, entry_date, description, reference_type, reference_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`, entry.Number, entry.EntryDate, entry.Description, entry.ReferenceType, entry.ReferenceID).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *txRepository) InsertJournalLines(ctx context.Context, entryID int64, lines []JournalEntryLine) error {
	for _, line := range lines {
		_, err := r.tx.Exec(ctx, `INSERT INTO journal_entry_lines (entry_id, account_id, debit, credit)
VALUES ($1, $2, $3::numeric, $4::numeric)`, entryID, line.AccountID, line.Debit.String(), line.Credit.String())
		if err != nil {
			return err
		}
	}
	return nil
}

// LinkSource records the (reference_type, reference_id) pair that produced
// the entry. A unique index on the pair turns a second posting attempt into
// ErrAlreadyPosted.
func (r *txRepository) LinkSource(ctx context.Context, refType string, refID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO journal_source_links (reference_type, reference_id, entry_id)
VALUES ($1, $2, $3)`, refType, refID, entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyPosted
		}
		return err
	}
	return nil
}

func (r *txRepository) GetEntryWithLines(ctx context.Context, entryID int64) (JournalEntry, error) {
	var e JournalEntry
	err := r.tx.QueryRow(ctx, `SELECT id, entry_number, entry_date, description, reference_type, reference_id, created_at
FROM journal_entries WHERE id = $1`, entryID).
		Scan(&e.ID, &e.Number, &e.EntryDate, &e.Description, &e.ReferenceType, &e.ReferenceID, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return JournalEntry{}, shared.ErrNotFound
	}
	if err != nil {
		return JournalEntry{}, err
	}

	rows, err := r.tx.Query(ctx, `SELECT id, entry_id, account_id, debit::text, credit::text
FROM journal_entry_lines WHERE entry_id = $1 ORDER BY id`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l JournalEntryLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.AccountID, &l.Debit, &l.Credit); err != nil {
			return JournalEntry{}, err
		}
		e.Lines = append(e.Lines, l)
	}
	return e, rows.Err()
}
