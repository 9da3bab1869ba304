package partners

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// PgRepository is the PostgreSQL-backed partner store. Capability
// profiles live as nullable columns on the partners row; a null marker
// column means the capability is absent.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository constructs a PgRepository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const partnerColumns = `id, name, email, phone, address,
is_customer, credit_limit::text, payment_terms_days,
is_vendor, bank_account,
is_employee, monthly_salary::text, hire_date, job_title,
is_archived, created_at, updated_at`

func (r *PgRepository) Create(ctx context.Context, partner Partner) (int64, error) {
	args := flatten(partner)
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO partners
(name, email, phone, address,
 is_customer, credit_limit, payment_terms_days,
 is_vendor, bank_account,
 is_employee, monthly_salary, hire_date, job_title)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11::numeric, $12, $13)
RETURNING id`, args...).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PgRepository) Update(ctx context.Context, partner Partner) error {
	args := append([]any{partner.ID}, flatten(partner)...)
	tag, err := r.pool.Exec(ctx, `UPDATE partners SET
name = $2, email = $3, phone = $4, address = $5,
is_customer = $6, credit_limit = $7::numeric, payment_terms_days = $8,
is_vendor = $9, bank_account = $10,
is_employee = $11, monthly_salary = $12::numeric, hire_date = $13, job_title = $14,
updated_at = now()
WHERE id = $1`, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id int64) (Partner, error) {
	return scanPartner(r.pool.QueryRow(ctx, `SELECT `+partnerColumns+` FROM partners WHERE id = $1`, id))
}

func (r *PgRepository) List(ctx context.Context, filter ListFilter) ([]Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE 1=1`
	var args []any
	if !filter.IncludeArchived {
		query += ` AND NOT is_archived`
	}
	switch filter.Role {
	case RoleCustomer:
		query += ` AND is_customer`
	case RoleVendor:
		query += ` AND is_vendor`
	case RoleEmployee:
		query += ` AND is_employee`
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(` AND (name ILIKE $%d OR email ILIKE $%d)`, len(args), len(args))
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Partner
	for rows.Next() {
		partner, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, partner)
	}
	return out, rows.Err()
}

func (r *PgRepository) SetArchived(ctx context.Context, id int64, archived bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE partners SET is_archived = $2, updated_at = now() WHERE id = $1`, id, archived)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func flatten(p Partner) []any {
	var (
		creditLimit any
		termsDays   any
		bankAccount any
		salary      any
		hireDate    any
		jobTitle    any
	)
	if p.Customer != nil {
		creditLimit = p.Customer.CreditLimit.String()
		termsDays = p.Customer.PaymentTermsDays
	}
	if p.Vendor != nil {
		bankAccount = p.Vendor.BankAccount
	}
	if p.Employee != nil {
		salary = p.Employee.MonthlySalary.String()
		if !p.Employee.HireDate.IsZero() {
			hireDate = p.Employee.HireDate
		}
		jobTitle = p.Employee.JobTitle
	}
	return []any{
		p.Name, p.Email, p.Phone, p.Address,
		p.Customer != nil, creditLimit, termsDays,
		p.Vendor != nil, bankAccount,
		p.Employee != nil, salary, hireDate, jobTitle,
	}
}

func scanPartner(row pgx.Row) (Partner, error) {
	var (
		p           Partner
		isCustomer  bool
		creditLimit *decimal.Decimal
		termsDays   *int
		isVendor    bool
		bankAccount *string
		isEmployee  bool
		salary      *decimal.Decimal
		hireDate    *time.Time
		jobTitle    *string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.Address,
		&isCustomer, &creditLimit, &termsDays,
		&isVendor, &bankAccount,
		&isEmployee, &salary, &hireDate, &jobTitle,
		&p.IsArchived, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Partner{}, shared.ErrNotFound
	}
	if err != nil {
		return Partner{}, err
	}
	if isCustomer {
		profile := &CustomerProfile{}
		if creditLimit != nil {
			profile.CreditLimit = *creditLimit
		}
		if termsDays != nil {
			profile.PaymentTermsDays = *termsDays
		}
		p.Customer = profile
	}
	if isVendor {
		profile := &VendorProfile{}
		if bankAccount != nil {
			profile.BankAccount = *bankAccount
		}
		p.Vendor = profile
	}
	if isEmployee {
		profile := &EmployeeProfile{}
		if salary != nil {
			profile.MonthlySalary = *salary
		}
		if hireDate != nil {
			profile.HireDate = *hireDate
		}
		if jobTitle != nil {
			profile.JobTitle = *jobTitle
		}
		p.Employee = profile
	}
	return p, nil
}
