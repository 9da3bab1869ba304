package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/partners"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository abstracts persistence for the service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	// Create inserts the run and its lines. A non-cancelled run already
	// covering the period makes it fail with a ValidationError.
	Create(ctx context.Context, run Run) (int64, error)
	Get(ctx context.Context, id int64) (Run, error)
	List(ctx context.Context, filter ListFilter) ([]Run, error)
	Transition(ctx context.Context, id int64, expected []Status, next Status) (Status, bool, error)
}

// TxRepository exposes run operations inside a payment transaction.
type TxRepository interface {
	GetRunForUpdate(ctx context.Context, id int64) (Run, error)
	SetRunStatus(ctx context.Context, id int64, status Status) error
	Ledger() ledger.TxRepository
}

// EmployeePort lists active employees for line generation.
type EmployeePort interface {
	ListEmployees(ctx context.Context) ([]partners.Partner, error)
}

// AccountPort resolves configured posting accounts by code.
type AccountPort interface {
	GetAccountByCode(ctx context.Context, code string) (ledger.Account, error)
}

// NumberSource issues document numbers.
type NumberSource interface {
	Next(ctx context.Context, docType numbering.DocType) (string, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// AccountCodes names the accounts payroll postings touch.
type AccountCodes struct {
	SalaryExpense string
	SalaryPayable string
}

// CreateInput groups fields for creating a payroll run.
type CreateInput struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Notes string `json:"notes"`
}

// Service coordinates payroll operations.
type Service struct {
	repo      Repository
	employees EmployeePort
	accounts  AccountPort
	numbers   NumberSource
	poster    *ledger.Poster
	codes     AccountCodes
	audit     AuditPort
	now       func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, employees EmployeePort, accounts AccountPort,
	numbers NumberSource, poster *ledger.Poster, codes AccountCodes, audit AuditPort) *Service {
	return &Service{
		repo:      repo,
		employees: employees,
		accounts:  accounts,
		numbers:   numbers,
		poster:    poster,
		codes:     codes,
		audit:     audit,
		now:       time.Now,
	}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create builds a draft run for the period, snapshotting each active
// employee's current monthly salary. Employees without a salary are
// skipped, not an error.
func (s *Service) Create(ctx context.Context, in CreateInput) (Run, error) {
	if in.Year < 2000 || in.Year > 2200 {
		return Run{}, shared.Validation("year", "out of range")
	}
	if in.Month < 1 || in.Month > 12 {
		return Run{}, shared.Validation("month", "must be between 1 and 12")
	}

	employees, err := s.employees.ListEmployees(ctx)
	if err != nil {
		return Run{}, err
	}
	run := Run{
		Year:    in.Year,
		Month:   in.Month,
		RunDate: s.now().UTC(),
		Status:  StatusDraft,
		Notes:   in.Notes,
	}
	total := decimal.Zero
	for _, e := range employees {
		if e.IsArchived || e.Employee == nil || !e.Employee.MonthlySalary.IsPositive() {
			continue
		}
		run.Lines = append(run.Lines, Line{
			EmployeeID:   e.ID,
			EmployeeName: e.Name,
			GrossSalary:  e.Employee.MonthlySalary,
		})
		total = total.Add(e.Employee.MonthlySalary)
	}
	run.TotalGross = total

	run.Number, err = s.numbers.Next(ctx, numbering.DocTypePayrollRun)
	if err != nil {
		return Run{}, err
	}
	id, err := s.repo.Create(ctx, run)
	if err != nil {
		return Run{}, err
	}
	s.recordAudit(ctx, "payroll.create", id)
	return s.repo.Get(ctx, id)
}

// Confirm moves a draft run to confirmed.
func (s *Service) Confirm(ctx context.Context, id int64) (Run, error) {
	run, err := s.repo.Get(ctx, id)
	if err != nil {
		return Run{}, err
	}
	if len(run.Lines) == 0 {
		return Run{}, shared.Validation("lines", "a payroll run needs at least one line to be confirmed")
	}
	if err := s.transition(ctx, id, []Status{StatusDraft}, StatusConfirmed, "confirm"); err != nil {
		return Run{}, err
	}
	s.recordAudit(ctx, "payroll.confirm", id)
	return s.repo.Get(ctx, id)
}

// Pay settles a confirmed run: the salary expense posts against salaries
// payable and the run closes, in one transaction. The ledger's source
// link makes a second payment attempt fail even if two requests race.
func (s *Service) Pay(ctx context.Context, id int64) (Run, error) {
	expense, err := s.accounts.GetAccountByCode(ctx, s.codes.SalaryExpense)
	if err != nil {
		return Run{}, fmt.Errorf("resolve salary expense account %q: %w", s.codes.SalaryExpense, err)
	}
	payable, err := s.accounts.GetAccountByCode(ctx, s.codes.SalaryPayable)
	if err != nil {
		return Run{}, fmt.Errorf("resolve salary payable account %q: %w", s.codes.SalaryPayable, err)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		run, err := tx.GetRunForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if run.Status != StatusConfirmed {
			return &shared.InvalidTransitionError{Entity: "payroll_run", ID: id, Status: string(run.Status), Op: "pay"}
		}
		in := ledger.PostingInput{
			Description:   fmt.Sprintf("Payroll %04d-%02d", run.Year, run.Month),
			ReferenceType: "payroll",
			ReferenceID:   run.ID,
			Lines: []ledger.PostingLine{
				{AccountID: expense.ID, Debit: run.TotalGross},
				{AccountID: payable.ID, Credit: run.TotalGross},
			},
		}
		if _, err := s.poster.Post(ctx, tx.Ledger(), in); err != nil {
			return err
		}
		return tx.SetRunStatus(ctx, id, StatusPaid)
	})
	if err != nil {
		return Run{}, err
	}
	s.recordAudit(ctx, "payroll.pay", id)
	return s.repo.Get(ctx, id)
}

// Cancel drops a draft run, freeing the period for a new one.
func (s *Service) Cancel(ctx context.Context, id int64) (Run, error) {
	if err := s.transition(ctx, id, []Status{StatusDraft}, StatusCancelled, "cancel"); err != nil {
		return Run{}, err
	}
	s.recordAudit(ctx, "payroll.cancel", id)
	return s.repo.Get(ctx, id)
}

// Get returns one run with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Run, error) {
	return s.repo.Get(ctx, id)
}

// List returns runs matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Run, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) transition(ctx context.Context, id int64, expected []Status, next Status, op string) error {
	found, ok, err := s.repo.Transition(ctx, id, expected, next)
	if err != nil {
		return err
	}
	if !ok {
		return &shared.InvalidTransitionError{Entity: "payroll_run", ID: id, Status: string(found), Op: op}
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "payroll_run",
		EntityID: fmt.Sprintf("%d", id),
	})
}
