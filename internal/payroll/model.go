// Package payroll manages monthly payroll runs. Paying a run posts the
// gross salary expense to the ledger within the payment transaction.
package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the payroll run lifecycle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusConfirmed Status = "confirmed"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Run is one payroll run for a (year, month) period. At most one
// non-cancelled run may exist per period. Lines snapshot each employee's
// salary at creation; later salary changes do not touch existing runs.
type Run struct {
	ID         int64
	Number     string
	Year       int
	Month      int
	RunDate    time.Time
	Status     Status
	Notes      string
	TotalGross decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Lines      []Line
}

// Line is one employee's gross salary within a run.
type Line struct {
	ID           int64
	RunID        int64
	EmployeeID   int64
	EmployeeName string
	GrossSalary  decimal.Decimal
}

// ListFilter narrows run listings.
type ListFilter struct {
	Status Status
	Year   int
}
