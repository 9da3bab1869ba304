package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates resource not found.
var ErrNotFound = errors.New("not found")

// ErrAlreadyPosted indicates a second posting attempt for the same source
// document. The unique source link raises it even when two transactions
// race past the status guard.
var ErrAlreadyPosted = errors.New("source document already posted")

// ValidationError reports malformed input on a specific field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Validation builds a ValidationError.
func Validation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InvalidTransitionError reports an operation attempted from a disallowed status.
type InvalidTransitionError struct {
	Entity string
	ID     int64
	Status string
	Op     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %d: cannot %s from status %s", e.Entity, e.ID, e.Op, e.Status)
}

// InsufficientStockError reports a stock-out that would drive quantity negative.
type InsufficientStockError struct {
	ProductID int64
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %s, available %s",
		e.ProductID, e.Requested.String(), e.Available.String())
}

// UnbalancedEntryError reports a posting whose debits and credits differ.
// It signals a defect in posting construction and must never reach a caller
// in correct operation.
type UnbalancedEntryError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("unbalanced journal entry: debit %s != credit %s",
		e.Debit.StringFixed(2), e.Credit.StringFixed(2))
}

// ReferentialIntegrityError reports a missing or inactive referenced entity.
type ReferentialIntegrityError struct {
	Entity string
	ID     int64
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("%s %d is missing or inactive", e.Entity, e.ID)
}
