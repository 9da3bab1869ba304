package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// PostingLine describes one line of a posting request.
type PostingLine struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	EntryDate     time.Time
	Description   string
	ReferenceType string
	ReferenceID   int64
	Lines         []PostingLine
}

// Validate ensures the posting meets the balance invariant before any row
// is written. Amounts are fixed-point; equality is exact.
func (in PostingInput) Validate() error {
	if in.ReferenceType == "" {
		return shared.Validation("reference_type", "required")
	}
	if in.ReferenceID == 0 {
		return shared.Validation("reference_id", "required")
	}
	if len(in.Lines) < 2 {
		return shared.Validation("lines", "a journal entry needs at least two lines")
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return shared.Validation("lines", fmt.Sprintf("line %d missing account", idx))
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return shared.Validation("lines", fmt.Sprintf("line %d negative amount", idx))
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return shared.Validation("lines", fmt.Sprintf("line %d must have exactly one of debit/credit", idx))
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return &shared.UnbalancedEntryError{Debit: debit, Credit: credit}
	}
	return nil
}

// CreateAccountInput groups fields for creating an account.
type CreateAccountInput struct {
	Code     string
	Name     string
	Type     AccountType
	ParentID *int64
}

// Validate checks required fields and the code-prefix invariant.
func (in CreateAccountInput) Validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return shared.Validation("code", "required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return shared.Validation("name", "required")
	}
	if !in.Type.Valid() {
		return shared.Validation("type", "must be one of asset/liability/equity/revenue/expense")
	}
	if !strings.HasPrefix(in.Code, in.Type.Prefix()) {
		return shared.Validation("code", "code for a "+string(in.Type)+" account must start with "+in.Type.Prefix())
	}
	return nil
}
