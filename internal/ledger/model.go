package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates the five account classes.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// typePrefix maps each account type to its mandatory code prefix.
var typePrefix = map[AccountType]string{
	AccountTypeAsset:     "1",
	AccountTypeLiability: "2",
	AccountTypeEquity:    "3",
	AccountTypeRevenue:   "4",
	AccountTypeExpense:   "5",
}

// displayOrder fixes the reporting order of account types.
var displayOrder = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeRevenue,
	AccountTypeExpense,
}

// Valid reports whether the type is one of the five classes.
func (t AccountType) Valid() bool {
	_, ok := typePrefix[t]
	return ok
}

// Prefix returns the code prefix mandated for the type.
func (t AccountType) Prefix() string {
	return typePrefix[t]
}

// Account is a node in the chart of accounts.
type Account struct {
	ID        int64
	Code      string
	Name      string
	Type      AccountType
	ParentID  *int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JournalEntry is an immutable, balanced set of debit/credit lines. There
// is no update or delete; corrections are posted as reversing entries.
type JournalEntry struct {
	ID            int64
	Number        string
	EntryDate     time.Time
	Description   string
	ReferenceType string
	ReferenceID   int64
	CreatedAt     time.Time
	Lines         []JournalEntryLine
}

// JournalEntryLine carries a debit or credit amount for one account.
// Exactly one of Debit/Credit is non-zero.
type JournalEntryLine struct {
	ID        int64
	EntryID   int64
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// TrialBalanceRow summarises activity on one account.
type TrialBalanceRow struct {
	AccountID int64
	Code      string
	Name      string
	Type      AccountType
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Net       decimal.Decimal
}

// TrialBalanceGroup holds rows of one account type in display order.
type TrialBalanceGroup struct {
	Type AccountType
	Rows []TrialBalanceRow
}

// TrialBalance is the full report with grand totals. TotalDebit equals
// TotalCredit whenever every posted entry balanced; the caller treats a
// mismatch as ledger corruption, not as input error.
type TrialBalance struct {
	Groups      []TrialBalanceGroup
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Balanced reports whether grand totals match exactly.
func (tb TrialBalance) Balanced() bool {
	return tb.TotalDebit.Equal(tb.TotalCredit)
}
