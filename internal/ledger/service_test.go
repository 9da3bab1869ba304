package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type stubNumbers struct {
	n int64
}

func (s *stubNumbers) Next(_ context.Context, docType numbering.DocType) (string, error) {
	s.n++
	return fmt.Sprintf("%s-2026-%06d", docType.Prefix(), s.n), nil
}

// memoryLedger backs Service in tests. WithTx snapshots state and restores
// it when fn fails, mirroring a database rollback.
type memoryLedger struct {
	accounts      map[int64]Account
	entries       map[int64]JournalEntry
	links         map[string]int64
	nextAccountID int64
	nextEntryID   int64
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		accounts: make(map[int64]Account),
		entries:  make(map[int64]JournalEntry),
		links:    make(map[string]int64),
	}
}

func (m *memoryLedger) snapshot() *memoryLedger {
	clone := newMemoryLedger()
	clone.nextAccountID = m.nextAccountID
	clone.nextEntryID = m.nextEntryID
	for k, v := range m.accounts {
		clone.accounts[k] = v
	}
	for k, v := range m.entries {
		clone.entries[k] = v
	}
	for k, v := range m.links {
		clone.links[k] = v
	}
	return clone
}

func (m *memoryLedger) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	saved := m.snapshot()
	if err := fn(ctx, m); err != nil {
		*m = *saved
		return err
	}
	return nil
}

func (m *memoryLedger) GetAccount(_ context.Context, id int64) (Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return Account{}, shared.ErrNotFound
	}
	return account, nil
}

func (m *memoryLedger) GetAccountByCode(_ context.Context, code string) (Account, error) {
	for _, a := range m.accounts {
		if a.Code == code {
			return a, nil
		}
	}
	return Account{}, shared.ErrNotFound
}

func (m *memoryLedger) CreateAccount(_ context.Context, account Account) (int64, error) {
	m.nextAccountID++
	account.ID = m.nextAccountID
	m.accounts[account.ID] = account
	return account.ID, nil
}

func (m *memoryLedger) ListAccounts(_ context.Context, onlyActive bool) ([]Account, error) {
	var out []Account
	for _, a := range m.accounts {
		if onlyActive && !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memoryLedger) SetAccountActive(_ context.Context, id int64, active bool) error {
	account, ok := m.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	account.IsActive = active
	m.accounts[id] = account
	return nil
}

func (m *memoryLedger) InsertJournalEntry(_ context.Context, entry JournalEntry) (int64, error) {
	m.nextEntryID++
	entry.ID = m.nextEntryID
	m.entries[entry.ID] = entry
	return entry.ID, nil
}

func (m *memoryLedger) InsertJournalLines(_ context.Context, entryID int64, lines []JournalEntryLine) error {
	entry := m.entries[entryID]
	entry.Lines = lines
	m.entries[entryID] = entry
	return nil
}

func (m *memoryLedger) LinkSource(_ context.Context, refType string, refID, entryID int64) error {
	key := fmt.Sprintf("%s:%d", refType, refID)
	if _, ok := m.links[key]; ok {
		return ErrAlreadyPosted
	}
	m.links[key] = entryID
	return nil
}

func (m *memoryLedger) GetEntryWithLines(_ context.Context, entryID int64) (JournalEntry, error) {
	entry, ok := m.entries[entryID]
	if !ok {
		return JournalEntry{}, shared.ErrNotFound
	}
	return entry, nil
}

func (m *memoryLedger) ListEntries(_ context.Context) ([]JournalEntry, error) {
	var out []JournalEntry
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

func (m *memoryLedger) TrialBalanceRows(_ context.Context) ([]TrialBalanceRow, error) {
	sums := make(map[int64]*TrialBalanceRow)
	for _, e := range m.entries {
		for _, line := range e.Lines {
			row, ok := sums[line.AccountID]
			if !ok {
				account := m.accounts[line.AccountID]
				row = &TrialBalanceRow{
					AccountID: account.ID,
					Code:      account.Code,
					Name:      account.Name,
					Type:      account.Type,
					Debit:     decimal.Zero,
					Credit:    decimal.Zero,
				}
				sums[line.AccountID] = row
			}
			row.Debit = row.Debit.Add(line.Debit)
			row.Credit = row.Credit.Add(line.Credit)
		}
	}
	var out []TrialBalanceRow
	for _, row := range sums {
		out = append(out, *row)
	}
	return out, nil
}

func seedAccounts(t *testing.T, repo *memoryLedger) (cash, revenue Account) {
	t.Helper()
	cashID, err := repo.CreateAccount(context.Background(), Account{Code: "1000", Name: "Cash", Type: AccountTypeAsset, IsActive: true})
	require.NoError(t, err)
	revenueID, err := repo.CreateAccount(context.Background(), Account{Code: "4000", Name: "Sales Revenue", Type: AccountTypeRevenue, IsActive: true})
	require.NoError(t, err)
	return repo.accounts[cashID], repo.accounts[revenueID]
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPostJournalEntryBalanced(t *testing.T) {
	repo := newMemoryLedger()
	cash, revenue := seedAccounts(t, repo)
	svc := NewService(repo, &stubNumbers{}, nil)

	entry, err := svc.PostJournalEntry(context.Background(), PostingInput{
		Description:   "cash sale",
		ReferenceType: "manual",
		ReferenceID:   1,
		Lines: []PostingLine{
			{AccountID: cash.ID, Debit: amount("246.00")},
			{AccountID: revenue.ID, Credit: amount("246.00")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "JE-2026-000001", entry.Number)
	require.Len(t, entry.Lines, 2)

	stored, err := repo.GetEntryWithLines(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 2)
}

func TestPostJournalEntryUnbalanced(t *testing.T) {
	repo := newMemoryLedger()
	cash, revenue := seedAccounts(t, repo)
	svc := NewService(repo, &stubNumbers{}, nil)

	_, err := svc.PostJournalEntry(context.Background(), PostingInput{
		ReferenceType: "manual",
		ReferenceID:   1,
		Lines: []PostingLine{
			{AccountID: cash.ID, Debit: amount("100.00")},
			{AccountID: revenue.ID, Credit: amount("99.99")},
		},
	})
	var unbalanced *shared.UnbalancedEntryError
	require.ErrorAs(t, err, &unbalanced)
	require.Empty(t, repo.entries)
}

func TestPostJournalEntrySingleLineRejected(t *testing.T) {
	repo := newMemoryLedger()
	cash, _ := seedAccounts(t, repo)
	svc := NewService(repo, &stubNumbers{}, nil)

	_, err := svc.PostJournalEntry(context.Background(), PostingInput{
		ReferenceType: "manual",
		ReferenceID:   1,
		Lines:         []PostingLine{{AccountID: cash.ID, Debit: amount("100.00")}},
	})
	var validation *shared.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "lines", validation.Field)
}

func TestPostJournalEntryBothSidesOnOneLine(t *testing.T) {
	repo := newMemoryLedger()
	cash, revenue := seedAccounts(t, repo)
	svc := NewService(repo, &stubNumbers{}, nil)

	_, err := svc.PostJournalEntry(context.Background(), PostingInput{
		ReferenceType: "manual",
		ReferenceID:   1,
		Lines: []PostingLine{
			{AccountID: cash.ID, Debit: amount("50.00"), Credit: amount("50.00")},
			{AccountID: revenue.ID, Credit: amount("0.00")},
		},
	})
	var validation *shared.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestPostJournalEntryInactiveAccount(t *testing.T) {
	repo := newMemoryLedger()
	cash, revenue := seedAccounts(t, repo)
	require.NoError(t, repo.SetAccountActive(context.Background(), revenue.ID, false))
	svc := NewService(repo, &stubNumbers{}, nil)

	_, err := svc.PostJournalEntry(context.Background(), PostingInput{
		ReferenceType: "manual",
		ReferenceID:   1,
		Lines: []PostingLine{
			{AccountID: cash.ID, Debit: amount("10.00")},
			{AccountID: revenue.ID, Credit: amount("10.00")},
		},
	})
	var referential *shared.ReferentialIntegrityError
	require.ErrorAs(t, err, &referential)
	require.Equal(t, revenue.ID, referential.ID)
}

func TestPostJournalEntryDoublePost(t *testing.T) {
	repo := newMemoryLedger()
	cash, revenue := seedAccounts(t, repo)
	svc := NewService(repo, &stubNumbers{}, nil)

	in := PostingInput{
		ReferenceType: "invoice",
		ReferenceID:   7,
		Lines: []PostingLine{
			{AccountID: cash.ID, Debit: amount("10.00")},
			{AccountID: revenue.ID, Credit: amount("10.00")},
		},
	}
	_, err := svc.PostJournalEntry(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.PostJournalEntry(context.Background(), in)
	require.True(t, errors.Is(err, ErrAlreadyPosted))
	require.Len(t, repo.entries, 1)
}

func TestReverseEntryMirrorsLines(t *testing.T) {
	repo := newMemoryLedger()
	cash, revenue := seedAccounts(t, repo)
	svc := NewService(repo, &stubNumbers{}, nil)

	entry, err := svc.PostJournalEntry(context.Background(), PostingInput{
		ReferenceType: "manual",
		ReferenceID:   1,
		Lines: []PostingLine{
			{AccountID: cash.ID, Debit: amount("75.00")},
			{AccountID: revenue.ID, Credit: amount("75.00")},
		},
	})
	require.NoError(t, err)

	reversal, err := svc.ReverseEntry(context.Background(), entry.ID, "")
	require.NoError(t, err)
	require.Equal(t, "Reversal of "+entry.Number, reversal.Description)
	require.True(t, reversal.Lines[0].Credit.Equal(amount("75.00")))
	require.True(t, reversal.Lines[1].Debit.Equal(amount("75.00")))

	// A second reversal of the same entry hits the source link.
	_, err = svc.ReverseEntry(context.Background(), entry.ID, "")
	require.True(t, errors.Is(err, ErrAlreadyPosted))
}

func TestTrialBalanceGroupedAndBalanced(t *testing.T) {
	repo := newMemoryLedger()
	cash, revenue := seedAccounts(t, repo)
	expenseID, err := repo.CreateAccount(context.Background(), Account{Code: "5000", Name: "Rent", Type: AccountTypeExpense, IsActive: true})
	require.NoError(t, err)
	// No activity on this one; it must not show up.
	_, err = repo.CreateAccount(context.Background(), Account{Code: "2000", Name: "Payables", Type: AccountTypeLiability, IsActive: true})
	require.NoError(t, err)
	svc := NewService(repo, &stubNumbers{}, nil)

	_, err = svc.PostJournalEntry(context.Background(), PostingInput{
		ReferenceType: "manual", ReferenceID: 1,
		Lines: []PostingLine{
			{AccountID: cash.ID, Debit: amount("200.00")},
			{AccountID: revenue.ID, Credit: amount("200.00")},
		},
	})
	require.NoError(t, err)
	_, err = svc.PostJournalEntry(context.Background(), PostingInput{
		ReferenceType: "manual", ReferenceID: 2,
		Lines: []PostingLine{
			{AccountID: expenseID, Debit: amount("80.00")},
			{AccountID: cash.ID, Credit: amount("80.00")},
		},
	})
	require.NoError(t, err)

	tb, err := svc.TrialBalance(context.Background())
	require.NoError(t, err)
	require.True(t, tb.Balanced())
	require.True(t, tb.TotalDebit.Equal(amount("280.00")))

	require.Len(t, tb.Groups, 3)
	require.Equal(t, AccountTypeAsset, tb.Groups[0].Type)
	require.Equal(t, AccountTypeRevenue, tb.Groups[1].Type)
	require.Equal(t, AccountTypeExpense, tb.Groups[2].Type)

	cashRow := tb.Groups[0].Rows[0]
	require.True(t, cashRow.Debit.Equal(amount("200.00")))
	require.True(t, cashRow.Credit.Equal(amount("80.00")))
	require.True(t, cashRow.Net.Equal(amount("120.00")))
}

func TestCreateAccountCodePrefix(t *testing.T) {
	repo := newMemoryLedger()
	svc := NewService(repo, &stubNumbers{}, nil)

	_, err := svc.CreateAccount(context.Background(), CreateAccountInput{
		Code: "9000", Name: "Misc", Type: AccountTypeExpense,
	})
	var validation *shared.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "code", validation.Field)

	account, err := svc.CreateAccount(context.Background(), CreateAccountInput{
		Code: "5100", Name: "Utilities", Type: AccountTypeExpense,
	})
	require.NoError(t, err)
	require.True(t, account.IsActive)
}

func TestCreateAccountMissingParent(t *testing.T) {
	repo := newMemoryLedger()
	svc := NewService(repo, &stubNumbers{}, nil)

	missing := int64(99)
	_, err := svc.CreateAccount(context.Background(), CreateAccountInput{
		Code: "1100", Name: "Bank", Type: AccountTypeAsset, ParentID: &missing,
	})
	var referential *shared.ReferentialIntegrityError
	require.ErrorAs(t, err, &referential)
}
