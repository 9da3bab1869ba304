package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository abstracts persistence for the service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListEntries(ctx context.Context) ([]JournalEntry, error)
	TrialBalanceRows(ctx context.Context) ([]TrialBalanceRow, error)
	CreateAccount(ctx context.Context, account Account) (int64, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	GetAccountByCode(ctx context.Context, code string) (Account, error)
	ListAccounts(ctx context.Context, onlyActive bool) ([]Account, error)
	SetAccountActive(ctx context.Context, id int64, active bool) error
}

// TxRepository exposes operations available inside a posting transaction.
type TxRepository interface {
	GetAccount(ctx context.Context, id int64) (Account, error)
	InsertJournalEntry(ctx context.Context, entry JournalEntry) (int64, error)
	InsertJournalLines(ctx context.Context, entryID int64, lines []JournalEntryLine) error
	LinkSource(ctx context.Context, refType string, refID, entryID int64) error
	GetEntryWithLines(ctx context.Context, entryID int64) (JournalEntry, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates ledger operations.
type Service struct {
	repo   Repository
	poster *Poster
	audit  AuditPort
}

// NewService builds Service.
func NewService(repo Repository, numbers NumberSource, audit AuditPort) *Service {
	return &Service{repo: repo, poster: NewPoster(numbers), audit: audit}
}

// Poster exposes the posting helper for services that post within their own
// transactions.
func (s *Service) Poster() *Poster {
	return s.poster
}

// PostJournalEntry posts a balanced entry as one atomic unit.
func (s *Service) PostJournalEntry(ctx context.Context, in PostingInput) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		posted, err := s.poster.Post(ctx, tx, in)
		if err != nil {
			return err
		}
		entry = posted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, "journal.post", entry)
	return entry, nil
}

// ReverseEntry posts a mirrored entry correcting an earlier one. The
// original is immutable; the reversal links to it, and the unique source
// link keeps an entry from being reversed twice.
func (s *Service) ReverseEntry(ctx context.Context, entryID int64, description string) (JournalEntry, error) {
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryWithLines(ctx, entryID)
		if err != nil {
			return err
		}
		if description == "" {
			description = fmt.Sprintf("Reversal of %s", original.Number)
		}
		in := PostingInput{
			Description:   description,
			ReferenceType: "reversal",
			ReferenceID:   original.ID,
		}
		for _, line := range original.Lines {
			in.Lines = append(in.Lines, PostingLine{
				AccountID: line.AccountID,
				Debit:     line.Credit,
				Credit:    line.Debit,
			})
		}
		posted, err := s.poster.Post(ctx, tx, in)
		if err != nil {
			return err
		}
		reversal = posted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, "journal.reverse", reversal)
	return reversal, nil
}

// ListEntries returns posted entries, newest first.
func (s *Service) ListEntries(ctx context.Context) ([]JournalEntry, error) {
	return s.repo.ListEntries(ctx)
}

// TrialBalance sums debit and credit per account with nonzero activity,
// grouped by account type in display order. The grand totals are returned
// so callers can cross-check Σdebit == Σcredit.
func (s *Service) TrialBalance(ctx context.Context) (TrialBalance, error) {
	rows, err := s.repo.TrialBalanceRows(ctx)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := TrialBalance{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	byType := make(map[AccountType][]TrialBalanceRow)
	for _, row := range rows {
		if row.Debit.IsZero() && row.Credit.IsZero() {
			continue
		}
		row.Net = row.Debit.Sub(row.Credit)
		byType[row.Type] = append(byType[row.Type], row)
		tb.TotalDebit = tb.TotalDebit.Add(row.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(row.Credit)
	}
	for _, t := range displayOrder {
		if group, ok := byType[t]; ok {
			tb.Groups = append(tb.Groups, TrialBalanceGroup{Type: t, Rows: group})
		}
	}
	return tb, nil
}

// CreateAccount adds an account enforcing the code-prefix invariant.
func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	if in.ParentID != nil {
		if _, err := s.repo.GetAccount(ctx, *in.ParentID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return Account{}, &shared.ReferentialIntegrityError{Entity: "account", ID: *in.ParentID}
			}
			return Account{}, err
		}
	}
	account := Account{
		Code:     in.Code,
		Name:     in.Name,
		Type:     in.Type,
		ParentID: in.ParentID,
		IsActive: true,
	}
	id, err := s.repo.CreateAccount(ctx, account)
	if err != nil {
		return Account{}, err
	}
	return s.repo.GetAccount(ctx, id)
}

// AccountByCode resolves an account by its code.
func (s *Service) AccountByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetAccountByCode(ctx, code)
}

// ListAccounts lists accounts, optionally restricted to active ones.
func (s *Service) ListAccounts(ctx context.Context, onlyActive bool) ([]Account, error) {
	return s.repo.ListAccounts(ctx, onlyActive)
}

// DeactivateAccount soft-disables an account. Historical entries keep
// referencing it; new postings reject it.
func (s *Service) DeactivateAccount(ctx context.Context, id int64) error {
	return s.repo.SetAccountActive(ctx, id, false)
}

func (s *Service) recordAudit(ctx context.Context, action string, entry JournalEntry) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta: map[string]any{
			"number":         entry.Number,
			"reference_type": entry.ReferenceType,
			"reference_id":   entry.ReferenceID,
		},
	})
}
