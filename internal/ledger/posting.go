package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ErrAlreadyPosted indicates a second posting for the same source document.
var ErrAlreadyPosted = shared.ErrAlreadyPosted

// NumberSource issues document numbers. Satisfied by numbering.Service.
type NumberSource interface {
	Next(ctx context.Context, docType numbering.DocType) (string, error)
}

// Poster writes validated journal entries through a transaction-scoped
// repository. Invoice issue and payroll payment use it to post inside
// their own transactions, so the status change and the entry commit or
// roll back together.
type Poster struct {
	numbers NumberSource
	now     func() time.Time
}

// NewPoster builds a Poster.
func NewPoster(numbers NumberSource) *Poster {
	return &Poster{numbers: numbers, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (p *Poster) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// Post validates the input, verifies every referenced account is active,
// and writes the entry, its lines and the source link. The caller supplies
// the transaction scope; nothing is written when any step fails.
func (p *Poster) Post(ctx context.Context, tx TxRepository, in PostingInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	for _, line := range in.Lines {
		account, err := tx.GetAccount(ctx, line.AccountID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return JournalEntry{}, &shared.ReferentialIntegrityError{Entity: "account", ID: line.AccountID}
			}
			return JournalEntry{}, err
		}
		if !account.IsActive {
			return JournalEntry{}, &shared.ReferentialIntegrityError{Entity: "account", ID: line.AccountID}
		}
	}

	number, err := p.numbers.Next(ctx, numbering.DocTypeJournalEntry)
	if err != nil {
		return JournalEntry{}, err
	}

	entryDate := in.EntryDate
	if entryDate.IsZero() {
		entryDate = p.now().UTC()
	}
	entry := JournalEntry{
		Number:        number,
		EntryDate:     entryDate,
		Description:   in.Description,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
	}
	entryID, err := tx.InsertJournalEntry(ctx, entry)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("ledger: insert entry: %w", err)
	}
	entry.ID = entryID

	lines := make([]JournalEntryLine, 0, len(in.Lines))
	for _, line := range in.Lines {
		lines = append(lines, JournalEntryLine{
			EntryID:   entryID,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
		})
	}
	if err := tx.InsertJournalLines(ctx, entryID, lines); err != nil {
		return JournalEntry{}, fmt.Errorf("ledger: insert lines: %w", err)
	}
	if err := tx.LinkSource(ctx, in.ReferenceType, in.ReferenceID, entryID); err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}
