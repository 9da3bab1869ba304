// Package numbering issues human-readable document numbers, unique and
// strictly increasing per document type.
package numbering

import (
	"context"
	"fmt"
	"time"
)

// DocType identifies a numbered document series.
type DocType string

const (
	DocTypeSalesOrder    DocType = "sales_order"
	DocTypeDelivery      DocType = "delivery"
	DocTypeInvoice       DocType = "invoice"
	DocTypePurchaseOrder DocType = "purchase_order"
	DocTypeVendorInvoice DocType = "vendor_invoice"
	DocTypePayrollRun    DocType = "payroll_run"
	DocTypeJournalEntry  DocType = "journal_entry"
)

var prefixes = map[DocType]string{
	DocTypeSalesOrder:    "SO",
	DocTypeDelivery:      "DL",
	DocTypeInvoice:       "INV",
	DocTypePurchaseOrder: "PO",
	DocTypeVendorInvoice: "VIN",
	DocTypePayrollRun:    "PAY",
	DocTypeJournalEntry:  "JE",
}

// Prefix returns the series prefix for the type, or empty when unknown.
func (t DocType) Prefix() string {
	return prefixes[t]
}

// CounterRepository increments the per-series counter atomically. Two
// concurrent callers must never observe the same value.
type CounterRepository interface {
	NextValue(ctx context.Context, docType string, year int) (int64, error)
}

// Service formats counter values as document numbers.
type Service struct {
	repo CounterRepository
	now  func() time.Time
}

// NewService builds a Service.
func NewService(repo CounterRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Next returns the next number in the series, formatted PREFIX-YEAR-SEQ.
func (s *Service) Next(ctx context.Context, docType DocType) (string, error) {
	prefix, ok := prefixes[docType]
	if !ok {
		return "", fmt.Errorf("numbering: unknown document type %q", docType)
	}
	year := s.now().UTC().Year()
	value, err := s.repo.NextValue(ctx, string(docType), year)
	if err != nil {
		return "", fmt.Errorf("numbering: next value for %s: %w", docType, err)
	}
	return fmt.Sprintf("%s-%d-%06d", prefix, year, value), nil
}
