package invoices

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/partners"
	"github.com/meridian-erp/meridian-erp/internal/sales/orders"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// fakeLedger implements ledger.TxRepository in memory so issuing tests
// can inspect the posted entries.
type fakeLedger struct {
	accounts map[int64]ledger.Account
	entries  map[int64]ledger.JournalEntry
	links    map[string]int64
	nextID   int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		accounts: make(map[int64]ledger.Account),
		entries:  make(map[int64]ledger.JournalEntry),
		links:    make(map[string]int64),
	}
}

func (f *fakeLedger) GetAccount(_ context.Context, id int64) (ledger.Account, error) {
	account, ok := f.accounts[id]
	if !ok {
		return ledger.Account{}, shared.ErrNotFound
	}
	return account, nil
}

func (f *fakeLedger) GetAccountByCode(_ context.Context, code string) (ledger.Account, error) {
	for _, a := range f.accounts {
		if a.Code == code {
			return a, nil
		}
	}
	return ledger.Account{}, shared.ErrNotFound
}

func (f *fakeLedger) InsertJournalEntry(_ context.Context, entry ledger.JournalEntry) (int64, error) {
	f.nextID++
	entry.ID = f.nextID
	f.entries[entry.ID] = entry
	return entry.ID, nil
}

func (f *fakeLedger) InsertJournalLines(_ context.Context, entryID int64, lines []ledger.JournalEntryLine) error {
	entry := f.entries[entryID]
	entry.Lines = lines
	f.entries[entryID] = entry
	return nil
}

func (f *fakeLedger) LinkSource(_ context.Context, refType string, refID, entryID int64) error {
	key := fmt.Sprintf("%s:%d", refType, refID)
	if _, ok := f.links[key]; ok {
		return ledger.ErrAlreadyPosted
	}
	f.links[key] = entryID
	return nil
}

func (f *fakeLedger) GetEntryWithLines(_ context.Context, entryID int64) (ledger.JournalEntry, error) {
	entry, ok := f.entries[entryID]
	if !ok {
		return ledger.JournalEntry{}, shared.ErrNotFound
	}
	return entry, nil
}

// memoryInvoices backs Service in tests, covering invoices, the orders
// they bill and the ledger they post to. WithTx snapshots state and
// restores it when fn fails.
type memoryInvoices struct {
	invoices map[int64]Invoice
	orders   map[int64]orders.SalesOrder
	ledger   *fakeLedger
	nextID   int64
}

func newMemoryInvoices() *memoryInvoices {
	return &memoryInvoices{
		invoices: make(map[int64]Invoice),
		orders:   make(map[int64]orders.SalesOrder),
		ledger:   newFakeLedger(),
	}
}

func (m *memoryInvoices) clone() *memoryInvoices {
	c := newMemoryInvoices()
	c.nextID = m.nextID
	for k, v := range m.invoices {
		v.Lines = append([]InvoiceLine(nil), v.Lines...)
		c.invoices[k] = v
	}
	for k, v := range m.orders {
		c.orders[k] = v
	}
	c.ledger.nextID = m.ledger.nextID
	for k, v := range m.ledger.accounts {
		c.ledger.accounts[k] = v
	}
	for k, v := range m.ledger.entries {
		c.ledger.entries[k] = v
	}
	for k, v := range m.ledger.links {
		c.ledger.links[k] = v
	}
	return c
}

func (m *memoryInvoices) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	saved := m.clone()
	if err := fn(ctx, m); err != nil {
		*m = *saved
		return err
	}
	return nil
}

func (m *memoryInvoices) Create(_ context.Context, invoice Invoice) (int64, error) {
	m.nextID++
	invoice.ID = m.nextID
	for i := range invoice.Lines {
		invoice.Lines[i].ID = int64(i + 1)
		invoice.Lines[i].InvoiceID = invoice.ID
	}
	m.invoices[invoice.ID] = invoice
	return invoice.ID, nil
}

func (m *memoryInvoices) Get(_ context.Context, id int64) (Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, shared.ErrNotFound
	}
	return inv, nil
}

func (m *memoryInvoices) List(_ context.Context, filter ListFilter) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (m *memoryInvoices) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return m.Get(ctx, id)
}

func (m *memoryInvoices) SetInvoiceStatus(_ context.Context, id int64, status Status, issueDate, dueDate *time.Time) error {
	inv := m.invoices[id]
	inv.Status = status
	inv.IssueDate = issueDate
	inv.DueDate = dueDate
	m.invoices[id] = inv
	return nil
}

func (m *memoryInvoices) MarkOrderInvoiced(_ context.Context, orderID int64) (bool, error) {
	order, ok := m.orders[orderID]
	if !ok {
		return false, nil
	}
	if order.Status != orders.StatusDelivered {
		return false, nil
	}
	order.Status = orders.StatusInvoiced
	m.orders[orderID] = order
	return true, nil
}

func (m *memoryInvoices) Ledger() ledger.TxRepository {
	return m.ledger
}

type stubOrders struct {
	repo *memoryInvoices
}

func (s *stubOrders) Get(_ context.Context, id int64) (orders.SalesOrder, error) {
	order, ok := s.repo.orders[id]
	if !ok {
		return orders.SalesOrder{}, shared.ErrNotFound
	}
	return order, nil
}

type stubPartners struct{}

func (stubPartners) Get(_ context.Context, id int64) (partners.Partner, error) {
	return partners.Partner{
		ID:       id,
		Name:     "Acme",
		Customer: &partners.CustomerProfile{PaymentTermsDays: 30},
	}, nil
}

type stubProducts struct {
	products map[int64]catalog.Product
}

func (s *stubProducts) Get(_ context.Context, id int64) (catalog.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, shared.ErrNotFound
	}
	return p, nil
}

type stubNumbers struct {
	n int64
}

func (s *stubNumbers) Next(_ context.Context, docType numbering.DocType) (string, error) {
	s.n++
	return fmt.Sprintf("%s-2026-%06d", docType.Prefix(), s.n), nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

const (
	receivableID = int64(1)
	cashID       = int64(2)
	taxID        = int64(3)
	revenueID    = int64(4)
	hardwareID   = int64(5)
)

func newFixture() (*memoryInvoices, *Service) {
	repo := newMemoryInvoices()
	repo.ledger.accounts = map[int64]ledger.Account{
		receivableID: {ID: receivableID, Code: "1200", Type: ledger.AccountTypeAsset, IsActive: true},
		cashID:       {ID: cashID, Code: "1000", Type: ledger.AccountTypeAsset, IsActive: true},
		taxID:        {ID: taxID, Code: "2100", Type: ledger.AccountTypeLiability, IsActive: true},
		revenueID:    {ID: revenueID, Code: "4000", Type: ledger.AccountTypeRevenue, IsActive: true},
		hardwareID:   {ID: hardwareID, Code: "4100", Type: ledger.AccountTypeRevenue, IsActive: true},
	}
	repo.orders[1] = orders.SalesOrder{
		ID:         1,
		Number:     "SO-2026-000001",
		CustomerID: 7,
		Status:     orders.StatusDelivered,
		Net:        dec("200.00"),
		Tax:        dec("46.00"),
		Gross:      dec("246.00"),
		Lines: []orders.OrderLine{
			{ID: 1, OrderID: 1, ProductID: 10, Description: "Widget", Quantity: dec("2"), UnitPrice: dec("100.00"), TaxRate: dec("23"), DeliveredQuantity: dec("2")},
		},
	}
	hardware := hardwareID
	products := &stubProducts{products: map[int64]catalog.Product{
		10: {ID: 10, Name: "Widget", Kind: catalog.KindGoods, UnitPrice: dec("100.00"), TaxRate: dec("23"), RevenueAccountID: &hardware},
	}}
	codes := AccountCodes{Receivable: "1200", TaxPayable: "2100", DefaultRevenue: "4000"}
	svc := NewService(repo, &stubOrders{repo: repo}, stubPartners{}, products, repo.ledger,
		&stubNumbers{}, ledger.NewPoster(&stubNumbers{}), codes, nil)
	return repo, svc
}

func TestCreateFromOrderCopiesSnapshots(t *testing.T) {
	_, svc := newFixture()

	invoice, err := svc.CreateFromOrder(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "INV-2026-000001", invoice.Number)
	require.Equal(t, StatusDraft, invoice.Status)
	require.Len(t, invoice.Lines, 1)
	require.Equal(t, "Widget", invoice.Lines[0].Description)
	require.NotNil(t, invoice.Lines[0].RevenueAccountID)
	require.Equal(t, hardwareID, *invoice.Lines[0].RevenueAccountID)
	require.True(t, invoice.Net.Equal(dec("200.00")))
	require.True(t, invoice.Tax.Equal(dec("46.00")))
	require.True(t, invoice.Gross.Equal(dec("246.00")))
}

func TestCreateFromOrderRequiresDelivered(t *testing.T) {
	repo, svc := newFixture()
	order := repo.orders[1]
	order.Status = orders.StatusConfirmed
	repo.orders[1] = order

	_, err := svc.CreateFromOrder(context.Background(), 1)
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestIssuePostsRevenueEntry(t *testing.T) {
	repo, svc := newFixture()

	invoice, err := svc.CreateFromOrder(context.Background(), 1)
	require.NoError(t, err)

	issued, err := svc.Issue(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Equal(t, StatusIssued, issued.Status)
	require.NotNil(t, issued.IssueDate)
	require.NotNil(t, issued.DueDate)
	require.Equal(t, issued.IssueDate.AddDate(0, 0, 30), *issued.DueDate)

	require.Equal(t, orders.StatusInvoiced, repo.orders[1].Status)

	require.Len(t, repo.ledger.entries, 1)
	var entry ledger.JournalEntry
	for _, e := range repo.ledger.entries {
		entry = e
	}
	require.Equal(t, "invoice", entry.ReferenceType)
	require.Len(t, entry.Lines, 3)

	debit := decimal.Zero
	credit := decimal.Zero
	for _, line := range entry.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	require.True(t, debit.Equal(credit))
	require.True(t, debit.Equal(dec("246.00")))

	require.True(t, entry.Lines[0].Debit.Equal(dec("246.00")))
	require.Equal(t, receivableID, entry.Lines[0].AccountID)
	require.Equal(t, hardwareID, entry.Lines[1].AccountID)
	require.True(t, entry.Lines[1].Credit.Equal(dec("200.00")))
	require.Equal(t, taxID, entry.Lines[2].AccountID)
	require.True(t, entry.Lines[2].Credit.Equal(dec("46.00")))
}

func TestIssueTwiceRejected(t *testing.T) {
	_, svc := newFixture()

	invoice, err := svc.CreateFromOrder(context.Background(), 1)
	require.NoError(t, err)

	_, err = svc.Issue(context.Background(), invoice.ID)
	require.NoError(t, err)

	_, err = svc.Issue(context.Background(), invoice.ID)
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestIssueBackstopAgainstDoublePost(t *testing.T) {
	repo, svc := newFixture()

	invoice, err := svc.CreateFromOrder(context.Background(), 1)
	require.NoError(t, err)
	_, err = svc.Issue(context.Background(), invoice.ID)
	require.NoError(t, err)

	// Force the status guard open, as a racing transaction would see it.
	tampered := repo.invoices[invoice.ID]
	tampered.Status = StatusDraft
	repo.invoices[invoice.ID] = tampered
	order := repo.orders[1]
	order.Status = orders.StatusDelivered
	repo.orders[1] = order

	_, err = svc.Issue(context.Background(), invoice.ID)
	require.True(t, errors.Is(err, ledger.ErrAlreadyPosted))
	require.Len(t, repo.ledger.entries, 1)
}

func TestIssueRollsBackWhenOrderMoved(t *testing.T) {
	repo, svc := newFixture()

	invoice, err := svc.CreateFromOrder(context.Background(), 1)
	require.NoError(t, err)

	// The order slipped back before issuing, e.g. a concurrent invoice won.
	order := repo.orders[1]
	order.Status = orders.StatusInvoiced
	repo.orders[1] = order

	_, err = svc.Issue(context.Background(), invoice.ID)
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)

	// The posting rolled back with the failed transition.
	require.Empty(t, repo.ledger.entries)
	require.Equal(t, StatusDraft, repo.invoices[invoice.ID].Status)
}

func TestCreateManualDefaultsFromProduct(t *testing.T) {
	_, svc := newFixture()

	fifty := dec("50.00")
	zero := decimal.Zero
	invoice, err := svc.Create(context.Background(), CreateInput{
		CustomerID: 7,
		Lines: []LineInput{
			{ProductID: 10, Quantity: dec("2")},
			{Description: "Consulting", Quantity: dec("1"), UnitPrice: &fifty, TaxRate: &zero},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "INV-2026-000001", invoice.Number)
	require.Nil(t, invoice.OrderID)
	require.Len(t, invoice.Lines, 2)
	require.Equal(t, "Widget", invoice.Lines[0].Description)
	require.True(t, invoice.Lines[0].UnitPrice.Equal(dec("100.00")))
	require.NotNil(t, invoice.Lines[0].RevenueAccountID)
	require.Equal(t, hardwareID, *invoice.Lines[0].RevenueAccountID)
	require.Nil(t, invoice.Lines[1].ProductID)
	require.True(t, invoice.Net.Equal(dec("250.00")))
	require.True(t, invoice.Tax.Equal(dec("46.00")))
	require.True(t, invoice.Gross.Equal(dec("296.00")))
}

func TestCreateManualRequiresLines(t *testing.T) {
	_, svc := newFixture()

	_, err := svc.Create(context.Background(), CreateInput{CustomerID: 7})
	var validation *shared.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestMarkPaidChangesStatusOnly(t *testing.T) {
	repo, svc := newFixture()

	invoice, err := svc.CreateFromOrder(context.Background(), 1)
	require.NoError(t, err)
	_, err = svc.Issue(context.Background(), invoice.ID)
	require.NoError(t, err)

	paid, err := svc.MarkPaid(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)

	// Settlement never posts; only the issue entry exists.
	require.Len(t, repo.ledger.entries, 1)
}

func TestMarkPaidRequiresIssued(t *testing.T) {
	_, svc := newFixture()

	invoice, err := svc.CreateFromOrder(context.Background(), 1)
	require.NoError(t, err)

	_, err = svc.MarkPaid(context.Background(), invoice.ID)
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestCancelDraftOnly(t *testing.T) {
	_, svc := newFixture()

	invoice, err := svc.CreateFromOrder(context.Background(), 1)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Cancel(context.Background(), invoice.ID)
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}
