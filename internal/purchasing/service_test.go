package purchasing

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/partners"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// memoryPurchasing backs Service in tests, covering orders, invoices and
// the stock that receiving moves. WithTx snapshots state and restores it
// when fn fails, mirroring a database rollback.
type memoryPurchasing struct {
	orders    map[int64]PurchaseOrder
	invoices  map[int64]VendorInvoice
	stocks    map[int64]inventory.StockInfo
	movements []inventory.StockMovement
	nextID    int64
}

func newMemoryPurchasing() *memoryPurchasing {
	return &memoryPurchasing{
		orders:   make(map[int64]PurchaseOrder),
		invoices: make(map[int64]VendorInvoice),
		stocks:   make(map[int64]inventory.StockInfo),
	}
}

func (m *memoryPurchasing) clone() *memoryPurchasing {
	c := newMemoryPurchasing()
	c.nextID = m.nextID
	for k, v := range m.orders {
		v.Lines = append([]PurchaseOrderLine(nil), v.Lines...)
		c.orders[k] = v
	}
	for k, v := range m.invoices {
		v.Lines = append([]VendorInvoiceLine(nil), v.Lines...)
		c.invoices[k] = v
	}
	for k, v := range m.stocks {
		c.stocks[k] = v
	}
	c.movements = append([]inventory.StockMovement(nil), m.movements...)
	return c
}

func (m *memoryPurchasing) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	saved := m.clone()
	if err := fn(ctx, m); err != nil {
		*m = *saved
		return err
	}
	return nil
}

func (m *memoryPurchasing) CreateOrder(_ context.Context, order PurchaseOrder) (int64, error) {
	m.nextID++
	order.ID = m.nextID
	for i := range order.Lines {
		order.Lines[i].ID = int64(i + 1)
		order.Lines[i].OrderID = order.ID
	}
	m.orders[order.ID] = order
	return order.ID, nil
}

func (m *memoryPurchasing) GetOrder(_ context.Context, id int64) (PurchaseOrder, error) {
	o, ok := m.orders[id]
	if !ok {
		return PurchaseOrder{}, shared.ErrNotFound
	}
	return o, nil
}

func (m *memoryPurchasing) ListOrders(_ context.Context, filter POFilter) ([]PurchaseOrder, error) {
	var out []PurchaseOrder
	for _, o := range m.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.VendorID != 0 && o.VendorID != filter.VendorID {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *memoryPurchasing) TransitionOrder(_ context.Context, id int64, expected []POStatus, next POStatus) (POStatus, bool, error) {
	o, ok := m.orders[id]
	if !ok {
		return "", false, shared.ErrNotFound
	}
	for _, want := range expected {
		if o.Status == want {
			o.Status = next
			m.orders[id] = o
			return next, true, nil
		}
	}
	return o.Status, false, nil
}

func (m *memoryPurchasing) CreateInvoice(_ context.Context, invoice VendorInvoice) (int64, error) {
	m.nextID++
	invoice.ID = m.nextID
	for i := range invoice.Lines {
		invoice.Lines[i].ID = int64(i + 1)
		invoice.Lines[i].InvoiceID = invoice.ID
	}
	m.invoices[invoice.ID] = invoice
	return invoice.ID, nil
}

func (m *memoryPurchasing) GetInvoice(_ context.Context, id int64) (VendorInvoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return VendorInvoice{}, shared.ErrNotFound
	}
	return inv, nil
}

func (m *memoryPurchasing) ListInvoices(_ context.Context, filter VIFilter) ([]VendorInvoice, error) {
	var out []VendorInvoice
	for _, inv := range m.invoices {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		if filter.VendorID != 0 && inv.VendorID != filter.VendorID {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (m *memoryPurchasing) TransitionInvoice(_ context.Context, id int64, expected []VIStatus, next VIStatus) (VIStatus, bool, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return "", false, shared.ErrNotFound
	}
	for _, want := range expected {
		if inv.Status == want {
			inv.Status = next
			m.invoices[id] = inv
			return next, true, nil
		}
	}
	return inv.Status, false, nil
}

func (m *memoryPurchasing) GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return m.GetOrder(ctx, id)
}

func (m *memoryPurchasing) SetOrderStatus(_ context.Context, id int64, status POStatus) error {
	o := m.orders[id]
	o.Status = status
	m.orders[id] = o
	return nil
}

func (m *memoryPurchasing) Stock() inventory.TxRepository {
	return m
}

func (m *memoryPurchasing) GetStockForUpdate(_ context.Context, productID int64) (inventory.StockInfo, error) {
	info, ok := m.stocks[productID]
	if !ok {
		return inventory.StockInfo{}, shared.ErrNotFound
	}
	return info, nil
}

func (m *memoryPurchasing) UpdateStock(_ context.Context, productID int64, quantity decimal.Decimal) error {
	info := m.stocks[productID]
	info.Quantity = quantity
	m.stocks[productID] = info
	return nil
}

func (m *memoryPurchasing) InsertMovement(_ context.Context, movement inventory.StockMovement) (int64, error) {
	movement.ID = int64(len(m.movements) + 1)
	m.movements = append(m.movements, movement)
	return movement.ID, nil
}

type stubPartners struct {
	partners map[int64]partners.Partner
}

func (s *stubPartners) Get(_ context.Context, id int64) (partners.Partner, error) {
	p, ok := s.partners[id]
	if !ok {
		return partners.Partner{}, shared.ErrNotFound
	}
	return p, nil
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
	n map[numbering.DocType]int64
}

func (s *stubNumbers) Next(_ context.Context, docType numbering.DocType) (string, error) {
	if s.n == nil {
		s.n = make(map[numbering.DocType]int64)
	}
	s.n[docType]++
	return fmt.Sprintf("%s-2026-%06d", docType.Prefix(), s.n[docType]), nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newFixture() (*memoryPurchasing, *Service) {
	repo := newMemoryPurchasing()
	repo.stocks[10] = inventory.StockInfo{ProductID: 10, Name: "Widget", Tracked: true, Quantity: dec("2")}
	partnerPort := &stubPartners{partners: map[int64]partners.Partner{
		1: {ID: 1, Name: "Acme Supplies", Vendor: &partners.VendorProfile{}},
		2: {ID: 2, Name: "Retail Customer", Customer: &partners.CustomerProfile{}},
	}}
	productPort := &stubProducts{products: map[int64]catalog.Product{
		10: {ID: 10, Name: "Widget", Kind: catalog.KindGoods, TrackInventory: true},
		11: {ID: 11, Name: "Assembly", Kind: catalog.KindService},
	}}
	svc := NewService(repo, partnerPort, productPort, &stubNumbers{}, inventory.NewTxApplier(false), nil)
	return repo, svc
}

func createOrder(t *testing.T, svc *Service) PurchaseOrder {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		VendorID: 1,
		Lines: []OrderLineInput{
			{ProductID: 10, Quantity: dec("5"), UnitCost: dec("40"), TaxRate: dec("23")},
			{ProductID: 11, Quantity: dec("1"), UnitCost: dec("100"), TaxRate: dec("23")},
		},
	})
	require.NoError(t, err)
	return order
}

func TestCreateOrderSnapshotsAndTotals(t *testing.T) {
	_, svc := newFixture()

	order := createOrder(t, svc)
	require.Equal(t, "PO-2026-000001", order.Number)
	require.Equal(t, POStatusDraft, order.Status)
	require.Len(t, order.Lines, 2)
	require.Equal(t, "Widget", order.Lines[0].Description)
	require.True(t, order.Net.Equal(dec("300")))
	require.True(t, order.Tax.Equal(dec("69")))
	require.True(t, order.Gross.Equal(dec("369")))
}

func TestCreateOrderRequiresVendorCapability(t *testing.T) {
	_, svc := newFixture()

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		VendorID: 2,
		Lines:    []OrderLineInput{{ProductID: 10, Quantity: dec("1"), UnitCost: dec("10")}},
	})
	var validation *shared.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestConfirmOrderNeedsLines(t *testing.T) {
	_, svc := newFixture()

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{VendorID: 1})
	require.NoError(t, err)

	_, err = svc.ConfirmOrder(context.Background(), order.ID)
	var validation *shared.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestReceiveOrderMovesTrackedStockIn(t *testing.T) {
	repo, svc := newFixture()

	order := createOrder(t, svc)
	_, err := svc.ConfirmOrder(context.Background(), order.ID)
	require.NoError(t, err)

	received, err := svc.ReceiveOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusReceived, received.Status)

	// Only the tracked goods line moved; the service line is skipped.
	require.True(t, repo.stocks[10].Quantity.Equal(dec("7")))
	require.Len(t, repo.movements, 1)
	require.Equal(t, inventory.MovementIn, repo.movements[0].Kind)
	require.Equal(t, "purchase_order", repo.movements[0].ReferenceType)
	require.Equal(t, order.ID, repo.movements[0].ReferenceID)
}

func TestReceiveOrderRequiresConfirmed(t *testing.T) {
	_, svc := newFixture()

	order := createOrder(t, svc)
	_, err := svc.ReceiveOrder(context.Background(), order.ID)
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestReceiveOrderTwiceRejected(t *testing.T) {
	repo, svc := newFixture()

	order := createOrder(t, svc)
	_, err := svc.ConfirmOrder(context.Background(), order.ID)
	require.NoError(t, err)
	_, err = svc.ReceiveOrder(context.Background(), order.ID)
	require.NoError(t, err)

	_, err = svc.ReceiveOrder(context.Background(), order.ID)
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	require.Len(t, repo.movements, 1)
}

func TestCancelReceivedOrderRejected(t *testing.T) {
	_, svc := newFixture()

	order := createOrder(t, svc)
	_, err := svc.ConfirmOrder(context.Background(), order.ID)
	require.NoError(t, err)
	_, err = svc.ReceiveOrder(context.Background(), order.ID)
	require.NoError(t, err)

	_, err = svc.CancelOrder(context.Background(), order.ID)
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestCreateInvoiceFromOrderCopiesSnapshots(t *testing.T) {
	_, svc := newFixture()

	order := createOrder(t, svc)
	_, err := svc.ConfirmOrder(context.Background(), order.ID)
	require.NoError(t, err)

	invoice, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		OrderID:   &order.ID,
		Reference: "ACME-4711",
	})
	require.NoError(t, err)
	require.Equal(t, "VIN-2026-000001", invoice.Number)
	require.Equal(t, order.VendorID, invoice.VendorID)
	require.NotNil(t, invoice.OrderID)
	require.Len(t, invoice.Lines, 2)
	require.True(t, invoice.Gross.Equal(order.Gross))
}

func TestCreateInvoiceFromDraftOrderRejected(t *testing.T) {
	_, svc := newFixture()

	order := createOrder(t, svc)
	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{OrderID: &order.ID})
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestCreateManualInvoice(t *testing.T) {
	_, svc := newFixture()

	invoice, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		VendorID:  1,
		Reference: "UTIL-2026-08",
		Lines:     []OrderLineInput{{Description: "Electricity", Quantity: dec("1"), UnitCost: dec("250"), TaxRate: dec("23")}},
	})
	require.NoError(t, err)
	require.Nil(t, invoice.OrderID)
	require.Nil(t, invoice.Lines[0].ProductID)
	require.True(t, invoice.Gross.Equal(dec("307.5")))
}

func TestInvoiceStatusChain(t *testing.T) {
	_, svc := newFixture()

	invoice, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		VendorID: 1,
		Lines:    []OrderLineInput{{Description: "Freight", Quantity: dec("1"), UnitCost: dec("80")}},
	})
	require.NoError(t, err)

	// Paying a draft invoice skips the received step and is rejected.
	_, err = svc.MarkInvoicePaid(context.Background(), invoice.ID)
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)

	received, err := svc.MarkInvoiceReceived(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Equal(t, VIStatusReceived, received.Status)

	paid, err := svc.MarkInvoicePaid(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Equal(t, VIStatusPaid, paid.Status)

	_, err = svc.CancelInvoice(context.Background(), invoice.ID)
	require.ErrorAs(t, err, &transition)
}
