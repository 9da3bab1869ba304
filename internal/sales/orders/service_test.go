package orders

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/partners"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryOrders struct {
	orders map[int64]SalesOrder
	nextID int64
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{orders: make(map[int64]SalesOrder)}
}

func (m *memoryOrders) Create(_ context.Context, order SalesOrder) (int64, error) {
	m.nextID++
	order.ID = m.nextID
	for i := range order.Lines {
		order.Lines[i].ID = int64(i + 1)
		order.Lines[i].OrderID = order.ID
	}
	m.orders[order.ID] = order
	return order.ID, nil
}

func (m *memoryOrders) Get(_ context.Context, id int64) (SalesOrder, error) {
	order, ok := m.orders[id]
	if !ok {
		return SalesOrder{}, shared.ErrNotFound
	}
	return order, nil
}

func (m *memoryOrders) List(_ context.Context, filter ListFilter) ([]SalesOrder, error) {
	var out []SalesOrder
	for _, o := range m.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.CustomerID != 0 && o.CustomerID != filter.CustomerID {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *memoryOrders) TransitionStatus(_ context.Context, id int64, expected []Status, next Status) (Status, bool, error) {
	order, ok := m.orders[id]
	if !ok {
		return "", false, shared.ErrNotFound
	}
	for _, status := range expected {
		if order.Status == status {
			order.Status = next
			m.orders[id] = order
			return next, true, nil
		}
	}
	return order.Status, false, nil
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
	n int64
}

func (s *stubNumbers) Next(_ context.Context, docType numbering.DocType) (string, error) {
	s.n++
	return fmt.Sprintf("%s-2026-%06d", docType.Prefix(), s.n), nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newFixture() (*memoryOrders, *Service) {
	repo := newMemoryOrders()
	partnerPort := &stubPartners{partners: map[int64]partners.Partner{
		1: {ID: 1, Name: "Acme", Customer: &partners.CustomerProfile{PaymentTermsDays: 30}},
		2: {ID: 2, Name: "Supplier Only", Vendor: &partners.VendorProfile{}},
	}}
	productPort := &stubProducts{products: map[int64]catalog.Product{
		10: {ID: 10, SKU: "WID-1", Name: "Widget", Kind: catalog.KindGoods, UnitPrice: dec("100.00"), TaxRate: dec("23"), TrackInventory: true},
		11: {ID: 11, SKU: "SRV-1", Name: "Install", Kind: catalog.KindService, UnitPrice: dec("80.00"), TaxRate: dec("23")},
	}}
	svc := NewService(repo, partnerPort, productPort, &stubNumbers{}, nil)
	return repo, svc
}

func TestCreateOrderSnapshotsCatalog(t *testing.T) {
	_, svc := newFixture()

	order, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID: 1,
		Lines: []OrderLineInput{
			{ProductID: 10, Quantity: dec("2")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "SO-2026-000001", order.Number)
	require.Equal(t, StatusDraft, order.Status)
	require.Equal(t, "Widget", order.Lines[0].Description)
	require.True(t, order.Lines[0].UnitPrice.Equal(dec("100.00")))
	require.True(t, order.Net.Equal(dec("200.00")))
	require.True(t, order.Tax.Equal(dec("46.00")))
	require.True(t, order.Gross.Equal(dec("246.00")))
}

func TestCreateOrderPriceOverride(t *testing.T) {
	_, svc := newFixture()

	override := dec("90.00")
	order, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID: 1,
		Lines: []OrderLineInput{
			{ProductID: 10, Quantity: dec("1"), UnitPrice: &override},
		},
	})
	require.NoError(t, err)
	require.True(t, order.Lines[0].UnitPrice.Equal(override))
	require.True(t, order.Net.Equal(dec("90.00")))
}

func TestCreateOrderRejectsNonCustomer(t *testing.T) {
	_, svc := newFixture()

	_, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID: 2,
		Lines:      []OrderLineInput{{ProductID: 10, Quantity: dec("1")}},
	})
	var validation *shared.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "customer_id", validation.Field)
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	_, svc := newFixture()

	_, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID: 1,
		Lines:      []OrderLineInput{{ProductID: 99, Quantity: dec("1")}},
	})
	var referential *shared.ReferentialIntegrityError
	require.ErrorAs(t, err, &referential)
}

func TestConfirmRequiresLines(t *testing.T) {
	_, svc := newFixture()

	order, err := svc.Create(context.Background(), CreateOrderInput{CustomerID: 1})
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), order.ID)
	var validation *shared.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestLifecycleTransitions(t *testing.T) {
	_, svc := newFixture()

	order, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID: 1,
		Lines:      []OrderLineInput{{ProductID: 10, Quantity: dec("2")}},
	})
	require.NoError(t, err)

	confirmed, err := svc.Confirm(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, confirmed.Status)

	// Confirming twice is a conflict, not an idempotent no-op.
	_, err = svc.Confirm(context.Background(), order.ID)
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, string(StatusConfirmed), transition.Status)

	cancelled, err := svc.Cancel(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Confirm(context.Background(), order.ID)
	require.ErrorAs(t, err, &transition)
}

func TestDeliveryStatusDerivation(t *testing.T) {
	lines := []OrderLine{
		{Quantity: dec("5"), DeliveredQuantity: dec("0")},
		{Quantity: dec("3"), DeliveredQuantity: dec("0")},
	}
	require.Equal(t, StatusConfirmed, DeliveryStatus(lines))

	lines[0].DeliveredQuantity = dec("2")
	require.Equal(t, StatusPartiallyDelivered, DeliveryStatus(lines))

	lines[0].DeliveredQuantity = dec("5")
	lines[1].DeliveredQuantity = dec("3")
	require.Equal(t, StatusDelivered, DeliveryStatus(lines))
}
