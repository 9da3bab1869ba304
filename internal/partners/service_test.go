package partners

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryPartners struct {
	partners map[int64]Partner
	nextID   int64
}

func newMemoryPartners() *memoryPartners {
	return &memoryPartners{partners: make(map[int64]Partner)}
}

func (m *memoryPartners) Create(_ context.Context, partner Partner) (int64, error) {
	m.nextID++
	partner.ID = m.nextID
	m.partners[partner.ID] = partner
	return partner.ID, nil
}

func (m *memoryPartners) Update(_ context.Context, partner Partner) error {
	if _, ok := m.partners[partner.ID]; !ok {
		return shared.ErrNotFound
	}
	m.partners[partner.ID] = partner
	return nil
}

func (m *memoryPartners) Get(_ context.Context, id int64) (Partner, error) {
	p, ok := m.partners[id]
	if !ok {
		return Partner{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryPartners) List(_ context.Context, filter ListFilter) ([]Partner, error) {
	var out []Partner
	for _, p := range m.partners {
		if !filter.IncludeArchived && p.IsArchived {
			continue
		}
		switch filter.Role {
		case RoleCustomer:
			if p.Customer == nil {
				continue
			}
		case RoleVendor:
			if p.Vendor == nil {
				continue
			}
		case RoleEmployee:
			if p.Employee == nil {
				continue
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryPartners) SetArchived(_ context.Context, id int64, archived bool) error {
	p, ok := m.partners[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.IsArchived = archived
	m.partners[id] = p
	return nil
}

func TestCreatePartnerWithProfiles(t *testing.T) {
	repo := newMemoryPartners()
	svc := NewService(repo, nil)

	partner, err := svc.Create(context.Background(), PartnerInput{
		Name:  "Acme GmbH",
		Email: "billing@acme.example",
		Customer: &CustomerInput{
			CreditLimit:      decimal.RequireFromString("10000"),
			PaymentTermsDays: 30,
		},
		Vendor: &VendorInput{BankAccount: "DE89370400440532013000"},
	})
	require.NoError(t, err)
	require.NotNil(t, partner.Customer)
	require.Equal(t, 30, partner.Customer.PaymentTermsDays)
	require.NotNil(t, partner.Vendor)
	require.Nil(t, partner.Employee)
}

func TestCreatePartnerInvalidEmail(t *testing.T) {
	svc := NewService(newMemoryPartners(), nil)

	_, err := svc.Create(context.Background(), PartnerInput{Name: "Acme", Email: "not-an-email"})
	var fields validator.ValidationErrors
	require.ErrorAs(t, err, &fields)
}

func TestCreateEmployeeHireDate(t *testing.T) {
	svc := NewService(newMemoryPartners(), nil)

	_, err := svc.Create(context.Background(), PartnerInput{
		Name: "Jo Doe",
		Employee: &EmployeeInput{
			MonthlySalary: decimal.RequireFromString("4200"),
			HireDate:      "01.02.2026",
		},
	})
	var validation *shared.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "employee.hire_date", validation.Field)

	partner, err := svc.Create(context.Background(), PartnerInput{
		Name: "Jo Doe",
		Employee: &EmployeeInput{
			MonthlySalary: decimal.RequireFromString("4200"),
			HireDate:      "2026-02-01",
			JobTitle:      "Accountant",
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2026, partner.Employee.HireDate.Year())
}

func TestUpdateRemovesCapability(t *testing.T) {
	repo := newMemoryPartners()
	svc := NewService(repo, nil)

	partner, err := svc.Create(context.Background(), PartnerInput{
		Name:     "Acme",
		Customer: &CustomerInput{PaymentTermsDays: 14},
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), partner.ID, PartnerInput{Name: "Acme"})
	require.NoError(t, err)
	require.Nil(t, updated.Customer)
}

func TestListByRole(t *testing.T) {
	repo := newMemoryPartners()
	svc := NewService(repo, nil)

	_, err := svc.Create(context.Background(), PartnerInput{
		Name:     "Customer Co",
		Customer: &CustomerInput{},
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), PartnerInput{
		Name:     "Staff Member",
		Employee: &EmployeeInput{MonthlySalary: decimal.RequireFromString("3000")},
	})
	require.NoError(t, err)

	customers, err := svc.List(context.Background(), ListFilter{Role: RoleCustomer})
	require.NoError(t, err)
	require.Len(t, customers, 1)
	require.Equal(t, "Customer Co", customers[0].Name)

	employees, err := svc.List(context.Background(), ListFilter{Role: RoleEmployee})
	require.NoError(t, err)
	require.Len(t, employees, 1)
}
