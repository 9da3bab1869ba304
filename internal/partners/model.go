// Package partners manages business partners. One partner can act as a
// customer, a vendor and an employee at the same time; each capability
// carries its own profile.
package partners

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerProfile holds customer-specific terms.
type CustomerProfile struct {
	CreditLimit      decimal.Decimal
	PaymentTermsDays int
}

// VendorProfile holds vendor-specific settlement data.
type VendorProfile struct {
	BankAccount string
}

// EmployeeProfile holds payroll-relevant employment data.
type EmployeeProfile struct {
	MonthlySalary decimal.Decimal
	HireDate      time.Time
	JobTitle      string
}

// Partner is one legal or natural person the company deals with. A nil
// profile means the partner does not act in that capacity.
type Partner struct {
	ID         int64
	Name       string
	Email      string
	Phone      string
	Address    string
	Customer   *CustomerProfile
	Vendor     *VendorProfile
	Employee   *EmployeeProfile
	IsArchived bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Role filters partner listings by capability.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleEmployee Role = "employee"
)

// ListFilter narrows partner listings.
type ListFilter struct {
	Role            Role
	IncludeArchived bool
	Search          string
}
