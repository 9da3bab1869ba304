package partners

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var validate = validator.New()

// CustomerInput carries customer capability fields.
type CustomerInput struct {
	CreditLimit      decimal.Decimal `json:"credit_limit"`
	PaymentTermsDays int             `json:"payment_terms_days" validate:"gte=0,lte=365"`
}

// VendorInput carries vendor capability fields.
type VendorInput struct {
	BankAccount string `json:"bank_account" validate:"max=64"`
}

// EmployeeInput carries employee capability fields.
type EmployeeInput struct {
	MonthlySalary decimal.Decimal `json:"monthly_salary"`
	HireDate      string          `json:"hire_date"`
	JobTitle      string          `json:"job_title" validate:"max=128"`
}

// PartnerInput groups fields for creating or updating a partner. A nil
// capability block removes that capability on update.
type PartnerInput struct {
	Name     string         `json:"name" validate:"required,max=255"`
	Email    string         `json:"email" validate:"omitempty,email"`
	Phone    string         `json:"phone" validate:"max=32"`
	Address  string         `json:"address" validate:"max=512"`
	Customer *CustomerInput `json:"customer"`
	Vendor   *VendorInput   `json:"vendor"`
	Employee *EmployeeInput `json:"employee"`
}

// Validate checks field shapes and capability payloads.
func (in *PartnerInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	if in.Customer != nil && in.Customer.CreditLimit.IsNegative() {
		return shared.Validation("customer.credit_limit", "must not be negative")
	}
	if in.Employee != nil {
		if in.Employee.MonthlySalary.IsNegative() {
			return shared.Validation("employee.monthly_salary", "must not be negative")
		}
		if in.Employee.HireDate != "" {
			if _, err := time.Parse("2006-01-02", in.Employee.HireDate); err != nil {
				return shared.Validation("employee.hire_date", "expected YYYY-MM-DD")
			}
		}
	}
	return nil
}

func (in *PartnerInput) toPartner() Partner {
	p := Partner{
		Name:    in.Name,
		Email:   in.Email,
		Phone:   in.Phone,
		Address: in.Address,
	}
	if in.Customer != nil {
		p.Customer = &CustomerProfile{
			CreditLimit:      in.Customer.CreditLimit,
			PaymentTermsDays: in.Customer.PaymentTermsDays,
		}
	}
	if in.Vendor != nil {
		p.Vendor = &VendorProfile{BankAccount: in.Vendor.BankAccount}
	}
	if in.Employee != nil {
		profile := &EmployeeProfile{
			MonthlySalary: in.Employee.MonthlySalary,
			JobTitle:      in.Employee.JobTitle,
		}
		if in.Employee.HireDate != "" {
			profile.HireDate, _ = time.Parse("2006-01-02", in.Employee.HireDate)
		}
		p.Employee = profile
	}
	return p
}
