package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository abstracts persistence for the service.
type Repository interface {
	Create(ctx context.Context, product Product) (int64, error)
	Update(ctx context.Context, product Product) error
	Get(ctx context.Context, id int64) (Product, error)
	GetBySKU(ctx context.Context, sku string) (Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	SetArchived(ctx context.Context, id int64, archived bool) error
}

// AccountPort resolves ledger accounts referenced by products.
type AccountPort interface {
	GetAccount(ctx context.Context, id int64) (ledger.Account, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates product operations.
type Service struct {
	repo     Repository
	accounts AccountPort
	audit    AuditPort
}

// NewService builds Service.
func NewService(repo Repository, accounts AccountPort, audit AuditPort) *Service {
	return &Service{repo: repo, accounts: accounts, audit: audit}
}

// Create adds a product.
func (s *Service) Create(ctx context.Context, in ProductInput) (Product, error) {
	if err := in.Validate(); err != nil {
		return Product{}, err
	}
	if err := s.checkRevenueAccount(ctx, in.RevenueAccountID); err != nil {
		return Product{}, err
	}
	product := Product{
		SKU:              in.SKU,
		Name:             in.Name,
		Kind:             in.Kind,
		UnitPrice:        in.UnitPrice,
		TaxRate:          in.TaxRate,
		TrackInventory:   in.TrackInventory,
		ReorderPoint:     in.ReorderPoint,
		RevenueAccountID: in.RevenueAccountID,
	}
	id, err := s.repo.Create(ctx, product)
	if err != nil {
		return Product{}, err
	}
	s.recordAudit(ctx, "product.create", id)
	return s.repo.Get(ctx, id)
}

// Update modifies a product. Stock quantity is owned by the inventory
// movement log and cannot be edited here.
func (s *Service) Update(ctx context.Context, id int64, in ProductInput) (Product, error) {
	if err := in.Validate(); err != nil {
		return Product{}, err
	}
	if err := s.checkRevenueAccount(ctx, in.RevenueAccountID); err != nil {
		return Product{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	current.SKU = in.SKU
	current.Name = in.Name
	current.Kind = in.Kind
	current.UnitPrice = in.UnitPrice
	current.TaxRate = in.TaxRate
	current.TrackInventory = in.TrackInventory
	current.ReorderPoint = in.ReorderPoint
	current.RevenueAccountID = in.RevenueAccountID
	if err := s.repo.Update(ctx, current); err != nil {
		return Product{}, err
	}
	s.recordAudit(ctx, "product.update", id)
	return s.repo.Get(ctx, id)
}

// Archive soft-deletes a product. Archived products keep their history
// but no longer appear on documents or listings.
func (s *Service) Archive(ctx context.Context, id int64) error {
	if err := s.repo.SetArchived(ctx, id, true); err != nil {
		return err
	}
	s.recordAudit(ctx, "product.archive", id)
	return nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

// List returns products matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) checkRevenueAccount(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	account, err := s.accounts.GetAccount(ctx, *id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return &shared.ReferentialIntegrityError{Entity: "account", ID: *id}
		}
		return err
	}
	if !account.IsActive {
		return &shared.ReferentialIntegrityError{Entity: "account", ID: *id}
	}
	if account.Type != ledger.AccountTypeRevenue {
		return shared.Validation("revenue_account_id", "must reference a revenue account")
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "product",
		EntityID: fmt.Sprintf("%d", id),
	})
}
