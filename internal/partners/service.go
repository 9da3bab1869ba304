package partners

import (
	"context"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository abstracts persistence for the service.
type Repository interface {
	Create(ctx context.Context, partner Partner) (int64, error)
	Update(ctx context.Context, partner Partner) error
	Get(ctx context.Context, id int64) (Partner, error)
	List(ctx context.Context, filter ListFilter) ([]Partner, error)
	SetArchived(ctx context.Context, id int64, archived bool) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates partner operations.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService builds Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Create adds a partner with its capability profiles.
func (s *Service) Create(ctx context.Context, in PartnerInput) (Partner, error) {
	if err := in.Validate(); err != nil {
		return Partner{}, err
	}
	id, err := s.repo.Create(ctx, in.toPartner())
	if err != nil {
		return Partner{}, err
	}
	s.recordAudit(ctx, "partner.create", id)
	return s.repo.Get(ctx, id)
}

// Update replaces the partner's fields and capability profiles. Omitting
// a capability block removes that capability.
func (s *Service) Update(ctx context.Context, id int64, in PartnerInput) (Partner, error) {
	if err := in.Validate(); err != nil {
		return Partner{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Partner{}, err
	}
	next := in.toPartner()
	next.ID = current.ID
	next.IsArchived = current.IsArchived
	if err := s.repo.Update(ctx, next); err != nil {
		return Partner{}, err
	}
	s.recordAudit(ctx, "partner.update", id)
	return s.repo.Get(ctx, id)
}

// Archive soft-deletes a partner. Documents referencing it keep their
// snapshots.
func (s *Service) Archive(ctx context.Context, id int64) error {
	if err := s.repo.SetArchived(ctx, id, true); err != nil {
		return err
	}
	s.recordAudit(ctx, "partner.archive", id)
	return nil
}

// Get returns one partner.
func (s *Service) Get(ctx context.Context, id int64) (Partner, error) {
	return s.repo.Get(ctx, id)
}

// List returns partners matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Partner, error) {
	return s.repo.List(ctx, filter)
}

// ListEmployees returns active partners with the employee capability.
// Payroll runs generate their lines from this set.
func (s *Service) ListEmployees(ctx context.Context) ([]Partner, error) {
	return s.repo.List(ctx, ListFilter{Role: RoleEmployee})
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "partner",
		EntityID: fmt.Sprintf("%d", id),
	})
}
