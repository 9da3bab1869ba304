package inventory

import (
	"context"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error)
	LowStockRows(ctx context.Context) ([]LowStockRow, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// Service coordinates inventory operations.
type Service struct {
	repo    RepositoryPort
	applier *TxApplier
	audit   AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	return &Service{
		repo:    repo,
		applier: NewTxApplier(cfg.AllowNegativeStock),
		audit:   audit,
	}
}

// Applier exposes the movement helper for services that move stock within
// their own transactions.
func (s *Service) Applier() *TxApplier {
	return s.applier
}

// AdjustStock applies a manual movement. The reference defaults to the
// movement itself so direct adjustments stay traceable in the log.
func (s *Service) AdjustStock(ctx context.Context, in MovementInput) (StockMovement, error) {
	if in.ReferenceType == "" {
		in.ReferenceType = "manual"
	}
	var movement StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		applied, err := s.applier.Apply(ctx, tx, in)
		if err != nil {
			return err
		}
		movement = applied
		return nil
	})
	if err != nil {
		return StockMovement{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "inventory.adjust",
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d", movement.ID),
			Meta: map[string]any{
				"product_id": movement.ProductID,
				"kind":       movement.Kind,
				"quantity":   movement.Quantity.String(),
			},
		})
	}
	return movement, nil
}

// ListMovements returns the movement log, newest first.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error) {
	return s.repo.ListMovements(ctx, filter)
}

// LowStockReport lists tracked products at or below their reorder point.
func (s *Service) LowStockReport(ctx context.Context) ([]LowStockRow, error) {
	return s.repo.LowStockRows(ctx)
}
