package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
)

// LowStockScanJob logs every tracked product at or below its reorder
// point so operators see replenishment candidates without opening the
// dashboard.
type LowStockScanJob struct {
	Repo   *inventory.PgRepository
	Logger *slog.Logger
}

// NewLowStockScanJob initialises the scan handler.
func NewLowStockScanJob(repo *inventory.PgRepository, logger *slog.Logger) *LowStockScanJob {
	return &LowStockScanJob{Repo: repo, Logger: logger}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Repo == nil {
		return errors.New("lowstock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	rows, err := j.Repo.LowStockRows(ctx)
	if err != nil {
		j.Logger.Error("lowstock scan failed", slog.Any("error", err))
		return err
	}
	if payload.Limit > 0 && len(rows) > payload.Limit {
		rows = rows[:payload.Limit]
	}
	for _, row := range rows {
		j.Logger.Warn("product below reorder point",
			slog.Int64("product_id", row.ProductID),
			slog.String("sku", row.SKU),
			slog.String("quantity", row.Quantity.String()),
			slog.String("reorder_point", row.ReorderPoint.String()),
		)
	}
	j.Logger.Info("lowstock scan finished", slog.Int("flagged", len(rows)))
	return nil
}
