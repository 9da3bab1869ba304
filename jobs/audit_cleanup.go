package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditCleanupJob prunes audit rows past the retention window.
type AuditCleanupJob struct {
	Audit     *shared.AuditLogger
	Logger    *slog.Logger
	Retention time.Duration
}

// NewAuditCleanupJob initialises the cleanup handler.
func NewAuditCleanupJob(audit *shared.AuditLogger, logger *slog.Logger, retention time.Duration) *AuditCleanupJob {
	return &AuditCleanupJob{Audit: audit, Logger: logger, Retention: retention}
}

// Handle executes the cleanup.
func (j *AuditCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Audit == nil {
		return errors.New("audit cleanup: handler not configured")
	}
	var payload AuditCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	retention := j.Retention
	if payload.RetentionHours > 0 {
		retention = time.Duration(payload.RetentionHours) * time.Hour
	}
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}

	if err := j.Audit.Cleanup(ctx, retention); err != nil {
		j.Logger.Error("audit cleanup failed", slog.Any("error", err))
		return err
	}
	j.Logger.Info("audit cleanup finished", slog.Duration("retention", retention))
	return nil
}
