// Package jobs runs background work through Asynq: the periodic low
// stock scan and audit log retention.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan reports tracked products at or below reorder point.
	TaskLowStockScan = "inventory:lowstock_scan"
	// TaskAuditCleanup prunes audit rows past the retention window.
	TaskAuditCleanup = "audit:cleanup"
)

// LowStockScanPayload configures a low stock scan run.
type LowStockScanPayload struct {
	// Limit caps how many products a single scan reports; 0 means all.
	Limit int `json:"limit"`
}

// NewLowStockScanTask constructs an Asynq task.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, data), nil
}

// AuditCleanupPayload configures an audit retention run.
type AuditCleanupPayload struct {
	// RetentionHours overrides the configured window; 0 keeps the default.
	RetentionHours int `json:"retention_hours"`
}

// NewAuditCleanupTask constructs an Asynq task.
func NewAuditCleanupTask(payload AuditCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditCleanup, data), nil
}
