package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportsWarmup re-warms the admin overview cache for the current month.
	TaskReportsWarmup = "reports:warmup"
	// TaskTicketsComplianceScan counts unpaid tickets past their compliance date.
	TaskTicketsComplianceScan = "tickets:compliance-scan"
	// TaskIdempotencyCleanup purges expired payment idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// IdempotencyCleanupPayload configures the key retention window.
type IdempotencyCleanupPayload struct {
	RetainHours int `json:"retain_hours"`
}

func (p IdempotencyCleanupPayload) retention() time.Duration {
	if p.RetainHours <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(p.RetainHours) * time.Hour
}

// NewReportsWarmupTask builds a reports warmup task.
func NewReportsWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskReportsWarmup, nil)
}

// NewComplianceScanTask builds a compliance scan task.
func NewComplianceScanTask() *asynq.Task {
	return asynq.NewTask(TaskTicketsComplianceScan, nil)
}

// NewIdempotencyCleanupTask builds a cleanup task keeping keys for retainHours.
func NewIdempotencyCleanupTask(retainHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetainHours: retainHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
