package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/mtvts/mtvts/internal/jobs"
)

// OverdueCounter counts unpaid tickets past their compliance date.
type OverdueCounter interface {
	CountOverdue(ctx context.Context) (int, error)
}

// ComplianceScanJob reports overdue tickets. It never changes ticket status.
type ComplianceScanJob struct {
	Tickets OverdueCounter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewComplianceScanJob wires dependencies for the scan handler.
func NewComplianceScanJob(tickets OverdueCounter, logger *slog.Logger, metrics *jobmetrics.Metrics) *ComplianceScanJob {
	return &ComplianceScanJob{Tickets: tickets, Logger: logger, Metrics: metrics}
}

// Handle processes compliance scan tasks.
func (j *ComplianceScanJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Tickets == nil {
		return errors.New("compliance scan: handler not configured")
	}
	metrics := metricsOrDefault(j.Metrics)
	tracker := metrics.Track(TaskTicketsComplianceScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := jobLogger(j.Logger, TaskTicketsComplianceScan)
	count, err := j.Tickets.CountOverdue(ctx)
	if err != nil {
		logger.Error("count overdue tickets", slog.Any("error", err))
		return err
	}
	metrics.SetOverdue(count)
	if count > 0 {
		logger.Warn("unpaid tickets past compliance date", slog.Int("count", count))
	} else {
		logger.Info("no overdue tickets")
	}
	return nil
}
