package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/mtvts/mtvts/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Warmer rebuilds cached report data.
type Warmer interface {
	Warm(ctx context.Context) error
}

// ReportsWarmupJob pre-populates the overview cache.
type ReportsWarmupJob struct {
	Reports Warmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewReportsWarmupJob wires dependencies for the warmup handler.
func NewReportsWarmupJob(reports Warmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{Reports: reports, Logger: logger, Metrics: metrics, Timeout: time.Minute}
}

// Handle processes reports warmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskReportsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := jobLogger(j.Logger, TaskReportsWarmup)
	start := time.Now()
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := j.Reports.Warm(runCtx); err != nil {
		logger.Error("warm overview", slog.Any("error", err))
		return err
	}
	logger.Info("completed reports warmup", slog.Duration("duration", time.Since(start)))
	return nil
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}
