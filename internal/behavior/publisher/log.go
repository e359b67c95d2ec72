package publisher

import (
	"context"
	"log/slog"

	"vigil/internal/behavior/models"
	id "vigil/pkg/domain"
)

// Log is a ports.Events implementation that writes structured log lines.
// Useful as the default sink when no broker is configured.
type Log struct {
	logger *slog.Logger
}

// NewLog constructs a logging event sink.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) AnomalyDetected(ctx context.Context, identity id.Identity, result models.AnomalyResult) {
	l.logger.WarnContext(ctx, "anomaly detected",
		"identity", identity,
		"score", result.Score,
		"reasons", result.Reasons,
	)
}

func (l *Log) BaselineUpdated(ctx context.Context, identity id.Identity, baseline *models.Baseline) {
	l.logger.InfoContext(ctx, "baseline updated",
		"identity", identity,
		"sample_size", baseline.SampleSize,
		"avg_per_minute", baseline.AvgActionsPerMinute,
		"avg_per_hour", baseline.AvgActionsPerHour,
	)
}
