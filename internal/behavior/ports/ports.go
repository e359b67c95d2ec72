// Package ports defines shared interfaces for the behavior engine.
// Interfaces live here when consumed by multiple services to avoid duplication.
package ports

import (
	"context"
	"log/slog"
	"time"

	"vigil/internal/behavior/models"
	id "vigil/pkg/domain"
)

// Clock is the engine's time source. Injected so tests can pin time and so
// window calculations stay deterministic.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// HistoryStore owns per-identity action history exclusively.
type HistoryStore interface {
	// Record appends an action and returns the total history length for the
	// identity after the append.
	Record(ctx context.Context, action *models.Action) (int, error)

	// History returns actions within the trailing window in chronological
	// order. A zero window returns the full history. Unknown identities
	// yield an empty slice, never an error.
	History(ctx context.Context, identity id.Identity, window time.Duration) ([]*models.Action, error)

	// CountSince returns the number of actions within the trailing window,
	// optionally filtered to a single category (empty category matches all).
	CountSince(ctx context.Context, identity id.Identity, category string, window time.Duration) (int, error)

	// Reset clears all history for an identity.
	Reset(ctx context.Context, identity id.Identity) error

	// TrackedIdentities returns the number of identities with recorded history.
	TrackedIdentities(ctx context.Context) (int, error)
}

// BaselineStore is the baseline persistence gateway. Load returns (nil, nil)
// when no baseline exists; absence is a defined state, not an error.
type BaselineStore interface {
	Load(ctx context.Context, identity id.Identity) (*models.Baseline, error)
	Save(ctx context.Context, identity id.Identity, baseline *models.Baseline) error
	Delete(ctx context.Context, identity id.Identity) error
}

// Events receives engine notifications outside the hot admission path.
// Implementations must not block; slow sinks should buffer internally.
type Events interface {
	AnomalyDetected(ctx context.Context, identity id.Identity, result models.AnomalyResult)
	BaselineUpdated(ctx context.Context, identity id.Identity, baseline *models.Baseline)
}

// NopEvents discards all notifications.
type NopEvents struct{}

func (NopEvents) AnomalyDetected(context.Context, id.Identity, models.AnomalyResult) {}
func (NopEvents) BaselineUpdated(context.Context, id.Identity, *models.Baseline)     {}

// LogAudit is a shared helper for logging audit events across engine services.
func LogAudit(ctx context.Context, logger *slog.Logger, event string, attrs ...any) {
	if logger == nil {
		return
	}
	args := append(attrs, "event", event, "log_type", "audit")
	logger.InfoContext(ctx, event, args...)
}
