package models

import (
	"time"

	"github.com/google/uuid"

	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
)

// Category classifies actions for differentiated rate limiting.
type Category string

const (
	// CategoryMessaging: sending encrypted messages (60 req/min default)
	CategoryMessaging Category = "messaging"
	// CategoryNoteCreation: note/document creation (30 req/min default)
	CategoryNoteCreation Category = "note_creation"
	// CategoryAPICall: generic API calls (100 req/min default)
	CategoryAPICall Category = "api_call"
	// CategoryAuthAttempt: authentication attempts (5 req/min default)
	CategoryAuthAttempt Category = "auth_attempt"
	// CategoryUnclassified: fallback for everything else (50 req/min default)
	CategoryUnclassified Category = "unclassified"
)

// IsValid checks if the category is one of the supported enum values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryMessaging, CategoryNoteCreation, CategoryAPICall, CategoryAuthAttempt, CategoryUnclassified:
		return true
	}
	return false
}

// String returns the string representation.
func (c Category) String() string {
	return string(c)
}

// Normalize maps arbitrary category strings onto the known enum,
// falling back to CategoryUnclassified for anything unrecognized.
// The raw string is still recorded on the action for baseline statistics.
func Normalize(s string) Category {
	c := Category(s)
	if c.IsValid() {
		return c
	}
	return CategoryUnclassified
}

// Action is a single recorded event attributable to an identity.
// Immutable once recorded.
type Action struct {
	ID         string            `json:"id"`
	Identity   id.Identity       `json:"identity"`
	Category   string            `json:"category"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewAction creates an Action with domain invariant validation.
// The occurredAt timestamp is server-observed and supplied by the caller's clock.
func NewAction(identity id.Identity, category string, occurredAt time.Time, attributes map[string]string) (*Action, error) {
	if identity.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}
	if category == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "category is required")
	}
	if occurredAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "occurred_at cannot be zero")
	}

	// Copy attributes so the recorded action cannot alias caller state.
	var attrs map[string]string
	if len(attributes) > 0 {
		attrs = make(map[string]string, len(attributes))
		for k, v := range attributes {
			attrs[k] = v
		}
	}

	return &Action{
		ID:         uuid.NewString(),
		Identity:   identity,
		Category:   category,
		OccurredAt: occurredAt,
		Attributes: attrs,
	}, nil
}

// Baseline is the derived, replaceable summary of an identity's normal behavior.
// It is replaced wholesale on every recomputation, never patched in place.
type Baseline struct {
	AvgActionsPerMinute float64   `json:"avg_actions_per_minute"`
	AvgActionsPerHour   float64   `json:"avg_actions_per_hour"`
	CommonCategories    []string  `json:"common_categories"`
	TypicalActiveHours  []int     `json:"typical_active_hours"`
	Fingerprint         string    `json:"fingerprint"`
	ComputedAt          time.Time `json:"computed_at"`
	SampleSize          int       `json:"sample_size"`
}

// HasCategory reports whether the category is common for this identity.
func (b *Baseline) HasCategory(category string) bool {
	for _, c := range b.CommonCategories {
		if c == category {
			return true
		}
	}
	return false
}

// HasActiveHour reports whether the hour (0-23) is typical for this identity.
func (b *Baseline) HasActiveHour(hour int) bool {
	for _, h := range b.TypicalActiveHours {
		if h == hour {
			return true
		}
	}
	return false
}

// AnomalyResult is the outcome of scoring one candidate action.
// Transient: computed fresh per evaluation, never persisted.
type AnomalyResult struct {
	// Score is the weighted sum of triggered suspicion signals. It is not
	// capped; simultaneous triggers can push it past 1.0.
	Score     float64  `json:"score"`
	Anomalous bool     `json:"anomalous"`
	Reasons   []string `json:"reasons"`
}

// Decision is the full admission outcome returned to enforcement callers.
// Anomaly is included even when admitted so callers can alert on near misses.
type Decision struct {
	Allowed   bool          `json:"allowed"`
	Quota     int           `json:"quota"`
	Remaining int           `json:"remaining"`
	Anomaly   AnomalyResult `json:"anomaly"`
}

// Stats is the observability snapshot exposed for dashboards.
type Stats struct {
	TrackedIdentities  int     `json:"tracked_identities"`
	FlaggedIdentities  int     `json:"flagged_identities"`
	AverageScore       float64 `json:"average_score"`
	ActiveQuotaEntries int     `json:"active_quota_entries"`
}
