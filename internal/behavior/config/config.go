// Package config holds the engine tunables. Values are validated once at
// construction; runtime clamping is reserved for computed statistics, never
// for configuration.
package config

import (
	"fmt"
	"time"

	"vigil/internal/behavior/models"
)

// Weights are the fixed contributions of each suspicion signal.
type Weights struct {
	MinuteRate          float64
	HourRate            float64
	UnusualHour         float64
	UnusualCategory     float64
	FingerprintMismatch float64
}

// Config captures every engine tunable in one place.
type Config struct {
	// AnomalyThreshold is the score at or above which an action is anomalous.
	AnomalyThreshold float64

	// Weights of the independent scoring signals.
	Weights Weights

	// BaseQuotas are per-category admitted actions per rolling minute.
	BaseQuotas map[models.Category]int

	// HistoryCap bounds per-identity history; oldest entries are evicted FIFO.
	HistoryCap int

	// RebuildEvery triggers a baseline recomputation each time an identity's
	// history length reaches a multiple of this value.
	RebuildEvery int

	// MinHistoryForBaseline is the minimum history length before a baseline
	// is computed at all.
	MinHistoryForBaseline int

	// MinuteWindow and HourWindow are the trailing windows for rate statistics.
	MinuteWindow time.Duration
	HourWindow   time.Duration

	// MinCategoryCount and MaxCommonCategories shape the common-category set.
	MinCategoryCount    int
	MaxCommonCategories int

	// ActiveHourShare is the minimum share of history an hour-of-day must
	// account for to count as typical.
	ActiveHourShare float64

	// Statistical floors applied to computed averages (not to config).
	MinuteRateFloor float64
	HourRateFloor   float64

	// MaxQuotaReduction caps how much of the base quota an anomaly can strip.
	MaxQuotaReduction float64

	// PersistTimeout bounds every baseline gateway call.
	PersistTimeout time.Duration

	// RebuildQueueSize bounds the background rebuild worker's inbox.
	RebuildQueueSize int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		AnomalyThreshold: 0.75,
		Weights: Weights{
			MinuteRate:          0.40,
			HourRate:            0.30,
			UnusualHour:         0.20,
			UnusualCategory:     0.10,
			FingerprintMismatch: 0.30,
		},
		BaseQuotas: map[models.Category]int{
			models.CategoryMessaging:    60,
			models.CategoryNoteCreation: 30,
			models.CategoryAPICall:      100,
			models.CategoryAuthAttempt:  5,
			models.CategoryUnclassified: 50,
		},
		HistoryCap:            1000,
		RebuildEvery:          50,
		MinHistoryForBaseline: 10,
		MinuteWindow:          time.Minute,
		HourWindow:            time.Hour,
		MinCategoryCount:      5,
		MaxCommonCategories:   10,
		ActiveHourShare:       0.05,
		MinuteRateFloor:       1,
		HourRateFloor:         10,
		MaxQuotaReduction:     0.9,
		PersistTimeout:        2 * time.Second,
		RebuildQueueSize:      256,
	}
}

// Validate fails fast on nonsensical configuration. It is called once at
// engine construction; nothing here is silently clamped at runtime.
func (c *Config) Validate() error {
	if c.AnomalyThreshold <= 0 {
		return fmt.Errorf("anomaly threshold must be positive, got %v", c.AnomalyThreshold)
	}
	for name, w := range map[string]float64{
		"minute_rate":          c.Weights.MinuteRate,
		"hour_rate":            c.Weights.HourRate,
		"unusual_hour":         c.Weights.UnusualHour,
		"unusual_category":     c.Weights.UnusualCategory,
		"fingerprint_mismatch": c.Weights.FingerprintMismatch,
	} {
		if w < 0 {
			return fmt.Errorf("weight %s cannot be negative, got %v", name, w)
		}
	}
	if len(c.BaseQuotas) == 0 {
		return fmt.Errorf("base quotas are required")
	}
	if _, ok := c.BaseQuotas[models.CategoryUnclassified]; !ok {
		return fmt.Errorf("base quota for %q is required as the fallback", models.CategoryUnclassified)
	}
	for category, quota := range c.BaseQuotas {
		if !category.IsValid() {
			return fmt.Errorf("unknown quota category %q", category)
		}
		if quota <= 0 {
			return fmt.Errorf("base quota for %q must be positive, got %d", category, quota)
		}
	}
	if c.HistoryCap <= 0 {
		return fmt.Errorf("history cap must be positive, got %d", c.HistoryCap)
	}
	if c.RebuildEvery <= 0 {
		return fmt.Errorf("rebuild interval must be positive, got %d", c.RebuildEvery)
	}
	if c.MinHistoryForBaseline <= 0 {
		return fmt.Errorf("minimum history for baseline must be positive, got %d", c.MinHistoryForBaseline)
	}
	if c.MinHistoryForBaseline > c.HistoryCap {
		return fmt.Errorf("minimum history for baseline (%d) cannot exceed history cap (%d)", c.MinHistoryForBaseline, c.HistoryCap)
	}
	if c.MinuteWindow <= 0 {
		return fmt.Errorf("minute window must be positive, got %v", c.MinuteWindow)
	}
	if c.HourWindow <= 0 {
		return fmt.Errorf("hour window must be positive, got %v", c.HourWindow)
	}
	if c.HourWindow < c.MinuteWindow {
		return fmt.Errorf("hour window (%v) cannot be shorter than minute window (%v)", c.HourWindow, c.MinuteWindow)
	}
	if c.MinCategoryCount <= 0 {
		return fmt.Errorf("minimum category count must be positive, got %d", c.MinCategoryCount)
	}
	if c.MaxCommonCategories <= 0 {
		return fmt.Errorf("maximum common categories must be positive, got %d", c.MaxCommonCategories)
	}
	if c.ActiveHourShare <= 0 || c.ActiveHourShare > 1 {
		return fmt.Errorf("active hour share must be in (0, 1], got %v", c.ActiveHourShare)
	}
	if c.MinuteRateFloor <= 0 {
		return fmt.Errorf("minute rate floor must be positive, got %v", c.MinuteRateFloor)
	}
	if c.HourRateFloor <= 0 {
		return fmt.Errorf("hour rate floor must be positive, got %v", c.HourRateFloor)
	}
	if c.MaxQuotaReduction <= 0 || c.MaxQuotaReduction >= 1 {
		return fmt.Errorf("max quota reduction must be in (0, 1), got %v", c.MaxQuotaReduction)
	}
	if c.PersistTimeout <= 0 {
		return fmt.Errorf("persist timeout must be positive, got %v", c.PersistTimeout)
	}
	if c.RebuildQueueSize <= 0 {
		return fmt.Errorf("rebuild queue size must be positive, got %d", c.RebuildQueueSize)
	}
	return nil
}

// QuotaFor returns the base quota for a category, falling back to the
// unclassified quota for unknown categories.
func (c *Config) QuotaFor(category models.Category) int {
	if q, ok := c.BaseQuotas[category]; ok {
		return q
	}
	return c.BaseQuotas[models.CategoryUnclassified]
}
