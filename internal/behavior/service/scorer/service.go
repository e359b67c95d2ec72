package scorer

import (
	"context"
	"fmt"
	"log/slog"

	"vigil/internal/behavior/config"
	"vigil/internal/behavior/fingerprint"
	"vigil/internal/behavior/models"
	"vigil/internal/behavior/ports"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
)

// ReasonNoBaseline is returned when an identity has insufficient history.
// Absence of data never counts as anomalous.
const ReasonNoBaseline = "no baseline"

// BaselineProvider supplies the current baseline for an identity,
// (nil, nil) when none exists yet.
type BaselineProvider interface {
	Current(ctx context.Context, identity id.Identity) (*models.Baseline, error)
}

// Service scores candidate actions against an identity's baseline. Each
// suspicion signal is tested independently; weights accumulate, so several
// simultaneous triggers can push the score past 1.0. The function is pure
// given history, baseline, and the injected clock.
type Service struct {
	history   ports.HistoryStore
	baselines BaselineProvider
	clock     ports.Clock
	logger    *slog.Logger
	config    *config.Config
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(clock ports.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func New(history ports.HistoryStore, baselines BaselineProvider, cfg *config.Config, opts ...Option) (*Service, error) {
	if history == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if baselines == nil {
		return nil, fmt.Errorf("baseline provider is required")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	svc := &Service{
		history:   history,
		baselines: baselines,
		clock:     ports.SystemClock{},
		config:    cfg,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Evaluate scores one candidate action for an identity.
func (s *Service) Evaluate(ctx context.Context, identity id.Identity, category string, attributes map[string]string) (*models.AnomalyResult, error) {
	if identity.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}

	baseline, err := s.baselines.Current(ctx, identity)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load baseline")
	}
	if baseline == nil {
		return &models.AnomalyResult{
			Score:     0,
			Anomalous: false,
			Reasons:   []string{ReasonNoBaseline},
		}, nil
	}

	var (
		score   float64
		reasons []string
	)

	minuteCount, err := s.history.CountSince(ctx, identity, "", s.config.MinuteWindow)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count recent actions")
	}
	if float64(minuteCount) > 3*baseline.AvgActionsPerMinute {
		score += s.config.Weights.MinuteRate
		reasons = append(reasons, fmt.Sprintf("high minute rate: %d vs avg %g", minuteCount, baseline.AvgActionsPerMinute))
	}

	hourCount, err := s.history.CountSince(ctx, identity, "", s.config.HourWindow)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count recent actions")
	}
	if float64(hourCount) > 2*baseline.AvgActionsPerHour {
		score += s.config.Weights.HourRate
		reasons = append(reasons, fmt.Sprintf("high hour rate: %d vs avg %g", hourCount, baseline.AvgActionsPerHour))
	}

	if hour := s.clock.Now().Local().Hour(); !baseline.HasActiveHour(hour) {
		score += s.config.Weights.UnusualHour
		reasons = append(reasons, fmt.Sprintf("unusual active hour: %d", hour))
	}

	if !baseline.HasCategory(category) {
		score += s.config.Weights.UnusualCategory
		reasons = append(reasons, fmt.Sprintf("unusual category: %s", category))
	}

	if fingerprint.Compute(attributes) != baseline.Fingerprint {
		score += s.config.Weights.FingerprintMismatch
		reasons = append(reasons, "fingerprint mismatch")
	}

	return &models.AnomalyResult{
		Score:     score,
		Anomalous: score >= s.config.AnomalyThreshold,
		Reasons:   reasons,
	}, nil
}
