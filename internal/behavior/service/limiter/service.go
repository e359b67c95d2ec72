package limiter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"vigil/internal/behavior/config"
	"vigil/internal/behavior/models"
	"vigil/internal/behavior/ports"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
)

// Scorer evaluates a candidate action against the identity's baseline.
type Scorer interface {
	Evaluate(ctx context.Context, identity id.Identity, category string, attributes map[string]string) (*models.AnomalyResult, error)
}

// Service maps anomaly scores onto per-minute quotas and decides admission.
// The quota for a pair is recomputed on every call since the score is
// time-sensitive; the cache below only mirrors the last computed values for
// observability, it never short-circuits a decision.
type Service struct {
	history ports.HistoryStore
	scorer  Scorer
	logger  *slog.Logger
	config  *config.Config

	mu     sync.RWMutex
	quotas map[string]int // QuotaKey(identity, category) -> last computed quota
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(history ports.HistoryStore, scorer Scorer, cfg *config.Config, opts ...Option) (*Service, error) {
	if history == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	svc := &Service{
		history: history,
		scorer:  scorer,
		config:  cfg,
		quotas:  make(map[string]int),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// QuotaFor computes the current per-minute quota for an (identity, category)
// pair and returns the anomaly result that produced it. An anomalous score
// strips at most MaxQuotaReduction of the base quota; the result is rounded
// down, and a resulting 0 means effectively blocked until the window rolls.
func (s *Service) QuotaFor(ctx context.Context, identity id.Identity, category string, attributes map[string]string) (int, *models.AnomalyResult, error) {
	anomaly, err := s.scorer.Evaluate(ctx, identity, category, attributes)
	if err != nil {
		return 0, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to evaluate anomaly score")
	}

	quota := s.config.QuotaFor(models.Normalize(category))
	if anomaly.Anomalous {
		reduction := anomaly.Score
		if reduction > s.config.MaxQuotaReduction {
			reduction = s.config.MaxQuotaReduction
		}
		// Nudge before flooring: decimal products like 60*0.1 sit just
		// under the integer in float64 (5.999...) and would floor to 5.
		quota = int(math.Floor(float64(quota)*(1-reduction) + 1e-9))
	}

	s.mu.Lock()
	s.quotas[models.QuotaKey(identity.String(), category)] = quota
	s.mu.Unlock()

	return quota, anomaly, nil
}

// Admit decides whether an action is allowed right now. It counts admitted
// actions of the same category in the trailing minute window; the caller is
// responsible for recording the action afterwards when allowed.
func (s *Service) Admit(ctx context.Context, identity id.Identity, category string, attributes map[string]string) (*models.Decision, error) {
	quota, anomaly, err := s.QuotaFor(ctx, identity, category, attributes)
	if err != nil {
		return nil, err
	}

	count, err := s.history.CountSince(ctx, identity, category, s.config.MinuteWindow)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count recent actions")
	}

	if count >= quota {
		ports.LogAudit(ctx, s.logger, "action_throttled",
			"identity", identity,
			"category", category,
			"quota", quota,
			"count", count,
			"score", anomaly.Score,
		)
		return &models.Decision{
			Allowed:   false,
			Quota:     quota,
			Remaining: 0,
			Anomaly:   *anomaly,
		}, nil
	}

	return &models.Decision{
		Allowed:   true,
		Quota:     quota,
		Remaining: quota - count - 1,
		Anomaly:   *anomaly,
	}, nil
}

// ClearCached drops all cached quota entries for an identity.
func (s *Service) ClearCached(identity id.Identity) {
	prefix := models.SanitizeKeySegment(identity.String()) + ":"
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.quotas {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(s.quotas, key)
		}
	}
}

// CachedEntries returns the number of (identity, category) quota entries
// currently held.
func (s *Service) CachedEntries() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quotas)
}
