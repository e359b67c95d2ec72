// Package engine is the facade composing the event store, baseline builder,
// anomaly scorer, and adaptive limiter behind one admission interface.
// Transport handlers depend on this unified surface.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vigil/internal/behavior/config"
	"vigil/internal/behavior/metrics"
	"vigil/internal/behavior/models"
	"vigil/internal/behavior/ports"
	baselinesvc "vigil/internal/behavior/service/baseline"
	limitersvc "vigil/internal/behavior/service/limiter"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
)

// lastEval remembers the most recent score per identity for the stats
// snapshot. Classification is score-driven and continuously re-evaluated;
// nothing here latches.
type lastEval struct {
	score     float64
	anomalous bool
}

type Service struct {
	history   ports.HistoryStore
	baselines *baselinesvc.Service
	limiter   *limitersvc.Service
	clock     ports.Clock
	logger    *slog.Logger
	config    *config.Config
	metrics   *metrics.Metrics
	events    ports.Events
	tracer    trace.Tracer

	mu        sync.RWMutex
	lastEvals map[id.Identity]lastEval

	rebuilds chan id.Identity
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithEvents(events ports.Events) Option {
	return func(s *Service) {
		s.events = events
	}
}

func New(
	history ports.HistoryStore,
	baselines *baselinesvc.Service,
	limiter *limitersvc.Service,
	cfg *config.Config,
	opts ...Option,
) (*Service, error) {
	if history == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if baselines == nil {
		return nil, fmt.Errorf("baseline service is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("limiter service is required")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	svc := &Service{
		history:   history,
		baselines: baselines,
		limiter:   limiter,
		clock:     ports.SystemClock{},
		config:    cfg,
		events:    ports.NopEvents{},
		tracer:    otel.Tracer("vigil/behavior/engine"),
		lastEvals: make(map[id.Identity]lastEval),
		rebuilds:  make(chan id.Identity, cfg.RebuildQueueSize),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Admit decides whether an action is allowed, records it when admitted, and
// schedules a baseline rebuild every RebuildEvery recorded actions. Rejected
// actions are not recorded. The returned decision always carries the anomaly
// result so callers can alert on near misses even when admitted.
func (s *Service) Admit(ctx context.Context, identity id.Identity, category string, attributes map[string]string) (*models.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "engine.Admit")
	defer span.End()

	if identity.IsNil() || category == "" {
		if s.metrics != nil {
			s.metrics.IncInvalidActions()
		}
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identity and category are required")
	}

	decision, err := s.limiter.Admit(ctx, identity, category, attributes)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("action.category", category),
		attribute.Bool("decision.allowed", decision.Allowed),
		attribute.Float64("anomaly.score", decision.Anomaly.Score),
	)

	s.observe(ctx, identity, category, decision)

	if !decision.Allowed {
		return decision, nil
	}

	action, err := models.NewAction(identity, category, s.clock.Now(), attributes)
	if err != nil {
		return nil, err
	}
	total, err := s.history.Record(ctx, action)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record action")
	}
	if total%s.config.RebuildEvery == 0 {
		s.enqueueRebuild(identity)
	}

	return decision, nil
}

// observe updates per-identity score tracking, metrics, and notification
// sinks. Kept off the error path so bookkeeping never affects the decision.
func (s *Service) observe(ctx context.Context, identity id.Identity, category string, decision *models.Decision) {
	s.mu.Lock()
	s.lastEvals[identity] = lastEval{
		score:     decision.Anomaly.Score,
		anomalous: decision.Anomaly.Anomalous,
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordDecision(decision.Allowed, string(models.Normalize(category)))
		s.metrics.ObserveScore(decision.Anomaly.Score)
		if decision.Anomaly.Anomalous {
			s.metrics.IncrementAnomalies()
		}
	}

	if decision.Anomaly.Anomalous {
		ports.LogAudit(ctx, s.logger, "anomaly_detected",
			"identity", identity,
			"category", category,
			"score", decision.Anomaly.Score,
			"reasons", decision.Anomaly.Reasons,
		)
		s.events.AnomalyDetected(ctx, identity, decision.Anomaly)
	}
}

// enqueueRebuild hands the identity to the background worker without ever
// blocking the admission path. When the queue is full the request is dropped;
// the next multiple-of-N record will try again, which bounds staleness.
func (s *Service) enqueueRebuild(identity id.Identity) {
	select {
	case s.rebuilds <- identity:
	default:
		if s.metrics != nil {
			s.metrics.IncRebuildQueueDrops()
		}
		if s.logger != nil {
			s.logger.Warn("rebuild queue full, dropping request", "identity", identity)
		}
	}
}

// Baseline exposes the identity's current baseline for operational tooling.
// Returns (nil, nil) when no baseline exists.
func (s *Service) Baseline(ctx context.Context, identity id.Identity) (*models.Baseline, error) {
	if identity.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}
	return s.baselines.Current(ctx, identity)
}

// Rebuild forces a synchronous baseline recomputation. Used by tests and
// operational tooling; the hot path goes through the background worker.
func (s *Service) Rebuild(ctx context.Context, identity id.Identity) (*models.Baseline, error) {
	return s.baselines.Rebuild(ctx, identity)
}

// ResetIdentity clears history, baseline, cached quotas, and score tracking
// for an identity, as if it had never been seen.
func (s *Service) ResetIdentity(ctx context.Context, identity id.Identity) error {
	if identity.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}

	if err := s.history.Reset(ctx, identity); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset history")
	}
	if err := s.baselines.Reset(ctx, identity); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset baseline")
	}
	s.limiter.ClearCached(identity)

	s.mu.Lock()
	delete(s.lastEvals, identity)
	s.mu.Unlock()

	ports.LogAudit(ctx, s.logger, "identity_reset", "identity", identity)
	return nil
}

// Snapshot returns the observability counters for dashboards.
func (s *Service) Snapshot(ctx context.Context) (*models.Stats, error) {
	tracked, err := s.history.TrackedIdentities(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count tracked identities")
	}

	s.mu.RLock()
	flagged := 0
	var total float64
	for _, e := range s.lastEvals {
		if e.anomalous {
			flagged++
		}
		total += e.score
	}
	evals := len(s.lastEvals)
	s.mu.RUnlock()

	avg := 0.0
	if evals > 0 {
		avg = total / float64(evals)
	}

	if s.metrics != nil {
		s.metrics.SetTrackedIdentities(tracked)
	}

	return &models.Stats{
		TrackedIdentities:  tracked,
		FlaggedIdentities:  flagged,
		AverageScore:       avg,
		ActiveQuotaEntries: s.limiter.CachedEntries(),
	}, nil
}
