package baseline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"vigil/internal/behavior/config"
	"vigil/internal/behavior/fingerprint"
	"vigil/internal/behavior/metrics"
	"vigil/internal/behavior/models"
	"vigil/internal/behavior/ports"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
)

// Type aliases for shared interfaces.
type (
	HistoryStore  = ports.HistoryStore
	BaselineStore = ports.BaselineStore
)

// Service derives behavior baselines from recorded history and keeps the
// in-process copy authoritative. The persistence gateway only provides
// durability across restarts; its failures never roll back memory.
type Service struct {
	history HistoryStore
	gateway BaselineStore
	clock   ports.Clock
	logger  *slog.Logger
	config  *config.Config
	metrics *metrics.Metrics
	events  ports.Events

	mu       sync.RWMutex
	current  map[id.Identity]*models.Baseline
	rebuilds singleflight.Group
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

func New(history HistoryStore, gateway BaselineStore, cfg *config.Config, opts ...Option) (*Service, error) {
	if history == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("baseline gateway is required")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	svc := &Service{
		history: history,
		gateway: gateway,
		clock:   ports.SystemClock{},
		config:  cfg,
		events:  ports.NopEvents{},
		current: make(map[id.Identity]*models.Baseline),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Current returns the identity's baseline, or (nil, nil) when none exists.
// The in-memory copy wins; on a cold cache the gateway is consulted once
// within the persist timeout, and gateway failures degrade to "no baseline"
// rather than propagating.
func (s *Service) Current(ctx context.Context, identity id.Identity) (*models.Baseline, error) {
	s.mu.RLock()
	b, ok := s.current[identity]
	s.mu.RUnlock()
	if ok {
		return b, nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, s.config.PersistTimeout)
	defer cancel()

	loaded, err := s.gateway.Load(loadCtx, identity)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "baseline load failed, treating as absent",
				"identity", identity,
				"error", err,
			)
		}
		if s.metrics != nil {
			s.metrics.IncPersistenceFailures("load")
		}
		return nil, nil
	}
	if loaded == nil {
		return nil, nil
	}

	s.mu.Lock()
	// Another goroutine may have rebuilt meanwhile; its copy is fresher.
	if existing, ok := s.current[identity]; ok {
		loaded = existing
	} else {
		s.current[identity] = loaded
	}
	s.mu.Unlock()
	return loaded, nil
}

// Rebuild recomputes the identity's baseline from its full history and
// replaces the old one wholesale. Returns (nil, nil) when the history is too
// short for a baseline; callers must treat that as "no data", never as
// "zero activity". Concurrent rebuilds for the same identity are coalesced.
func (s *Service) Rebuild(ctx context.Context, identity id.Identity) (*models.Baseline, error) {
	if identity.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}

	v, err, _ := s.rebuilds.Do(identity.String(), func() (any, error) {
		return s.rebuild(ctx, identity)
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*models.Baseline), nil
}

func (s *Service) rebuild(ctx context.Context, identity id.Identity) (*models.Baseline, error) {
	start := time.Now()

	history, err := s.history.History(ctx, identity, 0)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to fetch history")
	}
	if len(history) < s.config.MinHistoryForBaseline {
		return nil, nil
	}

	b := s.compute(history)

	s.mu.Lock()
	s.current[identity] = b
	s.mu.Unlock()

	s.persist(ctx, identity, b)
	s.events.BaselineUpdated(ctx, identity, b)

	if s.metrics != nil {
		s.metrics.ObserveRebuildDuration(time.Since(start).Seconds())
	}
	return b, nil
}

// compute derives a fresh baseline from chronological history.
// All selection steps order their output deterministically so recomputing
// over identical history yields an identical baseline.
func (s *Service) compute(history []*models.Action) *models.Baseline {
	now := s.clock.Now()
	minuteCutoff := now.Add(-s.config.MinuteWindow)
	hourCutoff := now.Add(-s.config.HourWindow)

	minuteCount, hourCount := 0, 0
	categoryCounts := make(map[string]int)
	hourCounts := make(map[int]int)
	for _, a := range history {
		if a.OccurredAt.After(minuteCutoff) {
			minuteCount++
		}
		if a.OccurredAt.After(hourCutoff) {
			hourCount++
		}
		categoryCounts[a.Category]++
		hourCounts[a.OccurredAt.Local().Hour()]++
	}

	avgMinute := float64(minuteCount)
	if avgMinute < s.config.MinuteRateFloor {
		avgMinute = s.config.MinuteRateFloor
	}
	avgHour := float64(hourCount)
	if avgHour < s.config.HourRateFloor {
		avgHour = s.config.HourRateFloor
	}

	common := make([]string, 0, len(categoryCounts))
	for c, n := range categoryCounts {
		if n >= s.config.MinCategoryCount {
			common = append(common, c)
		}
	}
	sort.Slice(common, func(i, j int) bool {
		if categoryCounts[common[i]] != categoryCounts[common[j]] {
			return categoryCounts[common[i]] > categoryCounts[common[j]]
		}
		return common[i] < common[j]
	})
	if len(common) > s.config.MaxCommonCategories {
		common = common[:s.config.MaxCommonCategories]
	}

	total := float64(len(history))
	activeHours := make([]int, 0, len(hourCounts))
	for h, n := range hourCounts {
		if float64(n)/total >= s.config.ActiveHourShare {
			activeHours = append(activeHours, h)
		}
	}
	sort.Ints(activeHours)

	latest := history[len(history)-1]

	return &models.Baseline{
		AvgActionsPerMinute: avgMinute,
		AvgActionsPerHour:   avgHour,
		CommonCategories:    common,
		TypicalActiveHours:  activeHours,
		Fingerprint:         fingerprint.Compute(latest.Attributes),
		ComputedAt:          now,
		SampleSize:          len(history),
	}
}

// persist writes the baseline through the gateway within a bounded timeout.
// Failures are logged and swallowed: durability is best effort, the in-memory
// baseline stays authoritative for the process lifetime.
func (s *Service) persist(ctx context.Context, identity id.Identity, b *models.Baseline) {
	saveCtx, cancel := context.WithTimeout(ctx, s.config.PersistTimeout)
	defer cancel()

	if err := s.gateway.Save(saveCtx, identity, b); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "baseline save failed, in-memory copy remains authoritative",
				"identity", identity,
				"error", err,
			)
		}
		if s.metrics != nil {
			s.metrics.IncPersistenceFailures("save")
		}
	}
}

// Reset drops the identity's baseline from memory and the gateway.
// A gateway failure still clears memory; the identity is treated as never
// seen from this point on.
func (s *Service) Reset(ctx context.Context, identity id.Identity) error {
	s.mu.Lock()
	delete(s.current, identity)
	s.mu.Unlock()

	deleteCtx, cancel := context.WithTimeout(ctx, s.config.PersistTimeout)
	defer cancel()

	if err := s.gateway.Delete(deleteCtx, identity); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "baseline delete failed",
				"identity", identity,
				"error", err,
			)
		}
		if s.metrics != nil {
			s.metrics.IncPersistenceFailures("delete")
		}
	}
	return nil
}
