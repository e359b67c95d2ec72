package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"vigil/internal/behavior/models"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

var loadDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "vigil_baseline_load_duration_ms",
	Help:    "Latency of baseline loads in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const baselineKeyPrefix = "vigil:baseline:"

// RedisBaselineStore is a Redis-backed baseline persistence gateway.
// This is the production-recommended implementation for distributed
// deployments where multiple instances share baseline state.
type RedisBaselineStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisBaselineStoreOption configures a RedisBaselineStore.
type RedisBaselineStoreOption func(*RedisBaselineStore)

// WithTTL expires stored baselines after the given duration. Zero means no
// expiry; baselines are then only removed by explicit reset.
func WithTTL(ttl time.Duration) RedisBaselineStoreOption {
	return func(s *RedisBaselineStore) {
		s.ttl = ttl
	}
}

// NewRedisBaselineStore constructs a Redis-backed baseline store.
// The client lifecycle is managed externally.
func NewRedisBaselineStore(client *redis.Client, opts ...RedisBaselineStoreOption) *RedisBaselineStore {
	s := &RedisBaselineStore{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func baselineKey(identity id.Identity) string {
	return baselineKeyPrefix + models.SanitizeKeySegment(identity.String())
}

// Load fetches and unmarshals the baseline, or returns (nil, nil) when absent.
func (s *RedisBaselineStore) Load(ctx context.Context, identity id.Identity) (*models.Baseline, error) {
	start := time.Now()
	defer func() {
		loadDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	raw, err := s.client.Get(ctx, baselineKey(identity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load baseline: %w: %w", sentinel.ErrUnavailable, err)
	}

	var b models.Baseline
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("unmarshal baseline for %s: %w", identity, err)
	}
	return &b, nil
}

// Save serializes the baseline and replaces any prior value atomically.
func (s *RedisBaselineStore) Save(ctx context.Context, identity id.Identity, baseline *models.Baseline) error {
	raw, err := json.Marshal(baseline)
	if err != nil {
		return fmt.Errorf("marshal baseline: %w", err)
	}
	if err := s.client.Set(ctx, baselineKey(identity), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save baseline: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// Delete removes the baseline for an identity.
func (s *RedisBaselineStore) Delete(ctx context.Context, identity id.Identity) error {
	if err := s.client.Del(ctx, baselineKey(identity)).Err(); err != nil {
		return fmt.Errorf("delete baseline: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}
