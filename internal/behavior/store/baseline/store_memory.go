package baseline

import (
	"context"
	"sync"

	"vigil/internal/behavior/models"
	id "vigil/pkg/domain"
)

// InMemoryBaselineStore implements ports.BaselineStore for single-process
// deployments and tests. For distributed deployments use RedisBaselineStore
// or PostgresBaselineStore.
type InMemoryBaselineStore struct {
	mu        sync.RWMutex
	baselines map[id.Identity]*models.Baseline
}

// NewInMemoryBaselineStore creates an empty in-memory baseline store.
func NewInMemoryBaselineStore() *InMemoryBaselineStore {
	return &InMemoryBaselineStore{
		baselines: make(map[id.Identity]*models.Baseline),
	}
}

// Load returns the stored baseline, or (nil, nil) when absent.
func (s *InMemoryBaselineStore) Load(_ context.Context, identity id.Identity) (*models.Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.baselines[identity]
	if !ok {
		return nil, nil
	}
	return copyBaseline(b), nil
}

// Save replaces any prior baseline wholesale (last-write-wins per identity).
func (s *InMemoryBaselineStore) Save(_ context.Context, identity id.Identity, baseline *models.Baseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines[identity] = copyBaseline(baseline)
	return nil
}

// Delete removes the baseline for an identity. Deleting an absent baseline
// is a no-op.
func (s *InMemoryBaselineStore) Delete(_ context.Context, identity id.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.baselines, identity)
	return nil
}

// copyBaseline deep-copies a baseline so callers and the store never alias
// each other's slices.
func copyBaseline(b *models.Baseline) *models.Baseline {
	if b == nil {
		return nil
	}
	out := *b
	out.CommonCategories = append([]string(nil), b.CommonCategories...)
	out.TypicalActiveHours = append([]int(nil), b.TypicalActiveHours...)
	return &out
}
