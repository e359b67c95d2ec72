package events

import (
	"context"
	"sync"
	"time"

	"vigil/internal/behavior/models"
	"vigil/internal/behavior/ports"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
)

// InMemoryHistoryStore implements ports.HistoryStore with per-identity
// bounded slices. A single lock over the map keeps the mutation discipline
// simple; contention is acceptable at expected scale.
type InMemoryHistoryStore struct {
	mu        sync.RWMutex
	histories map[id.Identity][]*models.Action
	cap       int
	clock     ports.Clock
}

// NewInMemoryHistoryStore creates a history store with the given per-identity
// cap. Window calculations use the injected clock.
func NewInMemoryHistoryStore(cap int, clock ports.Clock) *InMemoryHistoryStore {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &InMemoryHistoryStore{
		histories: make(map[id.Identity][]*models.Action),
		cap:       cap,
		clock:     clock,
	}
}

// Record appends an action and returns the resulting history length.
// Oldest entries are evicted first-in-first-out once the cap is exceeded.
func (s *InMemoryHistoryStore) Record(_ context.Context, action *models.Action) (int, error) {
	if action == nil || action.Identity.IsNil() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "action with identity is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.histories[action.Identity], action)
	if overflow := len(history) - s.cap; overflow > 0 {
		history = history[overflow:]
	}
	s.histories[action.Identity] = history
	return len(history), nil
}

// History returns actions within the trailing window in chronological order.
// A zero window returns the full history. The returned slice is a copy; the
// store retains exclusive ownership of its internal state.
func (s *InMemoryHistoryStore) History(_ context.Context, identity id.Identity, window time.Duration) ([]*models.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.histories[identity]
	if window > 0 {
		history = history[s.windowStart(history, window):]
	}

	out := make([]*models.Action, len(history))
	copy(out, history)
	return out, nil
}

// CountSince returns the number of actions in the trailing window, filtered
// to a category when one is given.
func (s *InMemoryHistoryStore) CountSince(_ context.Context, identity id.Identity, category string, window time.Duration) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.histories[identity]
	if window > 0 {
		history = history[s.windowStart(history, window):]
	}
	if category == "" {
		return len(history), nil
	}

	count := 0
	for _, a := range history {
		if a.Category == category {
			count++
		}
	}
	return count, nil
}

// Reset clears all history for the identity.
func (s *InMemoryHistoryStore) Reset(_ context.Context, identity id.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, identity)
	return nil
}

// TrackedIdentities returns the number of identities with recorded history.
func (s *InMemoryHistoryStore) TrackedIdentities(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.histories), nil
}

// windowStart returns the index of the first entry inside the trailing
// window. Entries are stored in insertion order, which is chronological for
// server-observed timestamps, so a linear scan from the back stays cheap.
// Must be called while holding at least the read lock.
func (s *InMemoryHistoryStore) windowStart(history []*models.Action, window time.Duration) int {
	cutoff := s.clock.Now().Add(-window)
	i := len(history)
	for i > 0 && history[i-1].OccurredAt.After(cutoff) {
		i--
	}
	return i
}
