// Package cooldown stores the last-mint time per identity. The memory store
// backs single-instance deployments; the Redis store shares cooldown state
// across replicas.
package cooldown

import (
	"context"
	"sync"
	"time"

	id "mintgate/pkg/domain"
)

type InMemoryStore struct {
	mu   sync.RWMutex
	last map[id.Identity]time.Time
}

func New() *InMemoryStore {
	return &InMemoryStore{last: make(map[id.Identity]time.Time)}
}

func (s *InMemoryStore) Last(_ context.Context, identity id.Identity) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.last[identity]
	return t, ok, nil
}

// Touch records a mint at the given time. Last-mint times are monotonically
// non-decreasing per identity; an earlier timestamp is ignored.
func (s *InMemoryStore) Touch(_ context.Context, identity id.Identity, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.last[identity]; ok && existing.After(at) {
		return nil
	}
	s.last[identity] = at
	return nil
}
