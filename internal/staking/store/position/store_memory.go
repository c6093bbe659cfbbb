// Package position persists stake positions and the global pool accumulator.
package position

import (
	"context"
	"sync"

	"mintgate/internal/staking/models"
	id "mintgate/pkg/domain"
)

// InMemoryStore keeps positions and pool state in process. Values are deep
// copied on both reads and writes so callers never share accumulators with
// the store.
type InMemoryStore struct {
	mu        sync.RWMutex
	positions map[id.Identity]*models.Position
	pool      *models.PoolState
}

func New() *InMemoryStore {
	return &InMemoryStore{positions: make(map[id.Identity]*models.Position)}
}

func (s *InMemoryStore) Get(_ context.Context, identity id.Identity) (*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if pos, ok := s.positions[identity]; ok {
		return pos.Clone(), nil
	}
	return nil, nil
}

func (s *InMemoryStore) Put(_ context.Context, pos *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[pos.Identity] = pos.Clone()
	return nil
}

func (s *InMemoryStore) Pool(_ context.Context) (*models.PoolState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool.Clone(), nil
}

func (s *InMemoryStore) PutPool(_ context.Context, pool *models.PoolState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool = pool.Clone()
	return nil
}

func (s *InMemoryStore) All(_ context.Context) ([]*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Position, 0, len(s.positions))
	for _, pos := range s.positions {
		out = append(out, pos.Clone())
	}
	return out, nil
}
