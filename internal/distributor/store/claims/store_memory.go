// Package claims persists per-round claim markers and the active round state.
package claims

import (
	"context"
	"sync"

	"mintgate/internal/distributor/models"
	id "mintgate/pkg/domain"
)

type roundKey struct {
	round    id.Round
	identity id.Identity
}

// InMemoryStore keeps claim markers and round state in process.
type InMemoryStore struct {
	mu      sync.RWMutex
	claimed map[roundKey]bool
	round   *models.RoundState
}

func New() *InMemoryStore {
	return &InMemoryStore{claimed: make(map[roundKey]bool)}
}

func (s *InMemoryStore) Round(_ context.Context) (*models.RoundState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.round == nil {
		return nil, nil
	}
	copied := *s.round
	return &copied, nil
}

func (s *InMemoryStore) PutRound(_ context.Context, round *models.RoundState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *round
	s.round = &copied
	return nil
}

func (s *InMemoryStore) IsClaimed(_ context.Context, round id.Round, identity id.Identity) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claimed[roundKey{round, identity}], nil
}

func (s *InMemoryStore) MarkClaimed(_ context.Context, round id.Round, identity id.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := roundKey{round, identity}
	if s.claimed[key] {
		return models.ErrAlreadyClaimed
	}
	s.claimed[key] = true
	return nil
}

// Unmark clears a claim marker. Compensation path for a payout that failed
// after the marker was set.
func (s *InMemoryStore) Unmark(_ context.Context, round id.Round, identity id.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claimed, roundKey{round, identity})
	return nil
}

// Count reports how many identities have claimed in a round.
func (s *InMemoryStore) Count(_ context.Context, round id.Round) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n uint64
	for key, claimed := range s.claimed {
		if key.round == round && claimed {
			n++
		}
	}
	return n, nil
}
