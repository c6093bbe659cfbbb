// Package memory provides an in-memory audit event store, used by the default
// deployment and by tests.
package memory

import (
	"context"
	"sync"

	id "mintgate/pkg/domain"
	"mintgate/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns events for an identity, or all events for the null identity.
func (s *InMemoryStore) List(_ context.Context, identity id.Identity) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if identity.IsNull() {
		out := make([]audit.Event, len(s.events))
		copy(out, s.events)
		return out, nil
	}
	var out []audit.Event
	for _, e := range s.events {
		if e.Identity == identity {
			out = append(out, e)
		}
	}
	return out, nil
}
