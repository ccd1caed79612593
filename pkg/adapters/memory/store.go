package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/paisatax/taxgraph/pkg/domain"
)

// Store implements ports.StateStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Session
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Session),
	}
}

// copySession isolates the stored session from the caller. State is
// immutable and can be shared; the slots map cannot.
func copySession(s *domain.Session) *domain.Session {
	cp := *s
	cp.Params.Slots = maps.Clone(s.Params.Slots)
	return &cp
}

// Save persists the session in memory.
func (s *Store) Save(ctx context.Context, key string, session *domain.Session) error {
	cp := copySession(session)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = cp
	return nil
}

// Load retrieves the session from memory.
func (s *Store) Load(ctx context.Context, key string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.data[key]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return copySession(session), nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// List returns stored session keys, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}
