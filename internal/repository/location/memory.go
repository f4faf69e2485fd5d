package location

import (
	"context"
	"sync"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
)

// MemoryStore is the process-local Store used when Redis is not configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]sos.Coordinate
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]sos.Coordinate)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, userID string) (sos.Coordinate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coordinate, ok := s.records[userID]
	if !ok {
		return sos.Coordinate{}, ErrNotFound
	}

	return coordinate, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, userID string, coordinate sos.Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[userID] = coordinate

	return nil
}
