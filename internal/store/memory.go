package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory TerritoryStore used in tests and as a fallback
// when no database path is configured.
type MemoryStore struct {
	mu          sync.RWMutex
	territories map[string]Territory
	order       []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{territories: make(map[string]Territory)}
}

// Submit persists a validated territory.
func (s *MemoryStore) Submit(ctx context.Context, territory Territory) error {
	if territory.ID == "" {
		return fmt.Errorf("territory is missing an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.territories[territory.ID]; exists {
		return fmt.Errorf("territory already exists: %s", territory.ID)
	}
	s.territories[territory.ID] = territory
	s.order = append(s.order, territory.ID)
	return nil
}

// ActiveTerritories returns active territories excluding the given player's.
func (s *MemoryStore) ActiveTerritories(ctx context.Context, excludePlayerID string) ([]Territory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Territory
	for _, id := range s.order {
		t := s.territories[id]
		if t.Active && t.PlayerID != excludePlayerID {
			out = append(out, t)
		}
	}
	return out, nil
}

// SetActive flips the soft-deletion flag.
func (s *MemoryStore) SetActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.territories[id]
	if !exists {
		return fmt.Errorf("territory not found: %s", id)
	}
	t.Active = active
	s.territories[id] = t
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
