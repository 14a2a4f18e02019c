package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/landloop/server/internal/cache"
	"github.com/landloop/server/internal/lib/collision"
	"github.com/landloop/server/internal/store"
)

const territoriesCacheKey = "territories:active"

// TerritoryService mediates between the tracking engine and the territory
// store. Reads go through a TTL cache because collision checks only need a
// best-effort snapshot; writes invalidate the cache and notify subscribers.
type TerritoryService struct {
	store           store.TerritoryStore
	cache           *cache.Cache
	refreshInterval time.Duration

	mu          sync.Mutex
	subscribers []func(store.Territory)
}

// NewTerritoryService creates a new TerritoryService.
func NewTerritoryService(territoryStore store.TerritoryStore, cacheInstance *cache.Cache, refreshInterval time.Duration) *TerritoryService {
	return &TerritoryService{
		store:           territoryStore,
		cache:           cacheInstance,
		refreshInterval: refreshInterval,
	}
}

// ActiveClaims returns the other players' territories as collision claims.
// A fresh cache entry is served directly; on a store failure a stale (but not
// very stale) snapshot is served instead, since staleness is acceptable for
// best-effort collision avoidance.
func (s *TerritoryService) ActiveClaims(ctx context.Context, excludePlayerID string) ([]collision.Claim, error) {
	key := fmt.Sprintf("%s:excl:%s", territoriesCacheKey, excludePlayerID)

	var cached []store.Territory
	found, err := s.cache.Get(key, &cached)
	if err != nil {
		log.Printf("Territory cache error: %v", err)
	}
	if found {
		return toClaims(cached), nil
	}

	territories, err := s.store.ActiveTerritories(ctx, excludePlayerID)
	if err != nil {
		// Fall back to a stale snapshot if one is still serviceable.
		if !s.cache.IsVeryStale(key) {
			if _, exists, cacheErr := s.cache.GetWithMetadata(key, &cached); exists && cacheErr == nil {
				log.Printf("Territory fetch failed, serving stale snapshot: %v", err)
				return toClaims(cached), nil
			}
		}
		return nil, fmt.Errorf("failed to fetch active territories: %w", err)
	}

	if err := s.cache.Set(key, territories, s.refreshInterval, "territories"); err != nil {
		log.Printf("Failed to cache territories: %v", err)
	}

	return toClaims(territories), nil
}

// ActiveTerritories returns the raw territory records (for rendering and the
// HTTP surface), using the same cache policy as ActiveClaims.
func (s *TerritoryService) ActiveTerritories(ctx context.Context, excludePlayerID string) ([]store.Territory, error) {
	key := fmt.Sprintf("%s:excl:%s", territoriesCacheKey, excludePlayerID)

	var cached []store.Territory
	if found, err := s.cache.Get(key, &cached); err == nil && found {
		return cached, nil
	}

	territories, err := s.store.ActiveTerritories(ctx, excludePlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active territories: %w", err)
	}
	if err := s.cache.Set(key, territories, s.refreshInterval, "territories"); err != nil {
		log.Printf("Failed to cache territories: %v", err)
	}
	return territories, nil
}

// Submit persists a finalized territory, invalidates the snapshot cache and
// notifies subscribers. The store is not retried here; a failure is returned
// to the caller, who still holds the validated session.
func (s *TerritoryService) Submit(ctx context.Context, territory store.Territory) error {
	if err := s.store.Submit(ctx, territory); err != nil {
		return fmt.Errorf("failed to submit territory: %w", err)
	}

	s.cache.Clear()
	log.Printf("Territory %s submitted for player %s (%.0f m2, %d points)",
		territory.ID, territory.PlayerID, territory.AreaM2, territory.PointCount)

	s.mu.Lock()
	subscribers := make([]func(store.Territory), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.Unlock()

	for _, notify := range subscribers {
		notify(territory)
	}
	return nil
}

// Subscribe registers a callback invoked after each successful submission,
// so stats displays can refresh.
func (s *TerritoryService) Subscribe(fn func(store.Territory)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func toClaims(territories []store.Territory) []collision.Claim {
	claims := make([]collision.Claim, len(territories))
	for i, t := range territories {
		claims[i] = collision.Claim{
			ID:       t.ID,
			PlayerID: t.PlayerID,
			Ring:     t.Points,
		}
	}
	return claims
}
