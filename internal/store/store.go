package store

import (
	"context"
	"time"

	"github.com/landloop/server/internal/lib/geo"
)

// Territory is a finalized, persisted claim. It is created only from a
// validated path and never mutated afterwards except for the active flag
// (soft deletion).
type Territory struct {
	ID         string      `json:"id"`
	PlayerID   string      `json:"player_id"`
	Points     []geo.Point `json:"points"` // true-earth frame vertices, acquisition order
	AreaM2     float64     `json:"area_m2"`
	PointCount int         `json:"point_count"`
	StartedAt  time.Time   `json:"started_at"`
	CreatedAt  time.Time   `json:"created_at"`
	Active     bool        `json:"active"`
}

// TerritoryStore persists finalized territories and serves the comparison
// set for collision checks. Implementations do not retry; failures surface to
// the caller, who may resubmit the still-valid session.
type TerritoryStore interface {
	// Submit persists a validated territory.
	Submit(ctx context.Context, territory Territory) error

	// ActiveTerritories returns all active territories except those owned by
	// the given player. Pass "" to include everyone.
	ActiveTerritories(ctx context.Context, excludePlayerID string) ([]Territory, error)

	// SetActive flips the soft-deletion flag on a territory.
	SetActive(ctx context.Context, id string, active bool) error

	// Close releases the underlying resources.
	Close() error
}
