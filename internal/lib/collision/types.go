package collision

import "github.com/landloop/server/internal/lib/geo"

// Kind identifies the hard violation found, if any.
type Kind string

const (
	KindNone          Kind = "none"
	KindPointInside   Kind = "point_inside_other_territory"
	KindBoundaryCross Kind = "path_crosses_other_territory_boundary"
)

// WarningLevel is the graduated proximity classification reported when no
// hard violation exists.
type WarningLevel string

const (
	LevelSafe      WarningLevel = "safe"    // > 100m from any other territory
	LevelCaution   WarningLevel = "caution" // > 50m
	LevelWarning   WarningLevel = "warning" // > 25m
	LevelDanger    WarningLevel = "danger"  // <= 25m
	LevelViolation WarningLevel = "violation"
)

// Claim is another player's territory as seen by the checker: just an owner
// and an ordered polygon boundary. Claims are a read-only snapshot; staleness
// against concurrent writes elsewhere is acceptable.
type Claim struct {
	ID       string   `json:"id"`
	PlayerID string   `json:"player_id"`
	Ring     geo.Ring `json:"ring"`
}

// Result is the outcome of one collision evaluation. Computed fresh on
// demand, never stored.
type Result struct {
	HasCollision bool         `json:"has_collision"`
	Kind         Kind         `json:"kind"`
	DistanceM    float64      `json:"distance_to_nearest_m"`
	Level        WarningLevel `json:"warning_level"`
	Message      string       `json:"message,omitempty"`
}

// Config holds the proximity warning bands in meters.
type Config struct {
	SafeDistanceM    float64
	CautionDistanceM float64
	WarningDistanceM float64
}

// DefaultConfig returns the reference warning bands.
func DefaultConfig() Config {
	return Config{
		SafeDistanceM:    100,
		CautionDistanceM: 50,
		WarningDistanceM: 25,
	}
}
