package collision

import (
	"fmt"
	"math"

	"github.com/landloop/server/internal/lib/geo"
)

// Checker tests a player's path against the other players' territories. All
// geometry runs in the true-earth frame; claims loaded from the display frame
// must be converted before they get here.
type Checker struct {
	geoUtils geo.GeoUtils
	config   Config
}

// NewChecker creates a checker with the given warning bands.
func NewChecker(config Config, geoUtils geo.GeoUtils) *Checker {
	return &Checker{geoUtils: geoUtils, config: config}
}

// CheckPoint tests a single point, typically a candidate starting location.
// Standing inside another territory is a hard violation; otherwise the result
// carries the graduated proximity level.
func (c *Checker) CheckPoint(point geo.Point, claims []Claim) Result {
	for _, claim := range claims {
		if c.geoUtils.PointInRing(point, claim.Ring) {
			return Result{
				HasCollision: true,
				Kind:         KindPointInside,
				Level:        LevelViolation,
				Message:      fmt.Sprintf("point is inside territory %s of player %s", claim.ID, claim.PlayerID),
			}
		}
	}
	return c.proximity(point, claims)
}

// CheckPath runs the comprehensive two-phase check for an in-progress or
// finalized path: first the hard checks (latest point inside a territory, or
// any path segment crossing a territory boundary), then, only if those pass,
// the proximity soft check from the latest point.
func (c *Checker) CheckPath(path []geo.Point, claims []Claim) Result {
	if len(path) == 0 {
		return Result{Kind: KindNone, Level: LevelSafe, DistanceM: math.Inf(1)}
	}

	latest := path[len(path)-1]
	for _, claim := range claims {
		if c.geoUtils.PointInRing(latest, claim.Ring) {
			return Result{
				HasCollision: true,
				Kind:         KindBoundaryCross,
				Level:        LevelViolation,
				Message:      fmt.Sprintf("path entered territory %s of player %s", claim.ID, claim.PlayerID),
			}
		}
		if c.pathCrossesRing(path, claim.Ring) {
			return Result{
				HasCollision: true,
				Kind:         KindBoundaryCross,
				Level:        LevelViolation,
				Message:      fmt.Sprintf("path crosses boundary of territory %s of player %s", claim.ID, claim.PlayerID),
			}
		}
	}

	return c.proximity(latest, claims)
}

// pathCrossesRing tests every path segment against every ring edge,
// including the implicit closing edge.
func (c *Checker) pathCrossesRing(path []geo.Point, ring geo.Ring) bool {
	if len(ring) < 3 {
		return false
	}
	for i := 0; i < len(path)-1; i++ {
		for j := range ring {
			k := (j + 1) % len(ring)
			if c.geoUtils.SegmentsCross(path[i], path[i+1], ring[j], ring[k]) {
				return true
			}
		}
	}
	return false
}

// proximity classifies the distance from a point to the nearest other
// territory into the configured warning bands.
func (c *Checker) proximity(point geo.Point, claims []Claim) Result {
	nearest := math.Inf(1)
	for _, claim := range claims {
		d, err := c.geoUtils.NearestVertexDistance(point, claim.Ring)
		if err != nil {
			continue
		}
		if d < nearest {
			nearest = d
		}
	}

	result := Result{Kind: KindNone, DistanceM: nearest}
	switch {
	case nearest > c.config.SafeDistanceM:
		result.Level = LevelSafe
	case nearest > c.config.CautionDistanceM:
		result.Level = LevelCaution
		result.Message = fmt.Sprintf("another territory is %.0fm away", nearest)
	case nearest > c.config.WarningDistanceM:
		result.Level = LevelWarning
		result.Message = fmt.Sprintf("another territory is %.0fm away", nearest)
	default:
		result.Level = LevelDanger
		result.Message = fmt.Sprintf("another territory is only %.0fm away", nearest)
	}
	return result
}
