package tracking

import "github.com/landloop/server/internal/lib/geo"

// IntersectionDetector finds self-crossings in a sampled path.
type IntersectionDetector struct {
	geoUtils geo.GeoUtils
	// exemptWindow is how many segments at each end of the path are excused
	// from mutual comparison. The closing segment necessarily passes near the
	// opening segments and must not count as a crossing.
	exemptWindow int
}

// NewIntersectionDetector creates a detector with the reference head/tail
// exemption window of 2 segments.
func NewIntersectionDetector(geoUtils geo.GeoUtils) *IntersectionDetector {
	return &IntersectionDetector{geoUtils: geoUtils, exemptWindow: 2}
}

// PathSelfIntersects reports whether any two non-adjacent segments of the
// path cross. Adjacent segments share an endpoint and are never compared.
// Segments within the head window are not compared against segments within
// the tail window. Paths with fewer than 4 points cannot self-intersect.
func (d *IntersectionDetector) PathSelfIntersects(points []geo.Point) bool {
	if len(points) < 4 {
		return false
	}

	segments := len(points) - 1
	for i := 0; i < segments; i++ {
		for j := i + 2; j < segments; j++ {
			if i < d.exemptWindow && j >= segments-d.exemptWindow {
				continue
			}
			if d.geoUtils.SegmentsCross(points[i], points[i+1], points[j], points[j+1]) {
				return true
			}
		}
	}
	return false
}
