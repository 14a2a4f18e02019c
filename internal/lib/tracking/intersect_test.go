package tracking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/landloop/server/internal/lib/geo"
)

// pt maps plane coordinates onto a Point (x=longitude, y=latitude).
func pt(x, y float64) geo.Point {
	return geo.Point{Latitude: y, Longitude: x}
}

func TestPathSelfIntersects_TooShort(t *testing.T) {
	d := NewIntersectionDetector(geo.NewGeoUtils())

	assert.False(t, d.PathSelfIntersects(nil))
	assert.False(t, d.PathSelfIntersects([]geo.Point{pt(0, 0), pt(1, 1), pt(2, 0)}))
}

func TestPathSelfIntersects_MidPathCrossing(t *testing.T) {
	d := NewIntersectionDetector(geo.NewGeoUtils())

	// Segment 4 doubles back through segment 2.
	path := []geo.Point{
		pt(0, 0),
		pt(1, 0),
		pt(2, 0),
		pt(2, 2),
		pt(3, 2),
		pt(1, 1),
		pt(0, 1),
		pt(0, 0.5),
	}
	assert.True(t, d.PathSelfIntersects(path))
}

func TestPathSelfIntersects_ConvexLoopIsClean(t *testing.T) {
	d := NewIntersectionDetector(geo.NewGeoUtils())

	// Simple convex 12-gon walked in order, closing back toward the start.
	var path []geo.Point
	for k := 0; k < 12; k++ {
		theta := 2 * math.Pi * float64(k) / 12
		path = append(path, pt(0.001*math.Cos(theta), 0.001*math.Sin(theta)))
	}
	// Final sample just short of the starting point.
	path = append(path, pt(0.00099, 0.00002))

	assert.False(t, d.PathSelfIntersects(path))
}

func TestPathSelfIntersects_ClosingSegmentExemption(t *testing.T) {
	d := NewIntersectionDetector(geo.NewGeoUtils())

	// The final segment overshoots and crosses the opening segment. That pair
	// sits in the head/tail exemption window, so it must not be flagged.
	path := []geo.Point{
		pt(0, 0),
		pt(2, 0),
		pt(3, 1),
		pt(3, 2),
		pt(2, 3),
		pt(1, 3),
		pt(0, 2),
		pt(1, -0.1),
	}
	assert.False(t, d.PathSelfIntersects(path))
}
