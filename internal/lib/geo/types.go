package geo

// Point represents a geographic coordinate in the true-earth (WGS-84) frame.
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// DisplayPoint represents a coordinate already shifted into the map-display
// frame. Display points are derived, never persisted; validation geometry
// always runs on Point.
type DisplayPoint struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Ring is an ordered polygon boundary. The closing edge from the last vertex
// back to the first is implicit.
type Ring []Point

// GeoUtils interface defines the geographic calculations used by the
// tracking, validation and collision code.
type GeoUtils interface {
	// Calculate great-circle distance between two points in meters
	PointToPoint(p1, p2 Point) (float64, error)

	// Calculate distance between coordinate pairs (convenience method)
	DistanceFromCoords(lat1, lon1, lat2, lon2 float64) (float64, error)

	// Sum of consecutive segment distances along a path in meters
	PathLength(points []Point) (float64, error)

	// Spherical polygon area of an implicitly closed ring in square meters
	PolygonArea(ring Ring) (float64, error)

	// Report whether segments (p1,p2) and (p3,p4) cross
	SegmentsCross(p1, p2, p3, p4 Point) bool

	// Even-odd containment test of a point against a ring
	PointInRing(point Point, ring Ring) bool

	// Minimum great-circle distance from a point to any ring vertex
	NearestVertexDistance(point Point, ring Ring) (float64, error)
}

// NewGeoUtils is implemented in geo.go
