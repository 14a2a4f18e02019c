package geo

import (
	"errors"
	"math"
)

// earthRadius is the mean Earth radius in meters, shared by the distance and
// area calculations so fixtures stay comparable.
const earthRadius = 6371000.0

// geoUtils implements the GeoUtils interface
type geoUtils struct{}

// NewGeoUtils creates a new GeoUtils implementation
func NewGeoUtils() GeoUtils {
	return &geoUtils{}
}

// PointToPoint calculates great-circle distance between two points using the
// Haversine formula.
func (g *geoUtils) PointToPoint(p1, p2 Point) (float64, error) {
	if !isValidCoordinate(p1) || !isValidCoordinate(p2) {
		return 0, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}

	if p1.Latitude == p2.Latitude && p1.Longitude == p2.Longitude {
		return 0, nil
	}

	lat1 := p1.Latitude * math.Pi / 180
	lon1 := p1.Longitude * math.Pi / 180
	lat2 := p2.Latitude * math.Pi / 180
	lon2 := p2.Longitude * math.Pi / 180

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c, nil
}

// DistanceFromCoords calculates distance between two coordinate pairs.
// Convenience method for raw latitude/longitude values.
func (g *geoUtils) DistanceFromCoords(lat1, lon1, lat2, lon2 float64) (float64, error) {
	return g.PointToPoint(Point{Latitude: lat1, Longitude: lon1}, Point{Latitude: lat2, Longitude: lon2})
}

// PathLength sums the consecutive segment distances along a path.
func (g *geoUtils) PathLength(points []Point) (float64, error) {
	total := 0.0
	for i := 0; i < len(points)-1; i++ {
		d, err := g.PointToPoint(points[i], points[i+1])
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}

// PolygonArea computes the spherical area of an implicitly closed ring via a
// shoelace summation where each edge's longitude delta is weighted by
// (2 + sin(lat1) + sin(lat2)). Valid for polygons small relative to the
// Earth's radius; no further projection correction is applied.
func (g *geoUtils) PolygonArea(ring Ring) (float64, error) {
	if len(ring) < 3 {
		return 0, errors.New("polygon area requires at least 3 points")
	}
	for _, p := range ring {
		if !isValidCoordinate(p) {
			return 0, errors.New("polygon contains invalid coordinates")
		}
	}

	sum := 0.0
	for i := range ring {
		p1 := ring[i]
		p2 := ring[(i+1)%len(ring)]

		lon1 := p1.Longitude * math.Pi / 180
		lon2 := p2.Longitude * math.Pi / 180
		lat1 := p1.Latitude * math.Pi / 180
		lat2 := p2.Latitude * math.Pi / 180

		sum += (lon2 - lon1) * (2 + math.Sin(lat1) + math.Sin(lat2))
	}

	return math.Abs(sum) * earthRadius * earthRadius / 2, nil
}

// ccw reports the sign of the 2D cross product (C.y-A.y)*(B.x-A.x) -
// (B.y-A.y)*(C.x-A.x), treating longitude as x and latitude as y.
func ccw(a, b, c Point) bool {
	return (c.Latitude-a.Latitude)*(b.Longitude-a.Longitude) >
		(b.Latitude-a.Latitude)*(c.Longitude-a.Longitude)
}

// SegmentsCross reports whether segments (p1,p2) and (p3,p4) properly
// intersect. The test is symmetric in the two segments.
func (g *geoUtils) SegmentsCross(p1, p2, p3, p4 Point) bool {
	return ccw(p1, p3, p4) != ccw(p2, p3, p4) && ccw(p1, p2, p3) != ccw(p1, p2, p4)
}

// PointInRing runs the even-odd ray-casting rule against a ring. Rings with
// fewer than 3 vertices contain nothing.
func (g *geoUtils) PointInRing(point Point, ring Ring) bool {
	if len(ring) < 3 {
		return false
	}

	inside := false
	j := len(ring) - 1
	for i := range ring {
		pi, pj := ring[i], ring[j]
		if (pi.Latitude > point.Latitude) != (pj.Latitude > point.Latitude) &&
			point.Longitude < (pj.Longitude-pi.Longitude)*(point.Latitude-pi.Latitude)/(pj.Latitude-pi.Latitude)+pi.Longitude {
			inside = !inside
		}
		j = i
	}
	return inside
}

// NearestVertexDistance returns the minimum great-circle distance from a
// point to any ring vertex. This is a vertex-to-point approximation, not an
// exact edge distance; it is used for graduated proximity warnings where
// meter-level precision is not required.
func (g *geoUtils) NearestVertexDistance(point Point, ring Ring) (float64, error) {
	if len(ring) == 0 {
		return 0, errors.New("ring has no vertices")
	}

	minDistance := math.Inf(1)
	for _, v := range ring {
		d, err := g.PointToPoint(point, v)
		if err != nil {
			return 0, err
		}
		if d < minDistance {
			minDistance = d
		}
	}
	return minDistance, nil
}

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	point := Point{Latitude: latitude, Longitude: longitude}
	if !isValidCoordinate(point) {
		return Point{}, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return point, nil
}

// isValidCoordinate validates latitude and longitude values
func isValidCoordinate(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}
