package tracking

import "github.com/landloop/server/internal/lib/geo"

// TrackedPath is the ordered, append-only point sequence of one claiming
// attempt. Points stay in acquisition order and are never reordered or
// deduplicated here; proximity dedup happens at admission time in the
// SampleFilter. Once the path is closed no further points are accepted.
//
// TrackedPath is not safe for concurrent use; the owning service serializes
// access.
type TrackedPath struct {
	points []geo.Point
	closed bool
}

// NewTrackedPath creates an empty open path.
func NewTrackedPath() *TrackedPath {
	return &TrackedPath{}
}

// Append adds a point in acquisition order. It reports false once the path
// has been closed.
func (p *TrackedPath) Append(point geo.Point) bool {
	if p.closed {
		return false
	}
	p.points = append(p.points, point)
	return true
}

// Close freezes the path. Idempotent.
func (p *TrackedPath) Close() {
	p.closed = true
}

// Closed reports whether the loop has been declared complete.
func (p *TrackedPath) Closed() bool {
	return p.closed
}

// Len returns the number of points.
func (p *TrackedPath) Len() int {
	return len(p.points)
}

// First returns the starting point; ok is false for an empty path.
func (p *TrackedPath) First() (geo.Point, bool) {
	if len(p.points) == 0 {
		return geo.Point{}, false
	}
	return p.points[0], true
}

// Last returns the most recent point; ok is false for an empty path.
func (p *TrackedPath) Last() (geo.Point, bool) {
	if len(p.points) == 0 {
		return geo.Point{}, false
	}
	return p.points[len(p.points)-1], true
}

// Points returns a copy of the point sequence so callers cannot mutate the
// path out from under the owner.
func (p *TrackedPath) Points() []geo.Point {
	out := make([]geo.Point, len(p.points))
	copy(out, p.points)
	return out
}
