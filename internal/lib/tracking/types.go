package tracking

import (
	"time"

	"github.com/landloop/server/internal/lib/geo"
)

// Fix is a single raw location reading from the platform location provider.
type Fix struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy_m"` // horizontal accuracy radius in meters
	Timestamp time.Time `json:"timestamp"`
}

// Point returns the fix's coordinate in the true-earth frame.
func (f Fix) Point() geo.Point {
	return geo.Point{Latitude: f.Latitude, Longitude: f.Longitude}
}

// RejectReason identifies which admission gate dropped a fix.
type RejectReason string

const (
	RejectNone       RejectReason = ""
	RejectAccuracy   RejectReason = "accuracy_too_low"
	RejectTooSoon    RejectReason = "interval_too_short"
	RejectTooClose   RejectReason = "movement_too_small"
	RejectJump       RejectReason = "movement_too_large"
	RejectSpeedLimit RejectReason = "speed_limit_exceeded"

	// RejectNotTracking is produced by the session owner, not the filter,
	// when a fix arrives outside an active tracking session.
	RejectNotTracking RejectReason = "not_tracking"
)

// SpeedAlert is the severity of the speed gate's outcome for one fix.
type SpeedAlert int

const (
	// SpeedOK clears any transient speed warning.
	SpeedOK SpeedAlert = iota
	// SpeedSoft admits the fix but raises an auto-expiring warning.
	SpeedSoft
	// SpeedHard rejects the fix and terminates the tracking session.
	SpeedHard
)

// Decision is the outcome of running one fix through the admission gates.
// Gate rejections are expected control flow, so they are values rather than
// errors.
type Decision struct {
	Admit    bool
	Reason   RejectReason
	SpeedKmh float64
	Alert    SpeedAlert
}

// Sample is an admitted fix: the point that made it into the path plus the
// time it was admitted, kept for the next fix's gate evaluation.
type Sample struct {
	Point      geo.Point
	AdmittedAt time.Time
}
