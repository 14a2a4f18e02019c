package tracking

import (
	"time"

	"github.com/landloop/server/internal/lib/geo"
)

// FilterConfig holds the admission thresholds for raw fixes. Zero values are
// not meaningful; start from DefaultFilterConfig.
type FilterConfig struct {
	// AccuracyThresholdM rejects fixes whose reported horizontal accuracy
	// radius is worse than this many meters.
	AccuracyThresholdM float64
	// MinInterval rejects fixes arriving sooner than this after the last
	// admitted sample.
	MinInterval time.Duration
	// MinStepM rejects movements below this distance (stationary GPS jitter).
	MinStepM float64
	// MaxStepM rejects single-step movements above this distance
	// (teleportation artifacts).
	MaxStepM float64
	// SoftSpeedKmh raises a transient warning above this speed.
	SoftSpeedKmh float64
	// HardSpeedKmh rejects the fix and ends the session above this speed.
	HardSpeedKmh float64
}

// DefaultFilterConfig returns the reference thresholds.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		AccuracyThresholdM: 50,
		MinInterval:        time.Second,
		MinStepM:           5,
		MaxStepM:           100,
		SoftSpeedKmh:       15,
		HardSpeedKmh:       30,
	}
}

// SampleFilter decides whether raw fixes are admitted into the tracked path.
// It is stateless; the caller supplies the last admitted sample.
type SampleFilter struct {
	config   FilterConfig
	geoUtils geo.GeoUtils
}

// NewSampleFilter creates a filter with the given thresholds.
func NewSampleFilter(config FilterConfig, geoUtils geo.GeoUtils) *SampleFilter {
	return &SampleFilter{config: config, geoUtils: geoUtils}
}

// Evaluate runs a fix through the four admission gates in order: accuracy,
// time, distance, speed. The distance gate runs before the speed gate so that
// stationary jitter is dropped as "too close" instead of being misread as a
// speed violation. A nil last sample means this is the first fix of the
// session, which only has to pass the accuracy gate.
func (f *SampleFilter) Evaluate(fix Fix, last *Sample) Decision {
	// Gate 1: accuracy
	if fix.Accuracy > f.config.AccuracyThresholdM {
		return Decision{Reason: RejectAccuracy}
	}

	if last == nil {
		return Decision{Admit: true}
	}

	// Gate 2: minimum interval
	elapsed := fix.Timestamp.Sub(last.AdmittedAt)
	if elapsed < f.config.MinInterval {
		return Decision{Reason: RejectTooSoon}
	}

	// Gate 3: movement bounds
	distance, err := f.geoUtils.PointToPoint(last.Point, fix.Point())
	if err != nil {
		// Malformed coordinates fail closed.
		return Decision{Reason: RejectJump}
	}
	if distance < f.config.MinStepM {
		return Decision{Reason: RejectTooClose}
	}
	if distance > f.config.MaxStepM {
		return Decision{Reason: RejectJump}
	}

	// Gate 4: speed plausibility
	speedKmh := distance / elapsed.Seconds() * 3.6
	switch {
	case speedKmh > f.config.HardSpeedKmh:
		return Decision{Reason: RejectSpeedLimit, SpeedKmh: speedKmh, Alert: SpeedHard}
	case speedKmh > f.config.SoftSpeedKmh:
		return Decision{Admit: true, SpeedKmh: speedKmh, Alert: SpeedSoft}
	default:
		return Decision{Admit: true, SpeedKmh: speedKmh, Alert: SpeedOK}
	}
}
