package config

import (
	"time"

	"github.com/landloop/server/internal/lib/collision"
	"github.com/landloop/server/internal/lib/tracking"
)

// Config represents the complete server configuration. Every numeric
// threshold the engine recognizes is a named field here rather than an
// inline constant, since the reference values have shifted across revisions.
type Config struct {
	Player      PlayerConfig      `yaml:"player"`
	Tracking    TrackingConfig    `yaml:"tracking"`
	Validation  ValidationConfig  `yaml:"validation"`
	Collision   CollisionConfig   `yaml:"collision"`
	Territories TerritoriesConfig `yaml:"territories"`
	Store       StoreConfig       `yaml:"store"`
}

// PlayerConfig identifies the acting player.
type PlayerConfig struct {
	ID string `yaml:"id"`
}

// TrackingConfig holds the sample filter and sampler settings.
type TrackingConfig struct {
	AccuracyThresholdM float64       `yaml:"accuracy_threshold_m"`
	MinSampleInterval  time.Duration `yaml:"min_sample_interval"`
	MinStepM           float64       `yaml:"min_step_m"`
	MaxStepM           float64       `yaml:"max_step_m"`
	SoftSpeedKmh       float64       `yaml:"soft_speed_kmh"`
	HardSpeedKmh       float64       `yaml:"hard_speed_kmh"`
	SpeedWarningTTL    time.Duration `yaml:"speed_warning_ttl"`
	SampleInterval     time.Duration `yaml:"sample_interval"`
}

// FilterConfig converts the tracking section into filter thresholds.
func (t TrackingConfig) FilterConfig() tracking.FilterConfig {
	return tracking.FilterConfig{
		AccuracyThresholdM: t.AccuracyThresholdM,
		MinInterval:        t.MinSampleInterval,
		MinStepM:           t.MinStepM,
		MaxStepM:           t.MaxStepM,
		SoftSpeedKmh:       t.SoftSpeedKmh,
		HardSpeedKmh:       t.HardSpeedKmh,
	}
}

// ValidationConfig holds closure detection and verdict thresholds.
type ValidationConfig struct {
	MinClosurePoints int     `yaml:"min_closure_points"`
	ClosureRadiusM   float64 `yaml:"closure_radius_m"`
	MinPoints        int     `yaml:"min_points"`
	MinPathLengthM   float64 `yaml:"min_path_length_m"`
	MinAreaM2        float64 `yaml:"min_area_m2"`
	MaxAreaM2        float64 `yaml:"max_area_m2"`
}

// CollisionConfig holds the proximity warning bands.
type CollisionConfig struct {
	SafeDistanceM    float64 `yaml:"safe_distance_m"`
	CautionDistanceM float64 `yaml:"caution_distance_m"`
	WarningDistanceM float64 `yaml:"warning_distance_m"`
}

// CheckerConfig converts the collision section into checker bands.
func (c CollisionConfig) CheckerConfig() collision.Config {
	return collision.Config{
		SafeDistanceM:    c.SafeDistanceM,
		CautionDistanceM: c.CautionDistanceM,
		WarningDistanceM: c.WarningDistanceM,
	}
}

// TerritoriesConfig controls the snapshot cache for collision checks.
type TerritoriesConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// StoreConfig selects the persistence backend. An empty path selects the
// in-memory store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() *Config {
	return &Config{
		Player: PlayerConfig{
			ID: "local-player",
		},
		Tracking: TrackingConfig{
			AccuracyThresholdM: 50,
			MinSampleInterval:  time.Second,
			MinStepM:           5,
			MaxStepM:           100,
			SoftSpeedKmh:       15,
			HardSpeedKmh:       30,
			SpeedWarningTTL:    3 * time.Second,
			SampleInterval:     2 * time.Second,
		},
		Validation: ValidationConfig{
			MinClosurePoints: 10,
			ClosureRadiusM:   30,
			MinPoints:        10,
			MinPathLengthM:   50,
			MinAreaM2:        100,
			MaxAreaM2:        10_000_000,
		},
		Collision: CollisionConfig{
			SafeDistanceM:    100,
			CautionDistanceM: 50,
			WarningDistanceM: 25,
		},
		Territories: TerritoriesConfig{
			RefreshInterval: 30 * time.Second,
			CleanupInterval: 5 * time.Minute,
		},
		Store: StoreConfig{
			Path: "landloop.db",
		},
	}
}
