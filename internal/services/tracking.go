package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/landloop/server/internal/config"
	"github.com/landloop/server/internal/lib/collision"
	"github.com/landloop/server/internal/lib/geo"
	"github.com/landloop/server/internal/lib/tracking"
	"github.com/landloop/server/internal/store"
)

// State is the tracking state machine's current position.
type State string

const (
	StateIdle       State = "idle"
	StateTracking   State = "tracking"
	StateValidating State = "validating"
	StatePassed     State = "passed"
	StateFailed     State = "failed"
)

// FailureReason identifies which validation step rejected a closed path.
type FailureReason string

const (
	FailureInsufficientPoints   FailureReason = "insufficient_points"
	FailureInsufficientDistance FailureReason = "insufficient_distance"
	FailureSelfIntersecting     FailureReason = "self_intersecting"
	FailureAreaTooSmall         FailureReason = "area_too_small"
	FailureAreaTooLarge         FailureReason = "area_too_large"
)

// Verdict is the immutable result of validating one closed path.
type Verdict struct {
	Passed bool          `json:"passed"`
	Reason FailureReason `json:"failure_reason,omitempty"`
	AreaM2 float64       `json:"area_m2"`
}

// SpeedWarning is the user-facing speed state. Fatal warnings stopped the
// session; non-fatal ones auto-expire.
type SpeedWarning struct {
	Message  string  `json:"message"`
	SpeedKmh float64 `json:"speed_kmh"`
	Fatal    bool    `json:"fatal"`
}

// TrackingSnapshot is an immutable view of the session published to
// renderers on every change. Display coordinates are already datum-corrected;
// Path stays in the true-earth frame for anyone re-running geometry.
type TrackingSnapshot struct {
	State        State              `json:"state"`
	PointCount   int                `json:"point_count"`
	Path         []geo.Point        `json:"path"`
	DisplayPath  []geo.DisplayPoint `json:"display_path"`
	Closed       bool               `json:"closed"`
	StartedAt    time.Time          `json:"started_at"`
	Verdict      *Verdict           `json:"verdict,omitempty"`
	SpeedWarning *SpeedWarning      `json:"speed_warning,omitempty"`
	Collision    *collision.Result  `json:"collision,omitempty"`
}

// TrackingService owns the claiming attempt state machine:
//
//	Idle -> Tracking -> Validating -> Passed|Failed -> Idle
//
// All session mutation funnels through its mutex, so the location-provider
// callback and the periodic sampler can both call Admit without racing. The
// geometric work is synchronous and cheap enough to run under the lock; the
// only IO (territory fetch, submission) happens outside it.
type TrackingService struct {
	validation config.ValidationConfig
	warningTTL time.Duration
	playerID   string

	filter      *tracking.SampleFilter
	detector    *tracking.IntersectionDetector
	checker     *collision.Checker
	geoUtils    geo.GeoUtils
	territories *TerritoryService

	mu sync.Mutex
	// generation increments on every session boundary; pending timers carry
	// the generation they were scheduled under and no-op on mismatch, so a
	// cleared session can never be resurrected by a late callback.
	generation int
	warningSeq int

	state          State
	path           *tracking.TrackedPath
	lastSample     *tracking.Sample
	startedAt      time.Time
	verdict        *Verdict
	speedWarning   *SpeedWarning
	collisionState *collision.Result
	claims         []collision.Claim

	observers []func(TrackingSnapshot)
}

// NewTrackingService creates the state machine with its collaborators.
func NewTrackingService(
	cfg *config.Config,
	filter *tracking.SampleFilter,
	detector *tracking.IntersectionDetector,
	checker *collision.Checker,
	geoUtils geo.GeoUtils,
	territories *TerritoryService,
) *TrackingService {
	return &TrackingService{
		validation:  cfg.Validation,
		warningTTL:  cfg.Tracking.SpeedWarningTTL,
		playerID:    cfg.Player.ID,
		filter:      filter,
		detector:    detector,
		checker:     checker,
		geoUtils:    geoUtils,
		territories: territories,
		state:       StateIdle,
		path:        tracking.NewTrackedPath(),
	}
}

// Subscribe registers an observer that receives a snapshot after every state
// change. Observers must not call back into the service synchronously.
func (s *TrackingService) Subscribe(fn func(TrackingSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Start begins a fresh claiming attempt. The other players' territories are
// snapshotted up front for all of the session's collision checks. If a seed
// fix is supplied and sits inside another territory, the start is blocked and
// the returned result says why; that is expected control flow, not an error.
func (s *TrackingService) Start(ctx context.Context, seed *tracking.Fix) (collision.Result, error) {
	// Snapshot before the check begins; staleness during the session is
	// acceptable.
	claims, err := s.territories.ActiveClaims(ctx, s.playerID)
	if err != nil {
		// Fail closed: without a comparison set we cannot rule out starting
		// inside someone's claim.
		return collision.Result{}, fmt.Errorf("cannot start tracking: %w", err)
	}

	s.mu.Lock()
	if s.state == StateTracking {
		s.mu.Unlock()
		return collision.Result{}, fmt.Errorf("tracking already in progress")
	}

	s.resetSessionLocked()
	s.claims = claims

	result := collision.Result{Kind: collision.KindNone, Level: collision.LevelSafe}
	if seed != nil {
		result = s.checker.CheckPoint(seed.Point(), claims)
		if result.HasCollision {
			s.mu.Unlock()
			log.Printf("Tracking start blocked: %s", result.Message)
			return result, nil
		}
	}

	s.state = StateTracking
	s.startedAt = time.Now()
	if seed != nil {
		s.path.Append(seed.Point())
		s.lastSample = &tracking.Sample{Point: seed.Point(), AdmittedAt: seed.Timestamp}
		s.collisionState = &result
	}

	snap, obs := s.publishLocked()
	s.mu.Unlock()
	notify(snap, obs)

	log.Printf("Tracking started for player %s", s.playerID)
	return result, nil
}

// Admit runs one raw fix through the admission gates and, when it passes,
// appends it to the path and re-evaluates closure and collisions. Outside the
// Tracking state fixes are rejected with RejectNotTracking.
func (s *TrackingService) Admit(fix tracking.Fix) tracking.Decision {
	s.mu.Lock()
	if s.state != StateTracking {
		s.mu.Unlock()
		return tracking.Decision{Reason: tracking.RejectNotTracking}
	}

	decision := s.filter.Evaluate(fix, s.lastSample)

	switch decision.Alert {
	case tracking.SpeedHard:
		// Too fast for ground-claiming; end the session. The path stays
		// visible so the user sees where it stopped.
		s.speedWarning = &SpeedWarning{
			Message:  fmt.Sprintf("moving too fast (%.0f km/h), tracking stopped", decision.SpeedKmh),
			SpeedKmh: decision.SpeedKmh,
			Fatal:    true,
		}
		s.state = StateIdle
		s.generation++
		snap, obs := s.publishLocked()
		s.mu.Unlock()
		notify(snap, obs)
		return decision

	case tracking.SpeedSoft:
		s.warningSeq++
		seq := s.warningSeq
		gen := s.generation
		s.speedWarning = &SpeedWarning{
			Message:  fmt.Sprintf("slow down (%.0f km/h)", decision.SpeedKmh),
			SpeedKmh: decision.SpeedKmh,
		}
		time.AfterFunc(s.warningTTL, func() { s.expireSpeedWarning(gen, seq) })

	case tracking.SpeedOK:
		if s.speedWarning != nil && !s.speedWarning.Fatal {
			s.speedWarning = nil
		}
	}

	if !decision.Admit {
		s.mu.Unlock()
		return decision
	}

	s.path.Append(fix.Point())
	s.lastSample = &tracking.Sample{Point: fix.Point(), AdmittedAt: fix.Timestamp}

	// In-flight collision state is reported on the snapshot; whether a hard
	// hit aborts the walk is the caller's decision.
	result := s.checker.CheckPath(s.path.Points(), s.claims)
	s.collisionState = &result

	s.evaluateClosureLocked()

	snap, obs := s.publishLocked()
	s.mu.Unlock()
	notify(snap, obs)
	return decision
}

// Stop pauses the attempt without validating. The session is left on screen
// but no longer accepts fixes.
func (s *TrackingService) Stop() {
	s.mu.Lock()
	if s.state != StateTracking {
		s.mu.Unlock()
		return
	}
	s.state = StateIdle
	s.generation++
	snap, obs := s.publishLocked()
	s.mu.Unlock()
	notify(snap, obs)
	log.Printf("Tracking stopped")
}

// Clear discards all session state from any state and returns to Idle. A
// restart afterwards gets a completely fresh session.
func (s *TrackingService) Clear() {
	s.mu.Lock()
	s.resetSessionLocked()
	snap, obs := s.publishLocked()
	s.mu.Unlock()
	notify(snap, obs)
}

// Submit hands the validated polygon to the persistence adapter. On failure
// the session is left intact so the caller can retry; on success the session
// resets to Idle.
func (s *TrackingService) Submit(ctx context.Context) (store.Territory, error) {
	s.mu.Lock()
	if s.state != StatePassed || s.verdict == nil {
		s.mu.Unlock()
		return store.Territory{}, fmt.Errorf("no validated territory to submit")
	}

	territory := store.Territory{
		ID:         uuid.New().String(),
		PlayerID:   s.playerID,
		Points:     s.path.Points(),
		AreaM2:     s.verdict.AreaM2,
		PointCount: s.path.Len(),
		StartedAt:  s.startedAt,
		CreatedAt:  time.Now().UTC(),
		Active:     true,
	}
	gen := s.generation
	s.mu.Unlock()

	if err := s.territories.Submit(ctx, territory); err != nil {
		// Leave the session retryable.
		return store.Territory{}, err
	}

	s.mu.Lock()
	if s.generation == gen {
		s.resetSessionLocked()
	}
	snap, obs := s.publishLocked()
	s.mu.Unlock()
	notify(snap, obs)
	return territory, nil
}

// Snapshot returns the current immutable session view.
func (s *TrackingService) Snapshot() TrackingSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// evaluateClosureLocked declares closure once the path is long enough AND has
// returned within the closure radius of its start, then validates. Both
// conditions are required; neither alone closes the loop.
func (s *TrackingService) evaluateClosureLocked() {
	if s.path.Closed() || s.path.Len() < s.validation.MinClosurePoints {
		return
	}

	first, _ := s.path.First()
	last, _ := s.path.Last()
	d, err := s.geoUtils.PointToPoint(last, first)
	if err != nil || d > s.validation.ClosureRadiusM {
		return
	}

	s.path.Close()
	s.state = StateValidating
	verdict := s.validateLocked()
	s.verdict = &verdict
	if verdict.Passed {
		s.state = StatePassed
		log.Printf("Path closed and validated: %.0f m2 over %d points", verdict.AreaM2, s.path.Len())
	} else {
		s.state = StateFailed
		log.Printf("Path closed but failed validation: %s", verdict.Reason)
	}
}

// validateLocked runs the validation pipeline in its fixed order, cheapest
// checks first, short-circuiting on the first failure.
func (s *TrackingService) validateLocked() Verdict {
	points := s.path.Points()

	if len(points) < s.validation.MinPoints {
		return Verdict{Reason: FailureInsufficientPoints}
	}

	length, err := s.geoUtils.PathLength(points)
	if err != nil || length < s.validation.MinPathLengthM {
		return Verdict{Reason: FailureInsufficientDistance}
	}

	if s.detector.PathSelfIntersects(points) {
		return Verdict{Reason: FailureSelfIntersecting}
	}

	area, err := s.geoUtils.PolygonArea(points)
	if err != nil || area < s.validation.MinAreaM2 {
		return Verdict{Reason: FailureAreaTooSmall, AreaM2: area}
	}
	if s.validation.MaxAreaM2 > 0 && area > s.validation.MaxAreaM2 {
		return Verdict{Reason: FailureAreaTooLarge, AreaM2: area}
	}

	return Verdict{Passed: true, AreaM2: area}
}

// expireSpeedWarning clears a transient warning after its TTL, unless the
// session changed or a newer warning replaced it in the meantime.
func (s *TrackingService) expireSpeedWarning(gen, seq int) {
	s.mu.Lock()
	if s.generation != gen || s.warningSeq != seq ||
		s.speedWarning == nil || s.speedWarning.Fatal {
		s.mu.Unlock()
		return
	}
	s.speedWarning = nil
	snap, obs := s.publishLocked()
	s.mu.Unlock()
	notify(snap, obs)
}

func (s *TrackingService) resetSessionLocked() {
	s.generation++
	s.state = StateIdle
	s.path = tracking.NewTrackedPath()
	s.lastSample = nil
	s.startedAt = time.Time{}
	s.verdict = nil
	s.speedWarning = nil
	s.collisionState = nil
	s.claims = nil
}

func (s *TrackingService) snapshotLocked() TrackingSnapshot {
	points := s.path.Points()
	snap := TrackingSnapshot{
		State:       s.state,
		PointCount:  len(points),
		Path:        points,
		DisplayPath: geo.CorrectPath(points),
		Closed:      s.path.Closed(),
		StartedAt:   s.startedAt,
	}
	if s.verdict != nil {
		v := *s.verdict
		snap.Verdict = &v
	}
	if s.speedWarning != nil {
		w := *s.speedWarning
		snap.SpeedWarning = &w
	}
	if s.collisionState != nil {
		c := *s.collisionState
		snap.Collision = &c
	}
	return snap
}

func (s *TrackingService) publishLocked() (TrackingSnapshot, []func(TrackingSnapshot)) {
	obs := make([]func(TrackingSnapshot), len(s.observers))
	copy(obs, s.observers)
	return s.snapshotLocked(), obs
}

func notify(snap TrackingSnapshot, observers []func(TrackingSnapshot)) {
	for _, fn := range observers {
		fn(snap)
	}
}
