package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landloop/server/internal/cache"
	"github.com/landloop/server/internal/config"
	"github.com/landloop/server/internal/lib/collision"
	"github.com/landloop/server/internal/lib/geo"
	"github.com/landloop/server/internal/lib/tracking"
	"github.com/landloop/server/internal/store"
)

var trackBase = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newEngine(cfg *config.Config, territoryStore store.TerritoryStore) (*TrackingService, *TerritoryService) {
	geoUtils := geo.NewGeoUtils()
	territories := NewTerritoryService(territoryStore, cache.NewCache(), cfg.Territories.RefreshInterval)
	trackingService := NewTrackingService(
		cfg,
		tracking.NewSampleFilter(cfg.Tracking.FilterConfig(), geoUtils),
		tracking.NewIntersectionDetector(geoUtils),
		collision.NewChecker(cfg.Collision.CheckerConfig(), geoUtils),
		geoUtils,
		territories,
	)
	return trackingService, territories
}

func fix(lat, lng float64, at time.Time) tracking.Fix {
	return tracking.Fix{Latitude: lat, Longitude: lng, Accuracy: 10, Timestamp: at}
}

// walkFixes converts {lat, lng} coordinates into fixes 30 seconds apart.
func walkFixes(coords [][2]float64) []tracking.Fix {
	fixes := make([]tracking.Fix, len(coords))
	for i, c := range coords {
		fixes[i] = fix(c[0], c[1], trackBase.Add(time.Duration(i)*30*time.Second))
	}
	return fixes
}

// squareWalk returns a ~200m x ~200m square walk in ~50m steps. The 17th
// point lands within the closure radius of the start.
func squareWalk() []tracking.Fix {
	const u = 0.00045 // ~50m
	return walkFixes([][2]float64{
		{0, 0},
		{0, 1 * u}, {0, 2 * u}, {0, 3 * u}, {0, 4 * u},
		{1 * u, 4 * u}, {2 * u, 4 * u}, {3 * u, 4 * u}, {4 * u, 4 * u},
		{4 * u, 3 * u}, {4 * u, 2 * u}, {4 * u, 1 * u}, {4 * u, 0},
		{3 * u, 0}, {2 * u, 0}, {1 * u, 0},
		{0.0001, 0},
	})
}

// tightLoop returns a small 9-point {lat, lng} loop in ~50m steps whose last
// point lands ~11m from the start.
func tightLoop() [][2]float64 {
	const u = 0.00045
	return [][2]float64{
		{0, 0},
		{0, 1 * u}, {0, 2 * u},
		{1 * u, 2 * u}, {2 * u, 2 * u},
		{2 * u, 1 * u}, {2 * u, 0},
		{1 * u, 0},
		{0.0001, 0},
	}
}

func TestTracking_EndToEndSquareClaim(t *testing.T) {
	cfg := config.DefaultConfig()
	trackingService, _ := newEngine(cfg, store.NewMemoryStore())
	ctx := context.Background()

	fixes := squareWalk()
	result, err := trackingService.Start(ctx, &fixes[0])
	require.NoError(t, err)
	assert.False(t, result.HasCollision)

	for i, f := range fixes[1:] {
		decision := trackingService.Admit(f)
		assert.True(t, decision.Admit, "fix %d should be admitted", i+1)
		assert.Equal(t, tracking.SpeedOK, decision.Alert, "12 km/h walk should not warn")
	}

	snap := trackingService.Snapshot()
	assert.Equal(t, StatePassed, snap.State)
	assert.True(t, snap.Closed)
	assert.Equal(t, 17, snap.PointCount)
	require.NotNil(t, snap.Verdict)
	assert.True(t, snap.Verdict.Passed)
	assert.InDelta(t, 40000, snap.Verdict.AreaM2, 1500, "spherical area of a ~200m square")
	assert.Nil(t, snap.SpeedWarning)

	// The validated claim is accepted for submission.
	territory, err := trackingService.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 17, territory.PointCount)
	assert.InDelta(t, snap.Verdict.AreaM2, territory.AreaM2, 0.001)

	// Submission resets the session.
	assert.Equal(t, StateIdle, trackingService.Snapshot().State)
}

func TestTracking_ClosureNeedsBothConditions(t *testing.T) {
	cfg := config.DefaultConfig()
	trackingService, _ := newEngine(cfg, store.NewMemoryStore())
	ctx := context.Background()

	// Nine points, the last within the closure radius of the start but below
	// the minimum point count. No closure.
	loop := walkFixes(tightLoop())
	_, err := trackingService.Start(ctx, &loop[0])
	require.NoError(t, err)
	for i, f := range loop[1:] {
		require.True(t, trackingService.Admit(f).Admit, "fix %d", i+1)
	}
	snap := trackingService.Snapshot()
	assert.Equal(t, StateTracking, snap.State)
	assert.False(t, snap.Closed)
	assert.Equal(t, 9, snap.PointCount)

	// Enough points, but the walk is still far from its origin. No closure.
	trackingService.Clear()
	fixes := squareWalk()
	_, err = trackingService.Start(ctx, &fixes[0])
	require.NoError(t, err)
	for _, f := range fixes[1:13] {
		trackingService.Admit(f)
	}
	snap = trackingService.Snapshot()
	assert.Equal(t, StateTracking, snap.State)
	assert.False(t, snap.Closed)
	assert.Equal(t, 13, snap.PointCount)
}

func TestTracking_HardSpeedViolationStopsSession(t *testing.T) {
	cfg := config.DefaultConfig()
	trackingService, _ := newEngine(cfg, store.NewMemoryStore())
	ctx := context.Background()

	seed := fix(0, 0, trackBase)
	_, err := trackingService.Start(ctx, &seed)
	require.NoError(t, err)

	// ~99m in one second is far beyond the hard limit.
	decision := trackingService.Admit(fix(0.00089, 0, trackBase.Add(time.Second)))
	assert.False(t, decision.Admit)
	assert.Equal(t, tracking.SpeedHard, decision.Alert)

	snap := trackingService.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	require.NotNil(t, snap.SpeedWarning)
	assert.True(t, snap.SpeedWarning.Fatal)
	assert.Equal(t, 1, snap.PointCount, "rejected fix must not join the path")

	// Session is dead; further fixes are rejected with a reason the HTTP
	// surface can report.
	decision = trackingService.Admit(fix(0.0001, 0, trackBase.Add(40*time.Second)))
	assert.False(t, decision.Admit)
	assert.Equal(t, tracking.RejectNotTracking, decision.Reason)
}

func TestTracking_SoftSpeedWarningExpires(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Tracking.SpeedWarningTTL = 30 * time.Millisecond
	trackingService, _ := newEngine(cfg, store.NewMemoryStore())
	ctx := context.Background()

	seed := fix(0, 0, trackBase)
	_, err := trackingService.Start(ctx, &seed)
	require.NoError(t, err)

	// ~99m in 20s (~18 km/h): admitted with a transient warning.
	decision := trackingService.Admit(fix(0.00089, 0, trackBase.Add(20*time.Second)))
	assert.True(t, decision.Admit)
	assert.Equal(t, tracking.SpeedSoft, decision.Alert)
	require.NotNil(t, trackingService.Snapshot().SpeedWarning)

	assert.Eventually(t, func() bool {
		return trackingService.Snapshot().SpeedWarning == nil
	}, time.Second, 10*time.Millisecond, "soft warning should auto-expire")
}

func TestTracking_SelfIntersectingPathFailsValidation(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Validation.MinClosurePoints = 8
	cfg.Validation.MinPoints = 8
	cfg.Validation.MinAreaM2 = 1
	trackingService, _ := newEngine(cfg, store.NewMemoryStore())
	ctx := context.Background()

	// Figure-eight walk in {lat, lng} steps of ~44m: segment 4 doubles back
	// through segment 2, and the final point returns within the closure
	// radius.
	const u = 0.0004
	fixes := walkFixes([][2]float64{
		{0, 0},
		{0, 1 * u},
		{0, 2 * u},
		{2 * u, 2 * u},
		{2 * u, 3 * u},
		{1 * u, 1 * u},
		{1 * u, 0},
		{0.5 * u, 0},
	})

	_, err := trackingService.Start(ctx, &fixes[0])
	require.NoError(t, err)
	for i, f := range fixes[1:] {
		require.True(t, trackingService.Admit(f).Admit, "fix %d", i+1)
	}

	snap := trackingService.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	require.NotNil(t, snap.Verdict)
	assert.False(t, snap.Verdict.Passed)
	assert.Equal(t, FailureSelfIntersecting, snap.Verdict.Reason)

	// Failed paths are not eligible for submission.
	_, err = trackingService.Submit(ctx)
	assert.Error(t, err)

	// Clear returns to Idle with a fresh session.
	trackingService.Clear()
	snap = trackingService.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Zero(t, snap.PointCount)
	assert.Nil(t, snap.Verdict)
}

func TestTracking_ValidationFailureReasons(t *testing.T) {
	runWalk := func(t *testing.T, cfg *config.Config, fixes []tracking.Fix) TrackingSnapshot {
		t.Helper()
		trackingService, _ := newEngine(cfg, store.NewMemoryStore())
		_, err := trackingService.Start(context.Background(), &fixes[0])
		require.NoError(t, err)
		for _, f := range fixes[1:] {
			trackingService.Admit(f)
		}
		snap := trackingService.Snapshot()
		require.Equal(t, StateFailed, snap.State)
		require.NotNil(t, snap.Verdict)
		require.False(t, snap.Verdict.Passed)
		return snap
	}

	t.Run("insufficient points", func(t *testing.T) {
		// Close the tight loop at 9 points but demand 12 for validation.
		cfg := config.DefaultConfig()
		cfg.Validation.MinClosurePoints = 9
		cfg.Validation.MinPoints = 12
		snap := runWalk(t, cfg, walkFixes(tightLoop()))
		assert.Equal(t, FailureInsufficientPoints, snap.Verdict.Reason)
	})

	t.Run("insufficient distance", func(t *testing.T) {
		// The ~790m square walk falls short of a 2km minimum.
		cfg := config.DefaultConfig()
		cfg.Validation.MinPathLengthM = 2000
		snap := runWalk(t, cfg, squareWalk())
		assert.Equal(t, FailureInsufficientDistance, snap.Verdict.Reason)
	})

	t.Run("area too small", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Validation.MinAreaM2 = 50000
		snap := runWalk(t, cfg, squareWalk())
		assert.Equal(t, FailureAreaTooSmall, snap.Verdict.Reason)
		assert.InDelta(t, 40000, snap.Verdict.AreaM2, 1500, "failed verdicts still report the area")
	})

	t.Run("area too large", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Validation.MaxAreaM2 = 30000
		snap := runWalk(t, cfg, squareWalk())
		assert.Equal(t, FailureAreaTooLarge, snap.Verdict.Reason)
	})
}

func TestTracking_PreflightBlocksStartInsideTerritory(t *testing.T) {
	cfg := config.DefaultConfig()
	territoryStore := store.NewMemoryStore()
	rival := store.Territory{
		ID:       "t-rival",
		PlayerID: "rival",
		Points: []geo.Point{
			{Latitude: -0.001, Longitude: -0.001},
			{Latitude: -0.001, Longitude: 0.001},
			{Latitude: 0.001, Longitude: 0.001},
			{Latitude: 0.001, Longitude: -0.001},
		},
		AreaM2:     49000,
		PointCount: 4,
		StartedAt:  trackBase,
		CreatedAt:  trackBase,
		Active:     true,
	}
	require.NoError(t, territoryStore.Submit(context.Background(), rival))

	trackingService, _ := newEngine(cfg, territoryStore)

	seed := fix(0, 0, trackBase) // dead center of the rival claim
	result, err := trackingService.Start(context.Background(), &seed)
	require.NoError(t, err)
	assert.True(t, result.HasCollision)
	assert.Equal(t, collision.KindPointInside, result.Kind)

	snap := trackingService.Snapshot()
	assert.Equal(t, StateIdle, snap.State, "blocked start must not begin tracking")
	assert.Zero(t, snap.PointCount)
}

func TestTracking_StopWithoutValidation(t *testing.T) {
	cfg := config.DefaultConfig()
	trackingService, _ := newEngine(cfg, store.NewMemoryStore())
	ctx := context.Background()

	fixes := squareWalk()
	_, err := trackingService.Start(ctx, &fixes[0])
	require.NoError(t, err)
	trackingService.Admit(fixes[1])

	trackingService.Stop()
	snap := trackingService.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Verdict, "stop never validates")
	assert.Equal(t, 2, snap.PointCount, "path stays visible after stop")
}

// failingOnceStore fails the first Submit to exercise retryability.
type failingOnceStore struct {
	*store.MemoryStore
	failed bool
}

func (f *failingOnceStore) Submit(ctx context.Context, t store.Territory) error {
	if !f.failed {
		f.failed = true
		return assert.AnError
	}
	return f.MemoryStore.Submit(ctx, t)
}

func TestTracking_SubmitFailureLeavesSessionRetryable(t *testing.T) {
	cfg := config.DefaultConfig()
	flaky := &failingOnceStore{MemoryStore: store.NewMemoryStore()}
	trackingService, _ := newEngine(cfg, flaky)
	ctx := context.Background()

	fixes := squareWalk()
	_, err := trackingService.Start(ctx, &fixes[0])
	require.NoError(t, err)
	for _, f := range fixes[1:] {
		trackingService.Admit(f)
	}
	require.Equal(t, StatePassed, trackingService.Snapshot().State)

	// First submission fails; the validated session must survive.
	_, err = trackingService.Submit(ctx)
	require.Error(t, err)
	assert.Equal(t, StatePassed, trackingService.Snapshot().State)

	// Retry succeeds and resets.
	_, err = trackingService.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, trackingService.Snapshot().State)
}

func TestTracking_ObserversReceiveSnapshots(t *testing.T) {
	cfg := config.DefaultConfig()
	trackingService, _ := newEngine(cfg, store.NewMemoryStore())
	ctx := context.Background()

	var got []TrackingSnapshot
	trackingService.Subscribe(func(snap TrackingSnapshot) {
		got = append(got, snap)
	})

	fixes := squareWalk()
	_, err := trackingService.Start(ctx, &fixes[0])
	require.NoError(t, err)
	trackingService.Admit(fixes[1])

	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, StateTracking, got[len(got)-1].State)
	assert.Equal(t, 2, got[len(got)-1].PointCount)

	// Snapshots are copies; mutating one must not touch the session.
	got[len(got)-1].Path[0].Latitude = 99
	assert.NotEqual(t, 99.0, trackingService.Snapshot().Path[0].Latitude)
}
