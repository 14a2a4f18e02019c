package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/landloop/server/internal/cache"
	"github.com/landloop/server/internal/config"
	"github.com/landloop/server/internal/lib/collision"
	"github.com/landloop/server/internal/lib/geo"
	"github.com/landloop/server/internal/lib/tracking"
	"github.com/landloop/server/internal/services"
	"github.com/landloop/server/internal/store"
)

// Replays a synthetic square walk through the full tracking engine and prints
// every gate decision plus the final verdict. Useful for eyeballing threshold
// changes without strapping a phone to your arm.
func main() {
	lat := flag.Float64("lat", 39.9042, "Origin latitude")
	lng := flag.Float64("lng", 116.4074, "Origin longitude")
	size := flag.Float64("size", 200, "Square side length in meters")
	step := flag.Float64("step", 50, "Distance between fixes in meters")
	speed := flag.Float64("speed", 6, "Walking speed in km/h")
	accuracy := flag.Float64("accuracy", 10, "Reported fix accuracy in meters")
	flag.Parse()

	if *step <= 0 || *speed <= 0 || *size < 2*(*step) {
		fmt.Println("Example usage:")
		fmt.Println("  simulate --lat 39.9042 --lng 116.4074 --size 200 --step 50 --speed 6")
		os.Exit(1)
	}

	appConfig := config.DefaultConfig()
	geoUtils := geo.NewGeoUtils()
	territoryStore := store.NewMemoryStore()
	territoryService := services.NewTerritoryService(territoryStore, cache.NewCache(), appConfig.Territories.RefreshInterval)
	trackingService := services.NewTrackingService(
		appConfig,
		tracking.NewSampleFilter(appConfig.Tracking.FilterConfig(), geoUtils),
		tracking.NewIntersectionDetector(geoUtils),
		collision.NewChecker(appConfig.Collision.CheckerConfig(), geoUtils),
		geoUtils,
		territoryService,
	)

	fixes := squareWalk(*lat, *lng, *size, *step, *speed, *accuracy)
	last := fixes[len(fixes)-1]
	closure, err := geoUtils.DistanceFromCoords(last.Latitude, last.Longitude, fixes[0].Latitude, fixes[0].Longitude)
	if err != nil {
		log.Fatalf("Failed to measure closure distance: %v", err)
	}
	fmt.Printf("Simulating a %.0fm square walk: %d fixes at %.1f km/h, ending %.0fm from the origin\n\n",
		*size, len(fixes), *speed, closure)

	ctx := context.Background()
	result, err := trackingService.Start(ctx, &fixes[0])
	if err != nil {
		log.Fatalf("Failed to start tracking: %v", err)
	}
	if result.HasCollision {
		log.Fatalf("Start blocked: %s", result.Message)
	}

	for i, fix := range fixes[1:] {
		decision := trackingService.Admit(fix)
		if decision.Admit {
			fmt.Printf("  fix %2d: admitted (%.1f km/h)\n", i+1, decision.SpeedKmh)
		} else {
			fmt.Printf("  fix %2d: rejected (%s)\n", i+1, decision.Reason)
		}
	}

	snap := trackingService.Snapshot()
	fmt.Printf("\nState: %s, closed: %t, points: %d\n", snap.State, snap.Closed, snap.PointCount)
	if snap.Verdict == nil {
		fmt.Println("Walk never closed; no verdict.")
		return
	}
	if !snap.Verdict.Passed {
		fmt.Printf("Validation failed: %s\n", snap.Verdict.Reason)
		return
	}
	fmt.Printf("Validation passed: %.0f m2 (%.4f km2)\n", snap.Verdict.AreaM2, snap.Verdict.AreaM2/1e6)

	territory, err := trackingService.Submit(ctx)
	if err != nil {
		log.Fatalf("Failed to submit territory: %v", err)
	}
	fmt.Printf("Territory submitted: %s\n", territory.ID)
}

// squareWalk generates fixes tracing a square of the given side length,
// ending within the closure radius of the origin.
func squareWalk(lat, lng, size, step, speedKmh, accuracy float64) []tracking.Fix {
	latPerMeter := 1.0 / 111320.0
	lngPerMeter := 1.0 / (111320.0 * math.Cos(lat*math.Pi/180))
	n := int(math.Round(size / step))

	type offset struct{ northM, eastM float64 }
	var offsets []offset
	for i := 0; i <= n; i++ { // east along the south side
		offsets = append(offsets, offset{0, float64(i) * step})
	}
	for i := 1; i <= n; i++ { // north along the east side
		offsets = append(offsets, offset{float64(i) * step, size})
	}
	for i := 1; i <= n; i++ { // west along the north side
		offsets = append(offsets, offset{size, size - float64(i)*step})
	}
	for i := 1; i < n; i++ { // south along the west side, stopping short
		offsets = append(offsets, offset{size - float64(i)*step, 0})
	}
	offsets = append(offsets, offset{10, 0}) // ~10m from the origin closes the loop

	interval := time.Duration(step / (speedKmh / 3.6) * float64(time.Second))
	start := time.Now().Add(-time.Duration(len(offsets)) * interval)

	fixes := make([]tracking.Fix, len(offsets))
	for i, o := range offsets {
		fixes[i] = tracking.Fix{
			Latitude:  lat + o.northM*latPerMeter,
			Longitude: lng + o.eastM*lngPerMeter,
			Accuracy:  accuracy,
			Timestamp: start.Add(time.Duration(i) * interval),
		}
	}
	return fixes
}
