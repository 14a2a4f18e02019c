package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"github.com/dpup/prefab"

	"github.com/landloop/server/internal/cache"
	"github.com/landloop/server/internal/config"
	"github.com/landloop/server/internal/lib/collision"
	"github.com/landloop/server/internal/lib/geo"
	"github.com/landloop/server/internal/lib/tracking"
	"github.com/landloop/server/internal/services"
	"github.com/landloop/server/internal/store"
	"github.com/landloop/server/internal/ws"
)

func main() {
	// Load configuration using Prefab's config system
	appConfig := loadConfig()

	// Initialize cache for territory snapshots
	cacheInstance := cache.NewCache()

	// Open the territory store; an empty path selects the in-memory store
	var territoryStore store.TerritoryStore
	if appConfig.Store.Path == "" {
		log.Printf("No store path configured, territories will not survive restarts")
		territoryStore = store.NewMemoryStore()
	} else {
		sqliteStore, err := store.NewSQLiteStore(appConfig.Store.Path)
		if err != nil {
			log.Fatalf("Failed to open territory store: %v", err)
		}
		territoryStore = sqliteStore
	}
	defer territoryStore.Close()

	// Initialize the tracking engine and its collaborators
	geoUtils := geo.NewGeoUtils()
	territoryService := services.NewTerritoryService(territoryStore, cacheInstance, appConfig.Territories.RefreshInterval)
	trackingService := services.NewTrackingService(
		appConfig,
		tracking.NewSampleFilter(appConfig.Tracking.FilterConfig(), geoUtils),
		tracking.NewIntersectionDetector(geoUtils),
		collision.NewChecker(appConfig.Collision.CheckerConfig(), geoUtils),
		geoUtils,
		territoryService,
	)

	// Timer-gated sampling from the latest known fix
	fixBuffer := services.NewLatestFixBuffer()
	sampler := services.NewPeriodicSampler(fixBuffer, trackingService, appConfig.Tracking.SampleInterval)

	// Fan tracking snapshots out to connected map clients
	hub := ws.NewHub()
	trackingService.Subscribe(func(snap services.TrackingSnapshot) {
		hub.BroadcastJSON(snap)
	})

	log.Printf("Landloop server starting")
	log.Printf("Player: %s", appConfig.Player.ID)
	log.Printf("Sample interval: %v, territory refresh: %v",
		appConfig.Tracking.SampleInterval, appConfig.Territories.RefreshInterval)

	ctx := context.Background()
	cacheInstance.StartPeriodicCleanup(ctx, appConfig.Territories.CleanupInterval)
	sampler.Start(ctx)
	defer sampler.Stop()

	api := newAPIHandler(appConfig, trackingService, territoryService, fixBuffer)

	// Server configuration (port, etc.) will be loaded from prefab.yaml/env vars
	server := prefab.New(
		prefab.WithHTTPHandlerFunc("/", homepageHandler),
		prefab.WithHTTPHandlerFunc("/ws", hub.HandleWebSocket),
		prefab.WithHTTPHandlerFunc("/api/v1/territories", api.handleTerritories),
		prefab.WithHTTPHandlerFunc("/api/v1/territories.kml", api.handleTerritoriesKML),
		prefab.WithHTTPHandlerFunc("/api/v1/fixes", api.handleFixes),
		prefab.WithHTTPHandlerFunc("/api/v1/session", api.handleSession),
		prefab.WithHTTPHandlerFunc("/api/v1/session/start", api.handleSessionStart),
		prefab.WithHTTPHandlerFunc("/api/v1/session/stop", api.handleSessionStop),
		prefab.WithHTTPHandlerFunc("/api/v1/session/clear", api.handleSessionClear),
		prefab.WithHTTPHandlerFunc("/api/v1/session/submit", api.handleSessionSubmit),
	)

	// Start the server (blocks until shutdown)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// loadConfig loads configuration using Prefab's config system. Values come
// from prefab.yaml and environment variables with the PF__ prefix, falling
// back to the reference defaults for any unset section.
func loadConfig() *config.Config {
	appConfig := config.DefaultConfig()

	if err := prefab.Config.Unmarshal("player", &appConfig.Player); err != nil {
		log.Fatalf("Failed to unmarshal player section: %v", err)
	}
	if err := prefab.Config.Unmarshal("tracking", &appConfig.Tracking); err != nil {
		log.Fatalf("Failed to unmarshal tracking section: %v", err)
	}
	if err := prefab.Config.Unmarshal("validation", &appConfig.Validation); err != nil {
		log.Fatalf("Failed to unmarshal validation section: %v", err)
	}
	if err := prefab.Config.Unmarshal("collision", &appConfig.Collision); err != nil {
		log.Fatalf("Failed to unmarshal collision section: %v", err)
	}
	if err := prefab.Config.Unmarshal("territories", &appConfig.Territories); err != nil {
		log.Fatalf("Failed to unmarshal territories section: %v", err)
	}
	if err := prefab.Config.Unmarshal("store", &appConfig.Store); err != nil {
		log.Fatalf("Failed to unmarshal store section: %v", err)
	}

	return appConfig
}

// homepageHandler serves a simple HTML homepage at the server root
func homepageHandler(w http.ResponseWriter, r *http.Request) {
	// Only handle the root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	html := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>landloop</title>
    <style>
        body {
            font-family: 'Courier New', Consolas, monospace;
            background: #000;
            color: #0f0;
            padding: 20px;
            line-height: 1.4;
        }
        a { color: #0ff; text-decoration: none; }
        a:hover { text-decoration: underline; }
        pre { margin: 0; }
        .header { color: #ff0; }
    </style>
</head>
<body>
<pre>
<span class="header">landloop</span>

Territory claiming engine: walk a closed loop, keep the ground you circled.

<span class="header">API Endpoints:</span>

Territories:
  <a href="/api/v1/territories">GET /api/v1/territories</a>          - List claimed territories
  <a href="/api/v1/territories.kml">GET /api/v1/territories.kml</a>      - KML overlay for map clients

Session:
  <a href="/api/v1/session">GET /api/v1/session</a>              - Current tracking snapshot
  POST /api/v1/session/start        - Begin a claiming attempt
  POST /api/v1/session/stop         - Pause without validating
  POST /api/v1/session/clear        - Discard the session
  POST /api/v1/session/submit       - Persist a validated claim
  POST /api/v1/fixes                - Report a GPS fix

Streaming:
  GET /ws                           - Snapshot push over WebSocket

<span class="header">Example Usage:</span>
  curl -X POST <a href="/api/v1/session/start">/api/v1/session/start</a> -d '{"lat": 39.9, "lng": 116.4, "accuracy": 10}'
  curl <a href="/api/v1/session">/api/v1/session</a>
</pre>
</body>
</html>`

	if _, err := fmt.Fprint(w, html); err != nil {
		slog.Error("Failed to write homepage HTML", "error", err)
	}
}
