package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/landloop/server/internal/config"
	"github.com/landloop/server/internal/export"
	"github.com/landloop/server/internal/lib/geo"
	"github.com/landloop/server/internal/lib/tracking"
	"github.com/landloop/server/internal/services"
)

// apiHandler exposes the tracking engine over plain HTTP for map clients and
// scripting. The engine itself is transport-agnostic; everything here is
// decode, delegate, encode.
type apiHandler struct {
	playerID         string
	trackingService  *services.TrackingService
	territoryService *services.TerritoryService
	fixBuffer        *services.LatestFixBuffer
}

func newAPIHandler(
	cfg *config.Config,
	trackingService *services.TrackingService,
	territoryService *services.TerritoryService,
	fixBuffer *services.LatestFixBuffer,
) *apiHandler {
	return &apiHandler{
		playerID:         cfg.Player.ID,
		trackingService:  trackingService,
		territoryService: territoryService,
		fixBuffer:        fixBuffer,
	}
}

// decisionResponse mirrors tracking.Decision with wire names.
type decisionResponse struct {
	Admitted bool                  `json:"admitted"`
	Reason   tracking.RejectReason `json:"reason,omitempty"`
	SpeedKmh float64               `json:"speed_kmh"`
}

// handleTerritories lists all claimed territories.
func (h *apiHandler) handleTerritories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	territories, err := h.territoryService.ActiveTerritories(r.Context(), "")
	if err != nil {
		slog.Error("Failed to list territories", "error", err)
		http.Error(w, "failed to list territories", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, territories)
}

// handleTerritoriesKML renders territories plus the in-progress walk as a KML
// overlay.
func (h *apiHandler) handleTerritoriesKML(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	territories, err := h.territoryService.ActiveTerritories(r.Context(), "")
	if err != nil {
		slog.Error("Failed to list territories", "error", err)
		http.Error(w, "failed to list territories", http.StatusInternalServerError)
		return
	}

	session := h.trackingService.Snapshot()
	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	if err := export.WriteKML(w, territories, &session); err != nil {
		slog.Error("Failed to write KML", "error", err)
	}
}

// handleFixes accepts one GPS fix: it refreshes the sampler's buffer and runs
// the fix through the admission gates immediately, returning the decision.
func (h *apiHandler) handleFixes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var fix tracking.Fix
	if err := json.NewDecoder(r.Body).Decode(&fix); err != nil {
		http.Error(w, "invalid fix payload", http.StatusBadRequest)
		return
	}
	if _, err := geo.NewPoint(fix.Latitude, fix.Longitude); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now()
	}

	h.fixBuffer.Update(fix)
	decision := h.trackingService.Admit(fix)
	writeJSON(w, http.StatusOK, decisionResponse{
		Admitted: decision.Admit,
		Reason:   decision.Reason,
		SpeedKmh: decision.SpeedKmh,
	})
}

// handleSession returns the current tracking snapshot.
func (h *apiHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.trackingService.Snapshot())
}

// handleSessionStart begins a claiming attempt. An optional fix in the body
// seeds the path; a start inside another territory is refused with 409 and
// the collision details.
func (h *apiHandler) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var seed *tracking.Fix
	var fix tracking.Fix
	if err := json.NewDecoder(r.Body).Decode(&fix); err == nil {
		if _, err := geo.NewPoint(fix.Latitude, fix.Longitude); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if fix.Timestamp.IsZero() {
			fix.Timestamp = time.Now()
		}
		seed = &fix
	}

	result, err := h.trackingService.Start(r.Context(), seed)
	if err != nil {
		slog.Error("Failed to start tracking", "error", err)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if result.HasCollision {
		writeJSON(w, http.StatusConflict, result)
		return
	}
	writeJSON(w, http.StatusOK, h.trackingService.Snapshot())
}

func (h *apiHandler) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.trackingService.Stop()
	writeJSON(w, http.StatusOK, h.trackingService.Snapshot())
}

func (h *apiHandler) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.trackingService.Clear()
	writeJSON(w, http.StatusOK, h.trackingService.Snapshot())
}

// handleSessionSubmit persists a validated claim. Failure leaves the session
// intact so the client can retry.
func (h *apiHandler) handleSessionSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	territory, err := h.trackingService.Submit(r.Context())
	if err != nil {
		slog.Error("Failed to submit territory", "error", err)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, territory)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
