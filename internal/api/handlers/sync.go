package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tour-availability/backend/internal/api/middleware"
	"github.com/tour-availability/backend/internal/availability"
	"github.com/tour-availability/backend/internal/sync"
)

// TriggerSync runs a full sync cycle and returns its report. While another
// run is executing the endpoint answers 409 without starting anything.
func TriggerSync(syncService *sync.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := syncService.RunSync(r.Context())
		if err != nil {
			if errors.Is(err, sync.ErrSyncInProgress) {
				middleware.WriteError(w, http.StatusConflict, middleware.ErrSyncRunning, "A sync run is already in progress")
				return
			}
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Sync run failed")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}
}

// AvailabilityResponse is the merged occupancy view from the last sync run.
type AvailabilityResponse struct {
	Occupied []availability.OccupiedRange `json:"occupied"`
	SyncedAt string                       `json:"synced_at,omitempty"`
}

// GetAvailability returns the merged occupied ranges from the most recent
// sync run. Before the first run completes the view is empty.
func GetAvailability(syncService *sync.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := AvailabilityResponse{Occupied: []availability.OccupiedRange{}}

		if report := syncService.LastReport(); report != nil {
			if report.Occupied != nil {
				response.Occupied = report.Occupied
			}
			response.SyncedAt = report.StartedAt.Format("2006-01-02T15:04:05Z")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}

// ConflictsResponse lists the conflicts detected by the last sync run.
type ConflictsResponse struct {
	Conflicts []availability.Conflict `json:"conflicts"`
	SyncedAt  string                  `json:"synced_at,omitempty"`
}

// GetConflicts returns the conflicts from the most recent sync run.
func GetConflicts(syncService *sync.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := ConflictsResponse{Conflicts: []availability.Conflict{}}

		if report := syncService.LastReport(); report != nil {
			if report.Conflicts != nil {
				response.Conflicts = report.Conflicts
			}
			response.SyncedAt = report.StartedAt.Format("2006-01-02T15:04:05Z")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}
