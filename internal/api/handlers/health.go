// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tour-availability/backend/internal/storage"
	"github.com/tour-availability/backend/internal/sync"
	"github.com/tour-availability/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.Ping() == nil

		status := "healthy"
		if !dbConnected {
			status = "degraded"
		}

		response := HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		}

		w.Header().Set("Content-Type", "application/json")
		if status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(response)
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	SourcesCount     int     `json:"sources_count"`
	BookingsCount    int     `json:"bookings_count"`
	OccupiedCount    int     `json:"occupied_count"`
	ConflictsCount   int     `json:"conflicts_count"`
	LastSyncAt       *string `json:"last_sync_at,omitempty"`
	ConnectedClients int     `json:"connected_clients"`
}

// Status returns a handler that provides system status information.
func Status(db *storage.DB, hub *websocket.Hub, syncService *sync.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var sourcesCount int
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calendar_sources").Scan(&sourcesCount)

		var bookingsCount int
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings").Scan(&bookingsCount)

		response := StatusResponse{
			SourcesCount:     sourcesCount,
			BookingsCount:    bookingsCount,
			ConnectedClients: hub.ClientCount(),
		}

		if syncService != nil {
			if report := syncService.LastReport(); report != nil {
				response.OccupiedCount = len(report.Occupied)
				response.ConflictsCount = len(report.Conflicts)
				at := report.StartedAt.Format("2006-01-02T15:04:05Z")
				response.LastSyncAt = &at
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}
