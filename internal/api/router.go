// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tour-availability/backend/internal/api/handlers"
	"github.com/tour-availability/backend/internal/api/middleware"
	"github.com/tour-availability/backend/internal/calendar"
	"github.com/tour-availability/backend/internal/channel"
	"github.com/tour-availability/backend/internal/partner"
	"github.com/tour-availability/backend/internal/storage"
	"github.com/tour-availability/backend/internal/sync"
	"github.com/tour-availability/backend/internal/websocket"
)

// Deps bundles everything the router hands to its handlers.
type Deps struct {
	DB            *storage.DB
	Hub           *websocket.Hub
	Broadcaster   *websocket.EventBroadcaster
	Sources       *storage.SourceRepository
	Bookings      *storage.BookingRepository
	SyncService   *sync.Service
	FeedWriter    *calendar.FeedWriter
	Channels      *channel.Registry
	WebhookCreds  handlers.WebhookCredentials
	PartnerClient *partner.Client
	PartnerPusher *partner.OccupancyPusher
	StaticDir     string
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(deps Deps) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	// API subrouter
	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(deps.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(deps.DB, deps.Hub, deps.SyncService)).Methods("GET")

	// WebSocket endpoint
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(deps.Hub)).Methods("GET")

	// Calendar source endpoints
	api.HandleFunc("/sources", handlers.ListSources(deps.Sources)).Methods("GET")
	api.HandleFunc("/sources", handlers.CreateSource(deps.Sources)).Methods("POST")
	api.HandleFunc("/sources/{id}", handlers.GetSource(deps.Sources)).Methods("GET")
	api.HandleFunc("/sources/{id}", handlers.UpdateSource(deps.Sources)).Methods("PATCH")
	api.HandleFunc("/sources/{id}", handlers.DeleteSource(deps.Sources)).Methods("DELETE")

	// Sync and availability endpoints
	api.HandleFunc("/sync", handlers.TriggerSync(deps.SyncService)).Methods("POST")
	api.HandleFunc("/availability", handlers.GetAvailability(deps.SyncService)).Methods("GET")
	api.HandleFunc("/conflicts", handlers.GetConflicts(deps.SyncService)).Methods("GET")

	// Booking ledger endpoints
	api.HandleFunc("/bookings", handlers.ListBookings(deps.Bookings)).Methods("GET")
	api.HandleFunc("/bookings", handlers.CreateBooking(deps.Bookings, deps.Broadcaster)).Methods("POST")
	api.HandleFunc("/bookings/{id}", handlers.GetBooking(deps.Bookings)).Methods("GET")
	api.HandleFunc("/bookings/{id}/status", handlers.UpdateBookingStatus(deps.Bookings, deps.Broadcaster)).Methods("PATCH")

	// Inbound channel webhooks
	api.HandleFunc("/webhooks/{channel}",
		handlers.ChannelWebhook(deps.Channels, deps.Bookings, deps.WebhookCreds, deps.Broadcaster)).Methods("POST")

	// Partner API endpoints
	api.HandleFunc("/partner/availability",
		handlers.PushPartnerAvailability(deps.SyncService, deps.PartnerPusher)).Methods("POST")
	api.HandleFunc("/partner/deals", handlers.CreatePartnerDeal(deps.PartnerClient)).Methods("POST")
	api.HandleFunc("/partner/deals", handlers.ListPartnerDeals(deps.PartnerClient)).Methods("GET")
	api.HandleFunc("/partner/deals/{id}", handlers.DeletePartnerDeal(deps.PartnerClient)).Methods("DELETE")

	// Public outbound iCal feed
	r.HandleFunc("/feed.ics", handlers.ExportFeed(deps.Bookings, deps.FeedWriter)).Methods("GET")

	// Serve static frontend files
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(deps.StaticDir)))

	return r
}
