package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/tour-availability/backend/internal/api/middleware"
	"github.com/tour-availability/backend/internal/storage"
	"github.com/tour-availability/backend/internal/storage/models"
	"github.com/tour-availability/backend/internal/websocket"
)

// Booking request types

type CreateBookingRequest struct {
	VisitDate       string `json:"visit_date"`
	VisitTime       string `json:"visit_time"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
	NumberOfPeople  int    `json:"number_of_people"`
	CustomerName    string `json:"customer_name"`
}

type UpdateBookingStatusRequest struct {
	Status string `json:"status"`
}

// ListBookings returns all ledger bookings.
func ListBookings(repo *storage.BookingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookings, err := repo.List(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query bookings")
			return
		}

		if bookings == nil {
			bookings = []models.Booking{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(bookings)
	}
}

// GetBooking returns a single booking by ID.
func GetBooking(repo *storage.BookingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		booking, err := repo.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query booking")
			return
		}
		if booking == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(booking)
	}
}

// CreateBooking records a direct booking in the ledger. Direct bookings
// start out pending and move through the status machine via PATCH.
func CreateBooking(repo *storage.BookingRepository, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if _, err := time.Parse("2006-01-02", req.VisitDate); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "visit_date must be YYYY-MM-DD")
			return
		}
		if _, err := time.Parse("15:04", req.VisitTime); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "visit_time must be HH:MM")
			return
		}
		if req.DurationMinutes != nil && *req.DurationMinutes <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "duration_minutes must be positive")
			return
		}

		booking := &models.Booking{
			VisitDate:       req.VisitDate,
			VisitTime:       req.VisitTime,
			DurationMinutes: req.DurationMinutes,
			NumberOfPeople:  req.NumberOfPeople,
			CustomerName:    req.CustomerName,
			Channel:         models.ChannelDirect,
			Status:          models.StatusPending,
		}
		if err := repo.Create(r.Context(), booking); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create booking")
			return
		}

		broadcaster.BroadcastBookingUpserted(booking.ID, booking.Channel, booking.Status, true)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(booking)
	}
}

// UpdateBookingStatus advances a booking through its status machine.
// Invalid transitions return 409 with the current status in the details.
func UpdateBookingStatus(repo *storage.BookingRepository, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		var req UpdateBookingStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if !models.ValidStatus(req.Status) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Unknown booking status")
			return
		}

		current, err := repo.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query booking")
			return
		}
		if current == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking not found")
			return
		}

		updated, err := repo.UpdateStatus(r.Context(), id, req.Status)
		if err != nil {
			middleware.WriteErrorWithDetails(w, http.StatusConflict, middleware.ErrConflict,
				err.Error(), map[string]string{"current_status": current.Status})
			return
		}

		broadcaster.BroadcastBookingUpserted(updated.ID, updated.Channel, updated.Status, false)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(updated)
	}
}
