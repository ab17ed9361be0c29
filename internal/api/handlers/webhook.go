package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tour-availability/backend/internal/api/middleware"
	"github.com/tour-availability/backend/internal/channel"
	"github.com/tour-availability/backend/internal/storage"
	"github.com/tour-availability/backend/internal/websocket"
)

// maxWebhookBody caps inbound webhook payloads at 1 MiB.
const maxWebhookBody = 1 << 20

// WebhookCredentials is the Basic auth pair channels must present.
// When empty, every webhook request is rejected.
type WebhookCredentials struct {
	Username string
	Password string
}

func (c WebhookCredentials) check(r *http.Request) bool {
	if c.Username == "" && c.Password == "" {
		return false
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(c.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(c.Password)) == 1
	return userOK && passOK
}

// WebhookResponse reports the outcome of a webhook delivery.
type WebhookResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	Created   bool   `json:"created"`
}

// ChannelWebhook ingests booking notifications from an external channel.
// Deliveries are idempotent on (channel, external reference): the first
// delivery creates the booking, repeats and updates converge on one row.
func ChannelWebhook(
	registry *channel.Registry,
	repo *storage.BookingRepository,
	creds WebhookCredentials,
	broadcaster *websocket.EventBroadcaster,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !creds.check(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="webhooks"`)
			middleware.WriteError(w, http.StatusUnauthorized, middleware.ErrUnauthorized, "Invalid webhook credentials")
			return
		}

		channelName := mux.Vars(r)["channel"]
		decoder, ok := registry.Get(channelName)
		if !ok {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Unknown channel")
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Failed to read request body")
			return
		}

		draft, err := decoder.Decode(payload)
		if err != nil {
			var parseErr *channel.ParseError
			if errors.As(err, &parseErr) {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, parseErr.Error())
				return
			}
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Failed to decode payload")
			return
		}

		booking, created, err := repo.UpsertExternal(r.Context(), storage.ExternalBooking{
			Channel:           channelName,
			ExternalReference: draft.ExternalReference,
			VisitDate:         draft.VisitDate,
			VisitTime:         draft.VisitTime,
			DurationMinutes:   draft.DurationMinutes,
			NumberOfPeople:    draft.NumberOfPeople,
			CustomerName:      draft.CustomerName,
			InitialStatus:     decoder.InitialStatus(),
			Cancelled:         draft.Cancelled,
		})
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to record booking")
			return
		}

		broadcaster.BroadcastBookingUpserted(booking.ID, channelName, booking.Status, created)

		response := WebhookResponse{
			BookingID: booking.ID,
			Status:    booking.Status,
			Created:   created,
		}

		w.Header().Set("Content-Type", "application/json")
		if created {
			w.WriteHeader(http.StatusCreated)
		}
		json.NewEncoder(w).Encode(response)
	}
}
