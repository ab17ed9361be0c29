package handlers

import (
	"bytes"
	"net/http"

	"github.com/tour-availability/backend/internal/api/middleware"
	"github.com/tour-availability/backend/internal/calendar"
	"github.com/tour-availability/backend/internal/storage"
)

// ExportFeed serves the outbound iCalendar feed of occupying ledger bookings.
// External consumers poll this URL, so it stays outside the /api prefix and
// carries no authentication.
func ExportFeed(repo *storage.BookingRepository, writer *calendar.FeedWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookings, err := repo.ListOccupying(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query bookings")
			return
		}

		// Render to a buffer so a mid-feed failure never sends a
		// truncated calendar.
		var buf bytes.Buffer
		if err := writer.Write(&buf, bookings); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to render feed")
			return
		}

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="availability.ics"`)
		w.Write(buf.Bytes())
	}
}
