package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tour-availability/backend/internal/storage/models"
)

const icalTimestamp = "20060102T150405Z"

// FeedWriter serializes ledger bookings into a publishable iCal feed.
// External partners treat every event in this feed as occupied, so only
// confirmed and in-progress bookings are ever emitted.
type FeedWriter struct {
	// ProdID identifies the generator in the VCALENDAR header.
	ProdID string

	// DefaultDuration is used for bookings without an explicit end time or
	// stored duration.
	DefaultDuration time.Duration
}

// NewFeedWriter creates a feed writer with the given default slot duration.
func NewFeedWriter(defaultDuration time.Duration) *FeedWriter {
	if defaultDuration <= 0 {
		defaultDuration = 90 * time.Minute
	}
	return &FeedWriter{
		ProdID:          "-//Tour Availability//Sync Engine//EN",
		DefaultDuration: defaultDuration,
	}
}

// Write emits one VEVENT per occupying booking. Each event's UID equals the
// booking ID, so repeated generation over the same ledger state is
// deterministic and diffable.
func (fw *FeedWriter) Write(w io.Writer, bookings []models.Booking) error {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:" + fw.ProdID + "\r\n")
	b.WriteString("CALSCALE:GREGORIAN\r\n")

	for _, booking := range bookings {
		if !booking.IsOccupying() {
			continue
		}

		start, err := booking.StartAt()
		if err != nil {
			return fmt.Errorf("serializing booking %s: %w", booking.ID, err)
		}
		end, err := booking.EndAt(fw.DefaultDuration)
		if err != nil {
			return fmt.Errorf("serializing booking %s: %w", booking.ID, err)
		}

		b.WriteString("BEGIN:VEVENT\r\n")
		b.WriteString("UID:" + booking.ID + "\r\n")
		b.WriteString("DTSTAMP:" + booking.UpdatedAt.UTC().Format(icalTimestamp) + "\r\n")
		b.WriteString("DTSTART:" + start.Format(icalTimestamp) + "\r\n")
		b.WriteString("DTEND:" + end.Format(icalTimestamp) + "\r\n")
		b.WriteString("SUMMARY:" + escapeText(eventSummary(booking)) + "\r\n")
		b.WriteString("DESCRIPTION:" + escapeText(eventDescription(booking)) + "\r\n")
		b.WriteString("END:VEVENT\r\n")
	}

	b.WriteString("END:VCALENDAR\r\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("writing feed: %w", err)
	}
	return nil
}

func eventSummary(b models.Booking) string {
	if b.CustomerName != "" {
		return fmt.Sprintf("Tour: %s (%d pax)", b.CustomerName, b.NumberOfPeople)
	}
	return fmt.Sprintf("Tour booking (%d pax)", b.NumberOfPeople)
}

func eventDescription(b models.Booking) string {
	desc := fmt.Sprintf("Channel: %s\nPeople: %d", b.Channel, b.NumberOfPeople)
	if b.ExternalReference != nil && *b.ExternalReference != "" {
		desc += "\nReference: " + *b.ExternalReference
	}
	return desc
}

// escapeText applies the iCal text escape sequences.
func escapeText(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, ";", "\\;")
	value = strings.ReplaceAll(value, ",", "\\,")
	value = strings.ReplaceAll(value, "\n", "\\n")
	return value
}
