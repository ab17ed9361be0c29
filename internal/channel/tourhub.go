package channel

import (
	"encoding/json"

	"github.com/tour-availability/backend/internal/storage/models"
)

// TourHubDecoder decodes webhook payloads from the TourHub channel.
// TourHub bookings arrive already paid, so first delivery creates them
// confirmed.
type TourHubDecoder struct{}

type tourHubPayload struct {
	BookingReference string `json:"booking_reference"`
	Date             string `json:"date"` // "2006-01-02"
	Time             string `json:"time"` // "15:04"
	DurationMinutes  *int   `json:"duration_minutes,omitempty"`
	Participants     int    `json:"participants"`
	Customer         struct {
		Name string `json:"name"`
	} `json:"customer"`
	Status string `json:"status"` // "confirmed" or "cancelled"
}

func (d *TourHubDecoder) Channel() string { return "tourhub" }

func (d *TourHubDecoder) InitialStatus() string { return models.StatusConfirmed }

func (d *TourHubDecoder) Decode(payload []byte) (*Draft, error) {
	var p tourHubPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, &ParseError{Channel: d.Channel(), Reason: err.Error()}
	}

	draft := &Draft{
		ExternalReference: p.BookingReference,
		VisitDate:         p.Date,
		VisitTime:         p.Time,
		DurationMinutes:   p.DurationMinutes,
		NumberOfPeople:    p.Participants,
		CustomerName:      p.Customer.Name,
		Cancelled:         p.Status == "cancelled",
	}

	if err := validateDraft(d.Channel(), draft); err != nil {
		return nil, err
	}
	return draft, nil
}
