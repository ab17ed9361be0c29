package channel

import (
	"encoding/json"

	"github.com/tour-availability/backend/internal/storage/models"
)

// CityPassDecoder decodes webhook payloads from the CityPass channel.
// CityPass reservations are provisional until redeemed, so first delivery
// creates them pending.
type CityPassDecoder struct{}

type cityPassPayload struct {
	Event       string `json:"event"` // "created", "updated" or "cancelled"
	Reservation struct {
		Code  string `json:"code"`
		Visit struct {
			Day  string `json:"day"`  // "2006-01-02"
			Slot string `json:"slot"` // "15:04"
		} `json:"visit"`
		PartySize int    `json:"party_size"`
		Holder    string `json:"holder"`
	} `json:"reservation"`
}

func (d *CityPassDecoder) Channel() string { return "citypass" }

func (d *CityPassDecoder) InitialStatus() string { return models.StatusPending }

func (d *CityPassDecoder) Decode(payload []byte) (*Draft, error) {
	var p cityPassPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, &ParseError{Channel: d.Channel(), Reason: err.Error()}
	}

	draft := &Draft{
		ExternalReference: p.Reservation.Code,
		VisitDate:         p.Reservation.Visit.Day,
		VisitTime:         p.Reservation.Visit.Slot,
		NumberOfPeople:    p.Reservation.PartySize,
		CustomerName:      p.Reservation.Holder,
		Cancelled:         p.Event == "cancelled",
	}

	if err := validateDraft(d.Channel(), draft); err != nil {
		return nil, err
	}
	return draft, nil
}
