package channel

import (
	"errors"
	"testing"

	"github.com/tour-availability/backend/internal/storage/models"
)

func TestTourHubDecode(t *testing.T) {
	payload := []byte(`{
		"booking_reference": "TH-1001",
		"date": "2026-05-02",
		"time": "09:30",
		"duration_minutes": 120,
		"participants": 4,
		"customer": {"name": "Bianchi"},
		"status": "confirmed"
	}`)

	d := &TourHubDecoder{}
	draft, err := d.Decode(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.ExternalReference != "TH-1001" {
		t.Errorf("reference = %q", draft.ExternalReference)
	}
	if draft.NumberOfPeople != 4 || draft.CustomerName != "Bianchi" {
		t.Errorf("draft = %+v", draft)
	}
	if draft.DurationMinutes == nil || *draft.DurationMinutes != 120 {
		t.Errorf("duration = %v, want 120", draft.DurationMinutes)
	}
	if draft.Cancelled {
		t.Error("confirmed payload flagged as cancelled")
	}
	if d.InitialStatus() != models.StatusConfirmed {
		t.Errorf("initial status = %q, want confirmed", d.InitialStatus())
	}
}

func TestTourHubDecode_Cancellation(t *testing.T) {
	payload := []byte(`{
		"booking_reference": "TH-1001",
		"date": "2026-05-02",
		"time": "09:30",
		"participants": 4,
		"status": "cancelled"
	}`)

	draft, err := (&TourHubDecoder{}).Decode(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !draft.Cancelled {
		t.Error("cancellation signal not decoded")
	}
}

func TestTourHubDecode_InvalidPayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `{{{`},
		{"missing reference", `{"date": "2026-05-02", "time": "09:30"}`},
		{"bad date", `{"booking_reference": "TH-1", "date": "02/05/2026", "time": "09:30"}`},
		{"bad time", `{"booking_reference": "TH-1", "date": "2026-05-02", "time": "9h30"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := (&TourHubDecoder{}).Decode([]byte(tc.payload))
			if err == nil {
				t.Fatal("expected decode error")
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("error %T is not a *ParseError", err)
			}
		})
	}
}

func TestCityPassDecode(t *testing.T) {
	payload := []byte(`{
		"event": "created",
		"reservation": {
			"code": "CP-77",
			"visit": {"day": "2026-06-01", "slot": "15:00"},
			"party_size": 2,
			"holder": "Moreau"
		}
	}`)

	d := &CityPassDecoder{}
	draft, err := d.Decode(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.ExternalReference != "CP-77" || draft.VisitTime != "15:00" {
		t.Errorf("draft = %+v", draft)
	}
	if d.InitialStatus() != models.StatusPending {
		t.Errorf("initial status = %q, want pending (channel policy)", d.InitialStatus())
	}
}

func TestCityPassDecode_DefaultsPartySize(t *testing.T) {
	payload := []byte(`{
		"event": "created",
		"reservation": {
			"code": "CP-78",
			"visit": {"day": "2026-06-01", "slot": "15:00"}
		}
	}`)

	draft, err := (&CityPassDecoder{}).Decode(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.NumberOfPeople != 1 {
		t.Errorf("party size = %d, want defaulted 1", draft.NumberOfPeople)
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()

	if _, ok := r.Get("tourhub"); !ok {
		t.Error("tourhub decoder not registered")
	}
	if _, ok := r.Get("citypass"); !ok {
		t.Error("citypass decoder not registered")
	}
	if _, ok := r.Get("unknown"); ok {
		t.Error("unknown channel resolved a decoder")
	}
	if got := len(r.Channels()); got != 2 {
		t.Errorf("channels = %d, want 2", got)
	}
}
