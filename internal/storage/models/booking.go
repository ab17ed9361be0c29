package models

import (
	"fmt"
	"time"
)

// Booking statuses. Only StatusConfirmed and StatusInProgress occupy a slot
// for conflict detection and feed export.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// ChannelDirect is the channel recorded on bookings created by operators
// rather than ingested from an external channel.
const ChannelDirect = "direct"

// Booking is a row in the authoritative booking ledger, reduced to the
// fields availability sync needs.
type Booking struct {
	ID                string    `json:"id"`
	VisitDate         string    `json:"visit_date"` // "2006-01-02"
	VisitTime         string    `json:"visit_time"` // "15:04"
	DurationMinutes   *int      `json:"duration_minutes,omitempty"`
	EndTime           *string   `json:"end_time,omitempty"` // "15:04", overrides duration
	Status            string    `json:"status"`
	Channel           string    `json:"channel"`
	ExternalReference *string   `json:"external_reference,omitempty"`
	NumberOfPeople    int       `json:"number_of_people"`
	CustomerName      string    `json:"customer_name"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// validTransitions is the legal booking status state machine. Terminal
// states (completed, cancelled) have no outgoing edges.
var validTransitions = map[string][]string{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

// ValidStatus reports whether s is a known booking status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a descriptive error for an illegal transition.
func ValidateTransition(from, to string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal status transition %s -> %s", from, to)
	}
	return nil
}

// IsOccupying reports whether the booking's status removes a slot from
// availability.
func (b *Booking) IsOccupying() bool {
	return b.Status == StatusConfirmed || b.Status == StatusInProgress
}

// StartAt returns the booking's start instant in UTC, or an error if the
// stored date/time fields are malformed.
func (b *Booking) StartAt() (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04", b.VisitDate+" "+b.VisitTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing booking %s start: %w", b.ID, err)
	}
	return t.UTC(), nil
}

// EndAt returns the booking's end instant: the explicit end time if set,
// else start plus the stored duration, else start plus defaultDuration.
func (b *Booking) EndAt(defaultDuration time.Duration) (time.Time, error) {
	start, err := b.StartAt()
	if err != nil {
		return time.Time{}, err
	}

	if b.EndTime != nil && *b.EndTime != "" {
		end, err := time.Parse("2006-01-02 15:04", b.VisitDate+" "+*b.EndTime)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing booking %s end: %w", b.ID, err)
		}
		end = end.UTC()
		// An end time at or before the start means the visit runs past
		// midnight into the next day.
		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}
		return end, nil
	}

	if b.DurationMinutes != nil && *b.DurationMinutes > 0 {
		return start.Add(time.Duration(*b.DurationMinutes) * time.Minute), nil
	}

	return start.Add(defaultDuration), nil
}
