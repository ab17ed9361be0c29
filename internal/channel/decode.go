// Package channel decodes channel-specific webhook payloads into normalized
// booking drafts. Each registered channel has its own typed decoder; raw
// payload bytes never travel past this boundary.
package channel

import (
	"fmt"
	"time"
)

// Draft is a normalized booking draft produced by a channel decoder,
// ready for the idempotent ledger upsert.
type Draft struct {
	ExternalReference string
	VisitDate         string // "2006-01-02"
	VisitTime         string // "15:04"
	DurationMinutes   *int
	NumberOfPeople    int
	CustomerName      string
	Cancelled         bool
}

// ParseError is a typed decode failure: the payload reached us but does not
// match the channel's schema. Distinct from authentication failures.
type ParseError struct {
	Channel string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("channel %s: invalid payload: %s", e.Channel, e.Reason)
}

// Decoder turns one channel's webhook payloads into booking drafts.
type Decoder interface {
	// Channel is the channel identifier used in webhook URLs and on
	// ledger rows.
	Channel() string

	// InitialStatus is the status assigned to a booking on its first
	// delivery (channel policy: confirmed or pending).
	InitialStatus() string

	// Decode parses a raw payload into a draft or returns a *ParseError.
	Decode(payload []byte) (*Draft, error)
}

// Registry holds the decoders for all supported channels.
type Registry struct {
	decoders map[string]Decoder
}

// NewRegistry builds a registry from the given decoders.
func NewRegistry(decoders ...Decoder) *Registry {
	r := &Registry{decoders: make(map[string]Decoder, len(decoders))}
	for _, d := range decoders {
		r.decoders[d.Channel()] = d
	}
	return r
}

// DefaultRegistry returns a registry with all built-in channel decoders.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&TourHubDecoder{},
		&CityPassDecoder{},
	)
}

// Get returns the decoder for a channel, or false if the channel is unknown.
func (r *Registry) Get(channel string) (Decoder, bool) {
	d, ok := r.decoders[channel]
	return d, ok
}

// Channels lists the registered channel identifiers.
func (r *Registry) Channels() []string {
	names := make([]string, 0, len(r.decoders))
	for name := range r.decoders {
		names = append(names, name)
	}
	return names
}

// validateDraft checks the fields every channel must produce.
func validateDraft(channelName string, d *Draft) error {
	if d.ExternalReference == "" {
		return &ParseError{Channel: channelName, Reason: "missing booking reference"}
	}
	if _, err := time.Parse("2006-01-02", d.VisitDate); err != nil {
		return &ParseError{Channel: channelName, Reason: fmt.Sprintf("invalid visit date %q", d.VisitDate)}
	}
	if _, err := time.Parse("15:04", d.VisitTime); err != nil {
		return &ParseError{Channel: channelName, Reason: fmt.Sprintf("invalid visit time %q", d.VisitTime)}
	}
	if d.NumberOfPeople <= 0 {
		d.NumberOfPeople = 1
	}
	return nil
}
