package websocket

import (
	"encoding/json"
	"time"

	"github.com/tour-availability/backend/internal/availability"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeSyncCompleted     MessageType = "sync.completed"
	TypeSyncFailed        MessageType = "sync.failed"
	TypeConflictsDetected MessageType = "availability.conflicts_detected"
	TypeBookingUpserted   MessageType = "booking.upserted"
	TypeNotification      MessageType = "notification"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// SourceResultPayload is one source's outcome inside a sync event.
type SourceResultPayload struct {
	SourceID      string `json:"source_id"`
	SourceName    string `json:"source_name"`
	Succeeded     bool   `json:"succeeded"`
	ImportedCount int    `json:"imported_count"`
	Error         string `json:"error,omitempty"`
}

// SyncCompletedPayload is the payload for sync.completed events.
type SyncCompletedPayload struct {
	Results       []SourceResultPayload `json:"results"`
	ConflictCount int                   `json:"conflict_count"`
	Duration      string                `json:"duration"`
}

// SyncFailedPayload is the payload for sync.failed events.
type SyncFailedPayload struct {
	Message string `json:"message"`
}

// ConflictsPayload is the payload for availability.conflicts_detected events.
type ConflictsPayload struct {
	Conflicts []availability.Conflict `json:"conflicts"`
}

// BookingUpsertedPayload is the payload for booking.upserted events.
type BookingUpsertedPayload struct {
	BookingID string `json:"booking_id"`
	Channel   string `json:"channel"`
	Created   bool   `json:"created"`
	Status    string `json:"status"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level   string `json:"level"` // info, warning, error, success
	Title   string `json:"title"`
	Message string `json:"message"`
}
