package websocket

import (
	"log/slog"
	"time"

	"github.com/tour-availability/backend/internal/availability"
)

// EventBroadcaster publishes typed change notifications to all registered
// listeners.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// BroadcastSyncCompleted sends a sync.completed event.
func (b *EventBroadcaster) BroadcastSyncCompleted(results []SourceResultPayload, conflictCount int, duration time.Duration) {
	b.broadcast(NewMessage(TypeSyncCompleted, SyncCompletedPayload{
		Results:       results,
		ConflictCount: conflictCount,
		Duration:      duration.String(),
	}))
}

// BroadcastSyncFailed sends a sync.failed event for run-level failures
// (as opposed to individual source failures, which ride sync.completed).
func (b *EventBroadcaster) BroadcastSyncFailed(err error) {
	b.broadcast(NewMessage(TypeSyncFailed, SyncFailedPayload{Message: err.Error()}))
}

// BroadcastConflicts sends the conflicts detected by a merge pass.
func (b *EventBroadcaster) BroadcastConflicts(conflicts []availability.Conflict) {
	if len(conflicts) == 0 {
		return
	}
	b.broadcast(NewMessage(TypeConflictsDetected, ConflictsPayload{Conflicts: conflicts}))
}

// BroadcastBookingUpserted sends a booking.upserted event.
func (b *EventBroadcaster) BroadcastBookingUpserted(bookingID, channelName, status string, created bool) {
	b.broadcast(NewMessage(TypeBookingUpserted, BookingUpsertedPayload{
		BookingID: bookingID,
		Channel:   channelName,
		Created:   created,
		Status:    status,
	}))
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	b.broadcast(NewMessage(TypeNotification, NotificationPayload{
		Level:   level,
		Title:   title,
		Message: message,
	}))
}

func (b *EventBroadcaster) broadcast(msg Message) {
	if b == nil || b.hub == nil {
		return
	}

	data, err := msg.JSON()
	if err != nil {
		slog.Error("encoding websocket message", "type", msg.Type, "error", err)
		return
	}

	b.hub.Broadcast(data)
}
