// Package sync drives availability sync cycles: per-source feed import,
// ledger merge, conflict detection, and periodic scheduling.
package sync

import (
	"context"

	"github.com/tour-availability/backend/internal/availability"
	"github.com/tour-availability/backend/internal/storage/models"
)

// SourceStore is the slice of the source registry the orchestrator needs.
// Implemented by [storage.SourceRepository].
type SourceStore interface {
	ListEnabled(ctx context.Context) ([]models.CalendarSource, error)
	MarkSyncing(ctx context.Context, id string) error
	MarkSynced(ctx context.Context, id string) error
	MarkSyncError(ctx context.Context, id string, syncErr error) error
}

// BookingStore is the slice of the booking ledger the orchestrator needs.
// Implemented by [storage.BookingRepository].
type BookingStore interface {
	ListOccupying(ctx context.Context) ([]models.Booking, error)
}

// FeedFetcher retrieves one source's busy intervals.
// Implemented by [calendar.Parser].
type FeedFetcher interface {
	FetchAndParse(ctx context.Context, sourceID, feedURL string) ([]availability.BusyInterval, error)
}

// AvailabilityPusher forwards a merged occupied view to an outbound
// partner. Pushes after a sync run are fire-and-forget for the run itself;
// implementations report their outcome to their own caller.
type AvailabilityPusher interface {
	PushOccupied(ctx context.Context, occupied []availability.OccupiedRange) error
}
