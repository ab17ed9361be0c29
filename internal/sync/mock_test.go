package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/tour-availability/backend/internal/availability"
	"github.com/tour-availability/backend/internal/storage/models"
)

// mockSources is an in-memory SourceStore.
type mockSources struct {
	mu      stdsync.Mutex
	sources []models.CalendarSource
	synced  map[string]time.Time
	failed  map[string]string
}

func newMockSources(sources ...models.CalendarSource) *mockSources {
	return &mockSources{
		sources: sources,
		synced:  make(map[string]time.Time),
		failed:  make(map[string]string),
	}
}

func (m *mockSources) ListEnabled(ctx context.Context) ([]models.CalendarSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var enabled []models.CalendarSource
	for _, src := range m.sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}
	return enabled, nil
}

func (m *mockSources) MarkSyncing(ctx context.Context, id string) error { return nil }

func (m *mockSources) MarkSynced(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced[id] = time.Now().UTC()
	return nil
}

func (m *mockSources) MarkSyncError(ctx context.Context, id string, syncErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[id] = syncErr.Error()
	return nil
}

func (m *mockSources) syncedAt(id string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.synced[id]
	return t, ok
}

// mockBookings is an in-memory BookingStore.
type mockBookings struct {
	bookings []models.Booking
}

func (m *mockBookings) ListOccupying(ctx context.Context) ([]models.Booking, error) {
	var occupying []models.Booking
	for _, b := range m.bookings {
		if b.IsOccupying() {
			occupying = append(occupying, b)
		}
	}
	return occupying, nil
}

// mockFetcher serves canned intervals, errors, or panics per source.
type mockFetcher struct {
	mu        stdsync.Mutex
	intervals map[string][]availability.BusyInterval
	errs      map[string]error
	panics    map[string]bool
	calls     map[string]int
	block     chan struct{} // when set, fetches wait until closed
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		intervals: make(map[string][]availability.BusyInterval),
		errs:      make(map[string]error),
		panics:    make(map[string]bool),
		calls:     make(map[string]int),
	}
}

func (m *mockFetcher) FetchAndParse(ctx context.Context, sourceID, feedURL string) ([]availability.BusyInterval, error) {
	m.mu.Lock()
	m.calls[sourceID]++
	block := m.block
	shouldPanic := m.panics[sourceID]
	err := m.errs[sourceID]
	intervals := m.intervals[sourceID]
	m.mu.Unlock()

	if block != nil {
		<-block
	}
	if shouldPanic {
		panic(fmt.Sprintf("fetcher exploded for %s", sourceID))
	}
	if err != nil {
		return nil, err
	}
	return intervals, nil
}

func (m *mockFetcher) callCount(sourceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[sourceID]
}
