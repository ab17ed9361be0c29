package sync

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	stdsync "sync"
	"testing"
	"time"

	"github.com/tour-availability/backend/internal/availability"
	"github.com/tour-availability/backend/internal/storage/models"
)

func enabledSource(id, name string) models.CalendarSource {
	return models.CalendarSource{ID: id, Name: name, FeedURL: "https://feeds.example/" + id, Enabled: true}
}

func busy(sourceID, uid string, startHour, endHour int) availability.BusyInterval {
	day := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	return availability.BusyInterval{
		SourceID:    sourceID,
		ExternalUID: uid,
		Start:       day.Add(time.Duration(startHour) * time.Hour),
		End:         day.Add(time.Duration(endHour) * time.Hour),
	}
}

func newTestService(sources *mockSources, bookings *mockBookings, fetcher *mockFetcher) *Service {
	svc := NewService(sources, bookings, fetcher, nil, nil, 5*time.Second, 90*time.Minute, slog.Default())
	svc.now = func() time.Time { return time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC) }
	return svc
}

func TestRunSync_OneSourceFailureIsIsolated(t *testing.T) {
	sources := newMockSources(
		enabledSource("src-a", "Channel A"),
		enabledSource("src-b", "Channel B"),
		enabledSource("src-c", "Channel C"),
	)
	fetcher := newMockFetcher()
	fetcher.intervals["src-a"] = []availability.BusyInterval{busy("src-a", "a1", 10, 12)}
	fetcher.errs["src-b"] = errors.New("connection refused")
	fetcher.intervals["src-c"] = []availability.BusyInterval{busy("src-c", "c1", 14, 16)}

	svc := newTestService(sources, &mockBookings{}, fetcher)
	report, err := svc.RunSync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Results) != 3 {
		t.Fatalf("results = %d, want 3 (one per source)", len(report.Results))
	}

	for _, r := range report.Results {
		switch r.SourceID {
		case "src-b":
			if r.Succeeded {
				t.Error("src-b should have failed")
			}
			if r.Error == "" {
				t.Error("failed result must carry an error")
			}
			if r.ImportedCount != 0 {
				t.Errorf("failed result carries a count: %d", r.ImportedCount)
			}
		default:
			if !r.Succeeded {
				t.Errorf("%s should have succeeded: %s", r.SourceID, r.Error)
			}
			if r.ImportedCount != 1 {
				t.Errorf("%s imported = %d, want 1", r.SourceID, r.ImportedCount)
			}
			if r.Error != "" {
				t.Errorf("successful result carries an error: %s", r.Error)
			}
		}
	}

	// last_synced_at advances for all sources except the failed one.
	if _, ok := sources.syncedAt("src-a"); !ok {
		t.Error("src-a not marked synced")
	}
	if _, ok := sources.syncedAt("src-c"); !ok {
		t.Error("src-c not marked synced")
	}
	if _, ok := sources.syncedAt("src-b"); ok {
		t.Error("failed src-b must not advance last_synced_at")
	}
}

func TestRunSync_PanicInFetchIsIsolated(t *testing.T) {
	sources := newMockSources(
		enabledSource("src-a", "Channel A"),
		enabledSource("src-b", "Channel B"),
	)
	fetcher := newMockFetcher()
	fetcher.panics["src-a"] = true
	fetcher.intervals["src-b"] = []availability.BusyInterval{busy("src-b", "b1", 10, 12)}

	svc := newTestService(sources, &mockBookings{}, fetcher)
	report, err := svc.RunSync(context.Background())
	if err != nil {
		t.Fatalf("a panicking source must not fail the run: %v", err)
	}

	if report.Results[0].Succeeded {
		t.Error("panicking source reported success")
	}
	if !report.Results[1].Succeeded {
		t.Error("sibling source affected by panic")
	}
	if len(report.Occupied) != 1 {
		t.Errorf("occupied = %d, want 1 (from the healthy source)", len(report.Occupied))
	}
}

func TestRunSync_MergesLedgerAndSources(t *testing.T) {
	sources := newMockSources(enabledSource("src-a", "Channel A"))
	fetcher := newMockFetcher()
	fetcher.intervals["src-a"] = []availability.BusyInterval{busy("src-a", "a1", 11, 13)}

	duration := 120
	bookings := &mockBookings{bookings: []models.Booking{{
		ID:              "b1",
		VisitDate:       "2026-04-10",
		VisitTime:       "10:00",
		DurationMinutes: &duration,
		Status:          models.StatusConfirmed,
		NumberOfPeople:  2,
	}}}

	svc := newTestService(sources, bookings, fetcher)
	report, err := svc.RunSync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Occupied) != 2 {
		t.Fatalf("occupied = %d, want 2", len(report.Occupied))
	}
	if len(report.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(report.Conflicts))
	}
	if report.Conflicts[0].Kind != availability.ConflictCrossOrigin {
		t.Errorf("kind = %q, want cross_origin", report.Conflicts[0].Kind)
	}

	if got := svc.LastReport(); got != report {
		t.Error("LastReport does not return the latest run")
	}
}

func TestRunSync_Idempotent(t *testing.T) {
	sources := newMockSources(
		enabledSource("src-a", "Channel A"),
		enabledSource("src-b", "Channel B"),
	)
	fetcher := newMockFetcher()
	fetcher.intervals["src-a"] = []availability.BusyInterval{busy("src-a", "a1", 10, 12)}
	fetcher.intervals["src-b"] = []availability.BusyInterval{busy("src-b", "b1", 11, 13)}

	svc := newTestService(sources, &mockBookings{}, fetcher)

	first, err := svc.RunSync(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := svc.RunSync(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if !reflect.DeepEqual(first.Conflicts, second.Conflicts) {
		t.Error("unchanged feeds produced different conflict sets")
	}
	if !reflect.DeepEqual(first.Occupied, second.Occupied) {
		t.Error("unchanged feeds produced different merged views")
	}
}

func TestRunSync_SingleFlight(t *testing.T) {
	sources := newMockSources(enabledSource("src-a", "Channel A"))
	fetcher := newMockFetcher()
	fetcher.block = make(chan struct{})

	svc := newTestService(sources, &mockBookings{}, fetcher)

	var wg stdsync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := svc.RunSync(context.Background()); err != nil {
			t.Errorf("blocked run failed: %v", err)
		}
	}()

	// Wait until the first run is inside its fetch.
	deadline := time.Now().Add(2 * time.Second)
	for fetcher.callCount("src-a") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first run never started fetching")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := svc.RunSync(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("concurrent run error = %v, want ErrSyncInProgress", err)
	}

	close(fetcher.block)
	wg.Wait()

	// Once the first run finishes, a new run is allowed again.
	fetcher.mu.Lock()
	fetcher.block = nil
	fetcher.mu.Unlock()
	if _, err := svc.RunSync(context.Background()); err != nil {
		t.Errorf("run after completion failed: %v", err)
	}
}

func TestRunSync_DisabledSourcesSkipped(t *testing.T) {
	disabled := enabledSource("src-off", "Disabled")
	disabled.Enabled = false
	sources := newMockSources(enabledSource("src-a", "Channel A"), disabled)
	fetcher := newMockFetcher()

	svc := newTestService(sources, &mockBookings{}, fetcher)
	report, err := svc.RunSync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(report.Results))
	}
	if fetcher.callCount("src-off") != 0 {
		t.Error("disabled source was fetched")
	}
}
