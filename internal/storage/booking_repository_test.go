package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/tour-availability/backend/internal/storage/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	return db
}

func TestBookingCreateAndGet(t *testing.T) {
	repo := NewBookingRepository(newTestDB(t))
	ctx := context.Background()

	b := &models.Booking{
		VisitDate:      "2026-05-01",
		VisitTime:      "10:00",
		Status:         models.StatusConfirmed,
		NumberOfPeople: 4,
		CustomerName:   "Rossi",
	}
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("creating booking: %v", err)
	}

	got, err := repo.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("getting booking: %v", err)
	}
	if got == nil {
		t.Fatal("booking not found after create")
	}
	if got.Channel != models.ChannelDirect {
		t.Errorf("channel = %q, want %q", got.Channel, models.ChannelDirect)
	}
	if got.NumberOfPeople != 4 {
		t.Errorf("number_of_people = %d, want 4", got.NumberOfPeople)
	}
}

func TestListOccupying_FiltersByStatus(t *testing.T) {
	repo := NewBookingRepository(newTestDB(t))
	ctx := context.Background()

	for _, status := range []string{
		models.StatusPending, models.StatusConfirmed, models.StatusInProgress,
		models.StatusCompleted, models.StatusCancelled,
	} {
		b := &models.Booking{VisitDate: "2026-05-01", VisitTime: "10:00", Status: status}
		if err := repo.Create(ctx, b); err != nil {
			t.Fatalf("creating %s booking: %v", status, err)
		}
	}

	occupying, err := repo.ListOccupying(ctx)
	if err != nil {
		t.Fatalf("listing occupying bookings: %v", err)
	}
	if len(occupying) != 2 {
		t.Fatalf("occupying bookings = %d, want 2", len(occupying))
	}
	for _, b := range occupying {
		if !b.IsOccupying() {
			t.Errorf("non-occupying booking %s (%s) in result", b.ID, b.Status)
		}
	}
}

func TestUpdateStatus_EnforcesTransitions(t *testing.T) {
	repo := NewBookingRepository(newTestDB(t))
	ctx := context.Background()

	b := &models.Booking{VisitDate: "2026-05-01", VisitTime: "10:00", Status: models.StatusPending}
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("creating booking: %v", err)
	}

	updated, err := repo.UpdateStatus(ctx, b.ID, models.StatusCancelled)
	if err != nil {
		t.Fatalf("pending -> cancelled should be legal: %v", err)
	}
	if updated.Status != models.StatusCancelled {
		t.Errorf("status = %q, want cancelled", updated.Status)
	}

	if _, err := repo.UpdateStatus(ctx, b.ID, models.StatusConfirmed); err == nil {
		t.Error("cancelled -> confirmed should be rejected")
	}
}

func TestUpsertExternal_CreateThenUpdate(t *testing.T) {
	repo := NewBookingRepository(newTestDB(t))
	ctx := context.Background()

	ext := ExternalBooking{
		Channel:           "tourhub",
		ExternalReference: "TH-1001",
		VisitDate:         "2026-05-02",
		VisitTime:         "09:30",
		NumberOfPeople:    2,
		InitialStatus:     models.StatusConfirmed,
	}

	first, created, err := repo.UpsertExternal(ctx, ext)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !created {
		t.Error("first delivery should create")
	}

	ext.NumberOfPeople = 5
	second, created, err := repo.UpsertExternal(ctx, ext)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Error("second delivery should update, not create")
	}
	if second.ID != first.ID {
		t.Errorf("second delivery produced a different row: %s != %s", second.ID, first.ID)
	}
	if second.NumberOfPeople != 5 {
		t.Errorf("number_of_people = %d, want 5", second.NumberOfPeople)
	}
	if second.Status != models.StatusConfirmed {
		t.Errorf("update must not change status, got %q", second.Status)
	}
}

func TestUpsertExternal_CancellationSignal(t *testing.T) {
	repo := NewBookingRepository(newTestDB(t))
	ctx := context.Background()

	ext := ExternalBooking{
		Channel:           "tourhub",
		ExternalReference: "TH-2002",
		VisitDate:         "2026-05-03",
		VisitTime:         "11:00",
		InitialStatus:     models.StatusConfirmed,
	}

	if _, _, err := repo.UpsertExternal(ctx, ext); err != nil {
		t.Fatalf("create: %v", err)
	}

	ext.Cancelled = true
	b, _, err := repo.UpsertExternal(ctx, ext)
	if err != nil {
		t.Fatalf("cancellation delivery: %v", err)
	}
	if b.Status != models.StatusCancelled {
		t.Errorf("status = %q, want cancelled", b.Status)
	}

	// A completed booking is terminal: a late cancellation must not move it.
	done := ExternalBooking{
		Channel:           "tourhub",
		ExternalReference: "TH-3003",
		VisitDate:         "2026-05-04",
		VisitTime:         "11:00",
		InitialStatus:     models.StatusConfirmed,
	}
	created, _, err := repo.UpsertExternal(ctx, done)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, created.ID, models.StatusInProgress); err != nil {
		t.Fatalf("confirmed -> in_progress: %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, created.ID, models.StatusCompleted); err != nil {
		t.Fatalf("in_progress -> completed: %v", err)
	}

	done.Cancelled = true
	b, _, err = repo.UpsertExternal(ctx, done)
	if err != nil {
		t.Fatalf("late cancellation delivery: %v", err)
	}
	if b.Status != models.StatusCompleted {
		t.Errorf("completed booking moved to %q by late cancellation", b.Status)
	}
}

func TestUpsertExternal_ConcurrentDeliveries(t *testing.T) {
	repo := NewBookingRepository(newTestDB(t))
	ctx := context.Background()

	const deliveries = 8
	var wg sync.WaitGroup
	errs := make(chan error, deliveries)

	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(people int) {
			defer wg.Done()
			_, _, err := repo.UpsertExternal(ctx, ExternalBooking{
				Channel:           "tourhub",
				ExternalReference: "TH-RACE",
				VisitDate:         "2026-05-05",
				VisitTime:         "14:00",
				NumberOfPeople:    people,
				InitialStatus:     models.StatusConfirmed,
			})
			errs <- err
		}(i + 1)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent upsert failed: %v", err)
		}
	}

	var count int
	if err := repo.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE channel = 'tourhub' AND external_reference = 'TH-RACE'`,
	).Scan(&count); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("concurrent deliveries created %d rows, want 1", count)
	}
}
