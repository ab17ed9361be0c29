package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tour-availability/backend/internal/storage/models"
)

// BookingRepository provides data access for the booking ledger.
type BookingRepository struct {
	BaseRepository
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *DB) *BookingRepository {
	return &BookingRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const bookingColumns = `id, visit_date, visit_time, duration_minutes, end_time,
	status, channel, external_reference, number_of_people, customer_name,
	created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	b := &models.Booking{}
	err := row.Scan(
		&b.ID, &b.VisitDate, &b.VisitTime, &b.DurationMinutes, &b.EndTime,
		&b.Status, &b.Channel, &b.ExternalReference, &b.NumberOfPeople,
		&b.CustomerName, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Create inserts a new booking.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	b.ID = GenerateID()
	b.CreatedAt = r.Now()
	b.UpdatedAt = b.CreatedAt
	if b.Status == "" {
		b.Status = models.StatusPending
	}
	if b.Channel == "" {
		b.Channel = models.ChannelDirect
	}
	if b.NumberOfPeople <= 0 {
		b.NumberOfPeople = 1
	}

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO bookings (
			id, visit_date, visit_time, duration_minutes, end_time, status,
			channel, external_reference, number_of_people, customer_name,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID, b.VisitDate, b.VisitTime, b.DurationMinutes, b.EndTime, b.Status,
		b.Channel, b.ExternalReference, b.NumberOfPeople, b.CustomerName,
		b.CreatedAt, b.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting booking: %w", err)
	}

	return nil
}

// GetByID retrieves a booking by its ID. Returns nil when not found.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	row := r.DB().QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)

	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying booking: %w", err)
	}

	return b, nil
}

// List retrieves all bookings ordered by visit date and time.
func (r *BookingRepository) List(ctx context.Context) ([]models.Booking, error) {
	return r.list(ctx,
		`SELECT `+bookingColumns+` FROM bookings ORDER BY visit_date, visit_time, id`)
}

// ListOccupying retrieves all bookings whose status removes a slot from
// availability (confirmed or in progress).
func (r *BookingRepository) ListOccupying(ctx context.Context) ([]models.Booking, error) {
	return r.list(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status IN (?, ?)
		ORDER BY visit_date, visit_time, id`,
		models.StatusConfirmed, models.StatusInProgress)
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning booking: %w", err)
		}
		bookings = append(bookings, *b)
	}

	return bookings, rows.Err()
}

// UpdateStatus transitions a booking to a new status, enforcing the legal
// transition set. The guard is part of the UPDATE itself so a concurrent
// writer cannot slip a booking past a terminal state.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id, newStatus string) (*models.Booking, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("booking not found: %s", id)
	}

	if err := models.ValidateTransition(current.Status, newStatus); err != nil {
		return nil, err
	}

	result, err := r.DB().ExecContext(ctx, `
		UPDATE bookings SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, newStatus, r.Now(), id, current.Status)
	if err != nil {
		return nil, fmt.Errorf("updating booking status: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		// Status changed underneath us; re-read and report the conflict.
		latest, _ := r.GetByID(ctx, id)
		if latest != nil {
			return nil, fmt.Errorf("illegal status transition %s -> %s", latest.Status, newStatus)
		}
		return nil, fmt.Errorf("booking not found: %s", id)
	}

	return r.GetByID(ctx, id)
}

// ExternalBooking is a normalized booking draft arriving from an external
// channel, keyed by (channel, external reference).
type ExternalBooking struct {
	Channel           string
	ExternalReference string
	VisitDate         string // "2006-01-02"
	VisitTime         string // "15:04"
	DurationMinutes   *int
	NumberOfPeople    int
	CustomerName      string
	InitialStatus     string // status assigned on first delivery
	Cancelled         bool   // payload explicitly signals cancellation
}

// UpsertExternal creates or updates a booking keyed by
// (channel, external_reference) in a single statement. The unique index on
// that pair makes the operation atomic under concurrent deliveries: the
// second delivery lands on the conflict branch and becomes an update.
//
// Updates refresh the mutable fields (party size, date, time) and never
// touch status unless the payload signals a cancellation, which only applies
// while the booking is still pending or confirmed.
func (r *BookingRepository) UpsertExternal(ctx context.Context, ext ExternalBooking) (*models.Booking, bool, error) {
	if ext.ExternalReference == "" {
		return nil, false, fmt.Errorf("external reference is required")
	}

	newID := GenerateID()
	now := r.Now()

	status := ext.InitialStatus
	if status == "" {
		status = models.StatusConfirmed
	}
	if ext.Cancelled {
		status = models.StatusCancelled
	}
	people := ext.NumberOfPeople
	if people <= 0 {
		people = 1
	}

	var id string
	err := r.DB().QueryRowContext(ctx, `
		INSERT INTO bookings (
			id, visit_date, visit_time, duration_minutes, status, channel,
			external_reference, number_of_people, customer_name, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (channel, external_reference) WHERE external_reference IS NOT NULL
		DO UPDATE SET
			visit_date       = excluded.visit_date,
			visit_time       = excluded.visit_time,
			duration_minutes = excluded.duration_minutes,
			number_of_people = excluded.number_of_people,
			customer_name    = excluded.customer_name,
			status = CASE
				WHEN ? AND bookings.status IN ('pending', 'confirmed') THEN 'cancelled'
				ELSE bookings.status
			END,
			updated_at = excluded.updated_at
		RETURNING id
	`,
		newID, ext.VisitDate, ext.VisitTime, ext.DurationMinutes, status,
		ext.Channel, ext.ExternalReference, people, ext.CustomerName, now, now,
		ext.Cancelled,
	).Scan(&id)

	if err != nil {
		return nil, false, fmt.Errorf("upserting external booking: %w", err)
	}

	booking, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if booking == nil {
		return nil, false, fmt.Errorf("booking disappeared after upsert: %s", id)
	}

	return booking, id == newID, nil
}

// Delete removes a booking by ID.
func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM bookings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting booking: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("booking not found: %s", id)
	}

	return nil
}
