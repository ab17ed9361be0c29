package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tour-availability/backend/internal/storage/models"
)

// SourceRepository provides data access for registered calendar sources.
type SourceRepository struct {
	BaseRepository
}

// NewSourceRepository creates a new calendar source repository.
func NewSourceRepository(db *DB) *SourceRepository {
	return &SourceRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const sourceColumns = `id, name, feed_url, color_tag, enabled, last_synced_at,
	sync_status, sync_error, created_at, updated_at`

func scanSource(row interface{ Scan(...any) error }) (*models.CalendarSource, error) {
	src := &models.CalendarSource{}
	err := row.Scan(
		&src.ID, &src.Name, &src.FeedURL, &src.ColorTag, &src.Enabled,
		&src.LastSyncedAt, &src.SyncStatus, &src.SyncError,
		&src.CreatedAt, &src.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// Create inserts a new calendar source.
func (r *SourceRepository) Create(ctx context.Context, src *models.CalendarSource) error {
	src.ID = GenerateID()
	src.CreatedAt = r.Now()
	src.UpdatedAt = src.CreatedAt
	src.SyncStatus = models.SyncStatusPending

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO calendar_sources (
			id, name, feed_url, color_tag, enabled, sync_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		src.ID, src.Name, src.FeedURL, src.ColorTag, src.Enabled,
		src.SyncStatus, src.CreatedAt, src.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting source: %w", err)
	}

	return nil
}

// GetByID retrieves a source by its ID. Returns nil when not found.
func (r *SourceRepository) GetByID(ctx context.Context, id string) (*models.CalendarSource, error) {
	row := r.DB().QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM calendar_sources WHERE id = ?`, id)

	src, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying source: %w", err)
	}

	return src, nil
}

// List retrieves all registered sources.
func (r *SourceRepository) List(ctx context.Context) ([]models.CalendarSource, error) {
	return r.list(ctx, `SELECT `+sourceColumns+` FROM calendar_sources ORDER BY name`)
}

// ListEnabled retrieves all enabled sources in a stable order.
func (r *SourceRepository) ListEnabled(ctx context.Context) ([]models.CalendarSource, error) {
	return r.list(ctx, `SELECT `+sourceColumns+` FROM calendar_sources WHERE enabled = 1 ORDER BY name`)
}

func (r *SourceRepository) list(ctx context.Context, query string) ([]models.CalendarSource, error) {
	rows, err := r.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var sources []models.CalendarSource
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		sources = append(sources, *src)
	}

	return sources, rows.Err()
}

// Update updates a source's operator-editable fields.
func (r *SourceRepository) Update(ctx context.Context, src *models.CalendarSource) error {
	src.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE calendar_sources SET
			name = ?, feed_url = ?, color_tag = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`,
		src.Name, src.FeedURL, src.ColorTag, src.Enabled, src.UpdatedAt, src.ID,
	)

	if err != nil {
		return fmt.Errorf("updating source: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("source not found: %s", src.ID)
	}

	return nil
}

// MarkSyncing flags a source as currently syncing.
func (r *SourceRepository) MarkSyncing(ctx context.Context, id string) error {
	return r.setSyncStatus(ctx, id, models.SyncStatusSyncing, nil, false)
}

// MarkSynced records a successful sync and advances last_synced_at.
func (r *SourceRepository) MarkSynced(ctx context.Context, id string) error {
	return r.setSyncStatus(ctx, id, models.SyncStatusSuccess, nil, true)
}

// MarkSyncError records a failed sync. last_synced_at is left unchanged so
// it keeps pointing at the last successful import.
func (r *SourceRepository) MarkSyncError(ctx context.Context, id string, syncErr error) error {
	msg := syncErr.Error()
	return r.setSyncStatus(ctx, id, models.SyncStatusError, &msg, false)
}

func (r *SourceRepository) setSyncStatus(ctx context.Context, id, status string, syncError *string, advanceSyncedAt bool) error {
	now := time.Now().UTC()
	var lastSyncedAt *time.Time
	if advanceSyncedAt {
		lastSyncedAt = &now
	}

	_, err := r.DB().ExecContext(ctx, `
		UPDATE calendar_sources SET
			sync_status = ?, sync_error = ?,
			last_synced_at = COALESCE(?, last_synced_at), updated_at = ?
		WHERE id = ?
	`, status, syncError, lastSyncedAt, now, id)

	if err != nil {
		return fmt.Errorf("updating sync status: %w", err)
	}

	return nil
}

// Delete removes a source by ID. Bookings already absorbed from the source's
// channel are untouched; only future merges lose its contribution.
func (r *SourceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM calendar_sources WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("source not found: %s", id)
	}

	return nil
}
