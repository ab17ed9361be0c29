// Package models contains the domain models for the application.
package models

import (
	"time"
)

// CalendarSource represents an external read-only calendar feed registered
// for availability import (e.g. a third-party booking channel's iCal export).
type CalendarSource struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	FeedURL      string     `json:"feed_url"`
	ColorTag     string     `json:"color_tag"`
	Enabled      bool       `json:"enabled"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	SyncStatus   string     `json:"sync_status"`
	SyncError    *string    `json:"sync_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SyncStatus constants
const (
	SyncStatusPending = "pending"
	SyncStatusSyncing = "syncing"
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)
