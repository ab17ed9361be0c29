// Package availability merges ledger bookings and external busy intervals
// into one canonical occupied view and detects overlap conflicts.
package availability

import (
	"time"
)

// OriginLedger tags occupied ranges that come from the internal booking
// ledger. Ranges imported from external sources are tagged with the
// source ID instead.
const OriginLedger = "ledger"

// BusyInterval is a time range marked occupied by an external source.
// It is ephemeral: recomputed on every sync cycle and never persisted.
type BusyInterval struct {
	SourceID    string    `json:"source_id"`
	ExternalUID string    `json:"external_uid"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Label       string    `json:"label"`
}

// OccupiedRange is one entry of the canonical merged availability view,
// tagged by origin (OriginLedger or a source ID).
type OccupiedRange struct {
	Origin string    `json:"origin"`
	UID    string    `json:"uid"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Label  string    `json:"label"`
}

// Overlaps reports whether two half-open ranges [r.Start, r.End) and
// [other.Start, other.End) intersect. Back-to-back ranges do not overlap.
func (r OccupiedRange) Overlaps(other OccupiedRange) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// ConflictKind classifies who can resolve a detected conflict.
type ConflictKind string

const (
	// ConflictCrossOrigin is an overlap between occupying ranges from two
	// different origins (ledger vs source, or source vs source).
	ConflictCrossOrigin ConflictKind = "cross_origin"

	// ConflictLedgerIntegrity is an overlap between two internal bookings.
	// Only the ledger owner can resolve these, so they are reported apart
	// from cross-origin conflicts.
	ConflictLedgerIntegrity ConflictKind = "ledger_integrity"
)

// Conflict records two occupying ranges that overlap in time. Derived,
// never persisted, and never silently dropped: both implicated ranges are
// always surfaced.
type Conflict struct {
	Kind       ConflictKind  `json:"kind"`
	IntervalA  OccupiedRange `json:"interval_a"`
	IntervalB  OccupiedRange `json:"interval_b"`
	DetectedAt time.Time     `json:"detected_at"`
}
