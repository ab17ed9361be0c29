package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/tour-availability/backend/internal/storage/models"
)

// MergeOptions configures a merge pass.
type MergeOptions struct {
	// DefaultSlotDuration is applied to bookings that carry neither an
	// explicit end time nor a stored duration.
	DefaultSlotDuration time.Duration

	// Now stamps detected conflicts. Passed in rather than read from the
	// clock so that identical inputs yield identical output.
	Now time.Time
}

// MergeResult is the canonical availability view produced by one merge pass.
type MergeResult struct {
	Occupied  []OccupiedRange `json:"occupied"`
	Conflicts []Conflict      `json:"conflicts"`
}

// Merge combines occupying ledger bookings and all sources' busy intervals.
// It is pure: same bookings and intervals always yield the same result.
// Bookings that are not occupying (pending, completed, cancelled) are
// ignored, as are bookings with malformed date fields and intervals whose
// end does not come after their start.
func Merge(bookings []models.Booking, intervals []BusyInterval, opts MergeOptions) MergeResult {
	occupied := make([]OccupiedRange, 0, len(bookings)+len(intervals))

	for _, b := range bookings {
		if !b.IsOccupying() {
			continue
		}
		start, err := b.StartAt()
		if err != nil {
			continue
		}
		end, err := b.EndAt(opts.DefaultSlotDuration)
		if err != nil {
			continue
		}
		occupied = append(occupied, OccupiedRange{
			Origin: OriginLedger,
			UID:    b.ID,
			Start:  start,
			End:    end,
			Label:  bookingLabel(b),
		})
	}

	for _, iv := range intervals {
		if !iv.Start.Before(iv.End) {
			continue
		}
		occupied = append(occupied, OccupiedRange{
			Origin: iv.SourceID,
			UID:    iv.ExternalUID,
			Start:  iv.Start,
			End:    iv.End,
			Label:  iv.Label,
		})
	}

	// Stable order: by start time, then origin, then UID. This makes the
	// merged view diffable across idempotent sync runs.
	sort.Slice(occupied, func(i, j int) bool {
		a, b := occupied[i], occupied[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Origin != b.Origin {
			return a.Origin < b.Origin
		}
		return a.UID < b.UID
	})

	return MergeResult{
		Occupied:  occupied,
		Conflicts: detectConflicts(occupied, opts.Now),
	}
}

// detectConflicts reports every pair of overlapping occupied ranges, except
// overlaps between two intervals of the same external source. A source
// double-listing its own busy time takes no extra capacity and cannot be
// resolved here; two internal bookings overlapping is a ledger-integrity
// problem reported under its own kind.
func detectConflicts(occupied []OccupiedRange, now time.Time) []Conflict {
	var conflicts []Conflict

	for i := 0; i < len(occupied); i++ {
		for j := i + 1; j < len(occupied); j++ {
			a, b := occupied[i], occupied[j]

			// occupied is sorted by start; once b starts at or after a
			// ends, nothing later can overlap a.
			if !b.Start.Before(a.End) {
				break
			}
			if !a.Overlaps(b) {
				continue
			}

			kind := ConflictCrossOrigin
			if a.Origin == b.Origin {
				if a.Origin != OriginLedger {
					continue
				}
				kind = ConflictLedgerIntegrity
			}

			conflicts = append(conflicts, Conflict{
				Kind:       kind,
				IntervalA:  a,
				IntervalB:  b,
				DetectedAt: now,
			})
		}
	}

	return conflicts
}

func bookingLabel(b models.Booking) string {
	if b.CustomerName != "" {
		return fmt.Sprintf("%s (%d pax)", b.CustomerName, b.NumberOfPeople)
	}
	return fmt.Sprintf("%s booking (%d pax)", b.Channel, b.NumberOfPeople)
}
