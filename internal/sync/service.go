package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/tour-availability/backend/internal/availability"
	"github.com/tour-availability/backend/internal/storage/models"
	"github.com/tour-availability/backend/internal/websocket"
)

// ErrSyncInProgress is returned when a sync run is requested while another
// run is still executing. Runs are single-flight; callers retry later.
var ErrSyncInProgress = errors.New("sync already in progress")

// SyncResult is one source's outcome within a sync run: either it succeeded
// with an imported count, or it failed with an error, never both.
type SyncResult struct {
	SourceID      string `json:"source_id"`
	SourceName    string `json:"source_name"`
	Succeeded     bool   `json:"succeeded"`
	ImportedCount int    `json:"imported_count"`
	Error         string `json:"error,omitempty"`
}

// RunReport aggregates one full sync run.
type RunReport struct {
	Results   []SyncResult                 `json:"results"`
	Occupied  []availability.OccupiedRange `json:"occupied"`
	Conflicts []availability.Conflict      `json:"conflicts"`
	StartedAt time.Time                    `json:"started_at"`
	Duration  time.Duration                `json:"duration"`
}

// Service orchestrates sync cycles across all registered sources.
type Service struct {
	sources     SourceStore
	bookings    BookingStore
	fetcher     FeedFetcher
	broadcaster *websocket.EventBroadcaster
	pusher      AvailabilityPusher
	log         *slog.Logger

	fetchTimeout        time.Duration
	defaultSlotDuration time.Duration
	now                 func() time.Time

	// startMu protects only the decision to start a run, never its
	// duration.
	startMu stdsync.Mutex
	running bool

	reportMu   stdsync.RWMutex
	lastReport *RunReport
}

// NewService creates a sync orchestrator. broadcaster and pusher may be nil.
func NewService(
	sources SourceStore,
	bookings BookingStore,
	fetcher FeedFetcher,
	broadcaster *websocket.EventBroadcaster,
	pusher AvailabilityPusher,
	fetchTimeout, defaultSlotDuration time.Duration,
	logger *slog.Logger,
) *Service {
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	if defaultSlotDuration <= 0 {
		defaultSlotDuration = 90 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sources:             sources,
		bookings:            bookings,
		fetcher:             fetcher,
		broadcaster:         broadcaster,
		pusher:              pusher,
		log:                 logger,
		fetchTimeout:        fetchTimeout,
		defaultSlotDuration: defaultSlotDuration,
		now:                 func() time.Time { return time.Now().UTC() },
	}
}

// RunSync performs one full sync cycle: fetch every enabled source in
// isolation, merge against the ledger, detect conflicts. The orchestrator
// never mutates bookings; conflicts are surfaced for external resolution.
//
// Returns ErrSyncInProgress when another run is executing.
func (s *Service) RunSync(ctx context.Context) (*RunReport, error) {
	if !s.tryStart() {
		return nil, ErrSyncInProgress
	}
	defer s.finish()

	started := s.now()

	sources, err := s.sources.ListEnabled(ctx)
	if err != nil {
		s.broadcaster.BroadcastSyncFailed(err)
		return nil, fmt.Errorf("listing enabled sources: %w", err)
	}

	// Fan out one fetch per source. Each slot of the results slices is
	// owned by exactly one goroutine, and order follows the source
	// listing, so the aggregate is deterministic per source.
	results := make([]SyncResult, len(sources))
	imported := make([][]availability.BusyInterval, len(sources))

	var wg stdsync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src models.CalendarSource) {
			defer wg.Done()
			results[i], imported[i] = s.syncSource(ctx, src)
		}(i, src)
	}
	wg.Wait()

	var intervals []availability.BusyInterval
	for _, batch := range imported {
		intervals = append(intervals, batch...)
	}

	bookings, err := s.bookings.ListOccupying(ctx)
	if err != nil {
		s.broadcaster.BroadcastSyncFailed(err)
		return nil, fmt.Errorf("listing occupying bookings: %w", err)
	}

	merged := availability.Merge(bookings, intervals, availability.MergeOptions{
		DefaultSlotDuration: s.defaultSlotDuration,
		Now:                 started,
	})

	report := &RunReport{
		Results:   results,
		Occupied:  merged.Occupied,
		Conflicts: merged.Conflicts,
		StartedAt: started,
		Duration:  s.now().Sub(started),
	}
	s.setLastReport(report)

	s.log.Info("sync run completed",
		"sources", len(sources),
		"failed", countFailed(results),
		"occupied", len(report.Occupied),
		"conflicts", len(report.Conflicts),
		"duration", report.Duration,
	)

	s.broadcastReport(report)

	if s.pusher != nil {
		// Fire-and-forget from the run's perspective; the push reports
		// its outcome through logs and notifications.
		go s.pushOccupied(report.Occupied)
	}

	return report, nil
}

// syncSource fetches and parses one source, isolated from its siblings: a
// failure or panic here becomes a failed SyncResult, nothing more.
func (s *Service) syncSource(ctx context.Context, src models.CalendarSource) (result SyncResult, intervals []availability.BusyInterval) {
	result = SyncResult{SourceID: src.ID, SourceName: src.Name}

	defer func() {
		if r := recover(); r != nil {
			result.Succeeded = false
			result.ImportedCount = 0
			result.Error = fmt.Sprintf("panic during fetch: %v", r)
			intervals = nil
			s.recordFailure(src.ID, errors.New(result.Error))
		}
	}()

	if err := s.sources.MarkSyncing(ctx, src.ID); err != nil {
		s.log.Warn("marking source syncing", "sourceId", src.ID, "error", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	fetched, err := s.fetcher.FetchAndParse(fetchCtx, src.ID, src.FeedURL)
	if err != nil {
		result.Error = err.Error()
		s.recordFailure(src.ID, err)
		s.log.Warn("source sync failed", "sourceId", src.ID, "error", err)
		return result, nil
	}

	result.Succeeded = true
	result.ImportedCount = len(fetched)

	if err := s.sources.MarkSynced(ctx, src.ID); err != nil {
		s.log.Warn("marking source synced", "sourceId", src.ID, "error", err)
	}

	return result, fetched
}

// recordFailure stores a source failure without touching last_synced_at.
func (s *Service) recordFailure(sourceID string, err error) {
	// The run context may already be cancelled; source metadata updates
	// still need to land.
	if markErr := s.sources.MarkSyncError(context.Background(), sourceID, err); markErr != nil {
		s.log.Warn("marking source sync error", "sourceId", sourceID, "error", markErr)
	}
}

func (s *Service) pushOccupied(occupied []availability.OccupiedRange) {
	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
	defer cancel()

	if err := s.pusher.PushOccupied(ctx, occupied); err != nil {
		s.log.Error("partner availability push failed", "error", err)
		s.broadcaster.BroadcastNotification("error", "Partner push failed", err.Error())
		return
	}
	s.log.Info("partner availability push completed", "occupied", len(occupied))
}

func (s *Service) broadcastReport(report *RunReport) {
	if s.broadcaster == nil {
		return
	}

	payloads := make([]websocket.SourceResultPayload, len(report.Results))
	for i, r := range report.Results {
		payloads[i] = websocket.SourceResultPayload{
			SourceID:      r.SourceID,
			SourceName:    r.SourceName,
			Succeeded:     r.Succeeded,
			ImportedCount: r.ImportedCount,
			Error:         r.Error,
		}
	}
	s.broadcaster.BroadcastSyncCompleted(payloads, len(report.Conflicts), report.Duration)
	s.broadcaster.BroadcastConflicts(report.Conflicts)
}

// LastReport returns the most recent run report, or nil before the first
// run.
func (s *Service) LastReport() *RunReport {
	s.reportMu.RLock()
	defer s.reportMu.RUnlock()
	return s.lastReport
}

func (s *Service) setLastReport(report *RunReport) {
	s.reportMu.Lock()
	defer s.reportMu.Unlock()
	s.lastReport = report
}

func (s *Service) tryStart() bool {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Service) finish() {
	s.startMu.Lock()
	s.running = false
	s.startMu.Unlock()
}

func countFailed(results []SyncResult) int {
	failed := 0
	for _, r := range results {
		if !r.Succeeded {
			failed++
		}
	}
	return failed
}
