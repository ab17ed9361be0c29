package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs periodic sync cycles. Manual and scheduled runs share the
// service's single-flight guard, so they can never execute concurrently
// against the same source set.
type Scheduler struct {
	cron     *cron.Cron
	service  *Service
	interval time.Duration
	log      *slog.Logger
}

// NewScheduler creates a scheduler that triggers a full sync every
// intervalMin minutes.
func NewScheduler(service *Service, intervalMin int, logger *slog.Logger) *Scheduler {
	if intervalMin <= 0 {
		intervalMin = 15
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:     cron.New(),
		service:  service,
		interval: time.Duration(intervalMin) * time.Minute,
		log:      logger,
	}
}

// Start begins periodic syncing.
func (s *Scheduler) Start() error {
	spec := "@every " + s.interval.String()
	if _, err := s.cron.AddFunc(spec, s.runScheduled); err != nil {
		return fmt.Errorf("scheduling sync job: %w", err)
	}

	s.cron.Start()
	s.log.Info("sync scheduler started", "interval", s.interval)
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for a running job.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("sync scheduler stopped")
}

// TriggerSync starts an immediate sync in the background.
func (s *Scheduler) TriggerSync() {
	go s.runScheduled()
}

func (s *Scheduler) runScheduled() {
	_, err := s.service.RunSync(context.Background())
	if errors.Is(err, ErrSyncInProgress) {
		// A manual run beat us to it; the next tick will catch up.
		s.log.Debug("scheduled sync skipped, run already in progress")
		return
	}
	if err != nil {
		s.log.Error("scheduled sync failed", "error", err)
	}
}
